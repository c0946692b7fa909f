package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/nexo-bfa-go/internal/config"
	"github.com/boddenberg/nexo-bfa-go/internal/handler"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/cache"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/gemini"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/twilio"
	"github.com/boddenberg/nexo-bfa-go/internal/port"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("whatsapp_delivery", cfg.WhatsAppDelivery),
		zap.String("gemini_model", cfg.GeminiModel),
		zap.Duration("extraction_timeout", cfg.ExtractionTimeout),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("dev_auth", cfg.DevAuth),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "nexo-bfa")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var store port.Store
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, int32(cfg.MaxConcurrency))
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		store = postgres.NewStore(pool, resilienceCfg, logger)
		logger.Info("using Postgres as data backend")
	default:
		if cfg.SupabaseURL == "" {
			return errors.New("SUPABASE_URL is required when STORE_BACKEND=supabase")
		}
		store = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
	}

	// --- Extraction ---
	extractor, err := gemini.NewExtractor(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.ExtractionTimeout},
	}, resilience.NewCircuitBreaker("gemini"), resilience.NewBulkhead(cfg.MaxConcurrency), logger)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	// --- Messaging ---
	delivery := service.DeliveryInline
	var sender port.OutboundSender
	if cfg.OutboundDelivery() {
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioWhatsAppFrom == "" {
			return errors.New("WHATSAPP_DELIVERY=outbound requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM")
		}
		delivery = service.DeliveryOutbound
		sender = twilio.NewSender(
			twilio.NewMessageCreator(cfg.TwilioAccountSID, cfg.TwilioAuthToken),
			cfg.TwilioWhatsAppFrom,
			resilience.NewCircuitBreaker("twilio"),
			logger,
		)
	}

	var media port.MediaFetcher
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		media = twilio.NewMediaFetcher(
			&http.Client{Timeout: cfg.ExtractionTimeout},
			twilio.APIBaseURL,
			cfg.TwilioAccountSID,
			cfg.TwilioAuthToken,
			resilience.NewCircuitBreaker("twilio-media"),
		)
	}

	var validator handler.RequestValidator
	if cfg.TwilioValidateSignature {
		if cfg.TwilioAuthToken == "" {
			return errors.New("TWILIO_VALIDATE_SIGNATURE=true requires TWILIO_AUTH_TOKEN")
		}
		validator = twilio.NewSignatureValidator(cfg.TwilioAuthToken)
	}

	// --- Cache ---
	reportCache := cache.New[any](cfg.CacheTTL)
	defer reportCache.Close()

	// --- Services ---
	reports := service.NewReportService(store, reportCache, metrics, logger)
	committer := service.NewCommitter(store, reports, logger)
	ingest := service.NewIngestService(
		service.NewSenderResolver(store, logger),
		extractor,
		committer,
		service.NewResponder(delivery, twilio.TwiML{}, sender, logger),
		cfg.ExtractionTimeout,
		metrics,
		logger,
	)
	if media != nil {
		ingest.WithMediaFetcher(media)
	}
	transactions := service.NewTransactionService(store, committer, reports, logger)
	auth := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Ingest:       ingest,
		Transactions: transactions,
		Reports:      reports,
		Auth:         auth,
		Store:        store,
	}, handler.Options{
		CORSOrigins:        cfg.CORSOrigins,
		DevAuth:            cfg.DevAuth,
		SignatureValidator: validator,
		CloudAppSecret:     cfg.WhatsAppAppSecret,
		WebhookURL:         cfg.PublicWebhookURL,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ExtractionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
