package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/infra/observability"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RequestValidator checks the Twilio signature of a form-encoded webhook.
type RequestValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

// Services groups the use cases exposed over HTTP.
type Services struct {
	Ingest       *service.IngestService
	Transactions *service.TransactionService
	Reports      *service.ReportService
	Auth         *service.AuthService
	Store        Pinger
}

// Options configures the optional parts of the HTTP surface.
type Options struct {
	CORSOrigins []string
	DevAuth     bool

	// SignatureValidator, when set, rejects form webhooks without a valid signature.
	SignatureValidator RequestValidator
	// CloudAppSecret verifies X-Hub-Signature-256 on Cloud API pushes. When a
	// SignatureValidator is set and this is empty, every JSON push is rejected.
	CloudAppSecret string
	// WebhookURL is the public URL the provider signs. Empty means rebuild it from the request.
	WebhookURL string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store, logger))
	r.Get("/readyz", readyzHandler(svc.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 📊 Métricas do pipeline
		// GET /v1/metrics/pipeline
		// =============================================
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))

		// =============================================
		// 📲 Webhook WhatsApp (Twilio form ou Cloud API JSON)
		// POST /v1/webhook/whatsapp
		// =============================================
		if svc.Ingest != nil {
			r.Post("/webhook/whatsapp", webhookHandler(svc.Ingest, opts, logger))
		}

		if svc.Auth == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "auth service unavailable: JWT_SECRET not configured")
			}))
			return
		}

		// =============================================
		// 🛠 Dev token (DEV_AUTH=true)
		// =============================================
		if opts.DevAuth {
			r.Post("/dev/token", devTokenHandler(svc.Auth, logger))
		}

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svc.Auth, logger))

			// =============================================
			// 💬 Chat
			// POST /v1/chat
			// =============================================
			if svc.Ingest != nil {
				r.Post("/chat", chatHandler(svc.Ingest, logger))
			}

			// =============================================
			// 💰 Transações
			// =============================================
			if svc.Transactions != nil {
				r.Get("/transactions", listTransactionsHandler(svc.Transactions, logger))
				r.Post("/transactions", createTransactionHandler(svc.Transactions, logger))
				r.Put("/transactions/{transactionId}", updateTransactionHandler(svc.Transactions, logger))
				r.Delete("/transactions/{transactionId}", deleteTransactionHandler(svc.Transactions, logger))
			}

			// =============================================
			// 📈 Relatórios
			// =============================================
			if svc.Reports != nil {
				r.Get("/transactions/export", exportHandler(svc.Reports, logger))
				r.Get("/reports/summary", summaryHandler(svc.Reports, logger))
				r.Get("/reports/monthly", monthlyHandler(svc.Reports, logger))
			}
		})
	})

	return r
}

// ============================================================
// Health & Métricas
// ============================================================

func healthzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "nexo-api", Status: "healthy", LastChecked: now},
		}

		overall := "healthy"
		if store != nil {
			start := time.Now()
			err := store.Ping(r.Context())
			status := "healthy"
			if err != nil {
				logger.Warn("healthz: store ping failed", zap.Error(err))
				status = "degraded"
				overall = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("readyz: store not ready", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.PipelineSnapshot())
	}
}
