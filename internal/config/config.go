package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Delivery strategies for webhook replies.
const (
	DeliveryInline   = "inline"
	DeliveryOutbound = "outbound"
)

// Store backends.
const (
	StoreSupabase = "supabase"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int
	LogLevel    string
	CORSOrigins []string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache (dashboard aggregates)
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Persistence
	StoreBackend       string // supabase | postgres
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	DatabaseURL        string

	// Extraction service (Gemini)
	GeminiAPIKey      string
	GeminiModel       string
	ExtractionTimeout time.Duration

	// WhatsApp / Twilio
	WhatsAppDelivery        string // inline | outbound
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppFrom      string // ex: whatsapp:+14155238886
	TwilioValidateSignature bool
	WhatsAppAppSecret       string // Meta app secret, verifies Cloud API pushes
	PublicWebhookURL        string // URL the provider signs, used for signature validation

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Dev mode
	DevAuth bool // DEV_AUTH=true exposes POST /v1/dev/token
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 20),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		StoreBackend:       getEnv("STORE_BACKEND", StoreSupabase),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		ExtractionTimeout: getEnvDuration("EXTRACTION_TIMEOUT", 15*time.Second),

		WhatsAppDelivery:        getEnv("WHATSAPP_DELIVERY", DeliveryInline),
		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:      getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioValidateSignature: getEnvBool("TWILIO_VALIDATE_SIGNATURE", false),
		WhatsAppAppSecret:       getEnv("WHATSAPP_APP_SECRET", ""),
		PublicWebhookURL:        getEnv("PUBLIC_WEBHOOK_URL", ""),

		JWTSecret:    getEnv("JWT_SECRET", "nexo-default-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 24*time.Hour),

		DevAuth: getEnvBool("DEV_AUTH", false),
	}
}

// OutboundDelivery reports whether webhook replies are sent through the provider API.
func (c *Config) OutboundDelivery() bool {
	return c.WhatsAppDelivery == DeliveryOutbound
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
