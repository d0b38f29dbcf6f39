// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database connection, object storage,
// generative-AI access, upload policy, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-vesty-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig defines object storage (GCS) settings, including the TTL
// policy for temporary access locators: viewing grants a longer window than
// downloading.
type StorageConfig struct {
	Bucket        string        // GCS_BUCKET_NAME
	PublicBaseURL string        // PUBLIC_BASE_URL override for object locators
	ViewTTL       time.Duration // signed-URL lifetime for "view"
	DownloadTTL   time.Duration // signed-URL lifetime for "download"
}

// AIConfig defines generative-AI (Gemini) settings for the try-on pipeline.
type AIConfig struct {
	APIKey        string        // GEMINI_API_KEY
	DescribeModel string        // vision model used for garment description
	GenerateModel string        // image model used for try-on generation
	CallTimeout   time.Duration // per-call deadline; generation is the longest step
}

// AuthConfig defines identity-provider integration settings.
type AuthConfig struct {
	SessionSecret string // HMAC secret the provider signs session JWTs with
	WebhookSecret string // shared secret for webhook signature verification
}

// UploadConfig defines the file-validation and normalization policy.
type UploadConfig struct {
	MinFileSize  int64 // bytes, inclusive lower bound
	MaxFileSize  int64 // bytes, inclusive upper bound
	MinDimension int   // pixels, per axis
	MaxDimension int   // pixels, per axis
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 90s (swap requests await two AI calls)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRedactPII   bool   // scrub emails/phones/ids from access logs
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes
	Environment    string // development|production; gates error-detail exposure

	// Persistence. DatabaseURL (postgres DSN) wins over DBPath (SQLite file).
	DBPath      string // SQLite path
	DatabaseURL string // optional postgres DSN

	// Domain
	Storage StorageConfig
	AI      AIConfig
	Auth    AuthConfig
	Upload  UploadConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// IsProduction reports whether the process runs with production hardening
// (generic error bodies, no pretty logs).
func (c Config) IsProduction() bool { return c.Environment == "production" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogRedactPII:   getbool("LOG_REDACT_PII", true),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),
		Environment:    strings.ToLower(getenv("ENVIRONMENT", "development")),

		// Persistence
		DBPath:      getenv("DB_PATH", "vesty.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Domain
		Storage: StorageConfig{
			Bucket:        getenv("GCS_BUCKET_NAME", ""),
			PublicBaseURL: getenv("PUBLIC_BASE_URL", ""),
			ViewTTL:       getdur("SIGNED_URL_VIEW_TTL", time.Hour),
			DownloadTTL:   getdur("SIGNED_URL_DOWNLOAD_TTL", 5*time.Minute),
		},
		AI: AIConfig{
			APIKey:        getenv("GEMINI_API_KEY", ""),
			DescribeModel: getenv("AI_DESCRIBE_MODEL", "gemini-2.5-flash"),
			GenerateModel: getenv("AI_GENERATE_MODEL", "gemini-2.5-flash-image-preview"),
			CallTimeout:   getdur("AI_CALL_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret: getenv("SESSION_JWT_SECRET", ""),
			WebhookSecret: getenv("IDP_WEBHOOK_SECRET", ""),
		},
		Upload: UploadConfig{
			MinFileSize:  getint64("MIN_FILE_SIZE", 1<<10),
			MaxFileSize:  getint64("MAX_FILE_SIZE", 5<<20),
			MinDimension: getint("MIN_IMAGE_DIMENSION", 100),
			MaxDimension: getint("MAX_IMAGE_DIMENSION", 5000),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-vesty-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.Environment {
	case "development", "production", "test":
	default:
		cfg.Environment = "development"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("either DATABASE_URL or DB_PATH must be set")
	}
	if cfg.Upload.MinFileSize <= 0 || cfg.Upload.MaxFileSize <= cfg.Upload.MinFileSize {
		return cfg, errors.New("MAX_FILE_SIZE must exceed MIN_FILE_SIZE (> 0)")
	}
	if cfg.Upload.MinDimension <= 0 || cfg.Upload.MaxDimension <= cfg.Upload.MinDimension {
		return cfg, errors.New("MAX_IMAGE_DIMENSION must exceed MIN_IMAGE_DIMENSION (> 0)")
	}
	if cfg.Storage.ViewTTL <= 0 || cfg.Storage.DownloadTTL <= 0 {
		return cfg, errors.New("signed URL TTLs must be positive durations")
	}
	if cfg.AI.CallTimeout <= 0 {
		return cfg, errors.New("AI_CALL_TIMEOUT must be a positive duration")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
