package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Gateway modes.
const (
	GatewayModeHTTP    = "http"
	GatewayModeSandbox = "sandbox"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Catalog        CatalogConfig
	Gateway        GatewayConfig
	Payments       PaymentsConfig
	Receipts       ReceiptsConfig
	Reconciliation ReconciliationConfig
	Tracing        TracingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig governs caching of catalog listings (never entitlement decisions).
type CatalogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// GatewayConfig configures the payment gateway collaborator.
type GatewayConfig struct {
	Mode          string
	BaseURL       string
	KeyID         string
	KeySecret     string
	SigningSecret string
	Timeout       time.Duration
}

// PaymentsConfig fixes the server-side pricing inputs.
type PaymentsConfig struct {
	TaxRateBps      int64
	DefaultCurrency string
}

// ReceiptsConfig controls receipt storage and signed download links.
type ReceiptsConfig struct {
	StorageDir      string
	PublicBaseURL   string
	Issuer          string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	RetainFor       time.Duration
}

// ReconciliationConfig tunes the worker that persists reconciliation tickets.
type ReconciliationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	Version     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
		Leeway: parseDuration(v.GetString("JWT_LEEWAY"), 30*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled: v.GetBool("ENABLE_CATALOG_CACHE"),
		CacheTTL:     parseDuration(v.GetString("CATALOG_CACHE_TTL"), time.Minute),
	}

	cfg.Gateway = GatewayConfig{
		Mode:          strings.ToLower(v.GetString("GATEWAY_MODE")),
		BaseURL:       v.GetString("GATEWAY_BASE_URL"),
		KeyID:         v.GetString("GATEWAY_KEY_ID"),
		KeySecret:     v.GetString("GATEWAY_KEY_SECRET"),
		SigningSecret: v.GetString("GATEWAY_SIGNING_SECRET"),
		Timeout:       parseDuration(v.GetString("GATEWAY_TIMEOUT"), 10*time.Second),
	}
	if cfg.Gateway.SigningSecret == "" {
		cfg.Gateway.SigningSecret = cfg.Gateway.KeySecret
	}

	cfg.Payments = PaymentsConfig{
		TaxRateBps:      v.GetInt64("PAYMENT_TAX_RATE_BPS"),
		DefaultCurrency: strings.ToUpper(v.GetString("PAYMENT_DEFAULT_CURRENCY")),
	}

	cfg.Receipts = ReceiptsConfig{
		StorageDir:      v.GetString("RECEIPTS_STORAGE_DIR"),
		PublicBaseURL:   v.GetString("RECEIPTS_PUBLIC_BASE_URL"),
		Issuer:          v.GetString("RECEIPTS_ISSUER"),
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), 15*time.Minute),
		CleanupInterval: parseDuration(v.GetString("RECEIPTS_CLEANUP_INTERVAL"), time.Hour),
		RetainFor:       parseDuration(v.GetString("RECEIPTS_RETAIN_FOR"), 24*time.Hour),
	}

	cfg.Reconciliation = ReconciliationConfig{
		Workers:    v.GetInt("RECONCILIATION_WORKERS"),
		MaxRetries: v.GetInt("RECONCILIATION_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("RECONCILIATION_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
		Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		SampleRatio: clampRatio(v.GetFloat64("OTEL_SAMPLER_RATIO")),
		Version:     v.GetString("SERVICE_VERSION"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "batchpass")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_LEEWAY", "30s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CATALOG_CACHE", false)
	v.SetDefault("CATALOG_CACHE_TTL", "1m")

	v.SetDefault("GATEWAY_MODE", GatewayModeSandbox)
	v.SetDefault("GATEWAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("GATEWAY_KEY_ID", "rzp_test_key")
	v.SetDefault("GATEWAY_KEY_SECRET", "dev_gateway_secret")
	v.SetDefault("GATEWAY_SIGNING_SECRET", "")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")

	v.SetDefault("PAYMENT_TAX_RATE_BPS", 1800)
	v.SetDefault("PAYMENT_DEFAULT_CURRENCY", "INR")

	v.SetDefault("RECEIPTS_STORAGE_DIR", "./data")
	v.SetDefault("RECEIPTS_PUBLIC_BASE_URL", "http://localhost:8080/api/v1/receipts")
	v.SetDefault("RECEIPTS_ISSUER", "Batchpass Learning")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "15m")
	v.SetDefault("RECEIPTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("RECEIPTS_RETAIN_FOR", "24h")

	v.SetDefault("RECONCILIATION_WORKERS", 1)
	v.SetDefault("RECONCILIATION_MAX_RETRIES", 5)
	v.SetDefault("RECONCILIATION_RETRY_DELAY", "5s")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "batchpass-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
	v.SetDefault("SERVICE_VERSION", "0.1.0")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
