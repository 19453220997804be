package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Approval     ApprovalConfig
	Directory    DirectoryConfig
	Enrichment   EnrichmentConfig
	Events       EventsConfig
	Certificates CertificatesConfig
	Notify       NotifyConfig
	Tracing      TracingConfig
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ApprovalConfig points at an optional chain policy override.
type ApprovalConfig struct {
	PolicyFile string
}

// DirectoryConfig configures the published CSV user directory.
type DirectoryConfig struct {
	CSVURL   string
	Timeout  time.Duration
	CacheTTL time.Duration
	// DefaultCredential lets the built-in fallback users sign in. Empty disables them.
	DefaultCredential string
}

// EnrichmentConfig configures the optional reason analysis collaborator.
type EnrichmentConfig struct {
	Enabled    bool
	URL        string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
}

// EventsConfig configures lifecycle event publishing and the webhook log sink.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
	CloudLogURL   string
}

// CertificatesConfig controls certificate storage and signed download links.
type CertificatesConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	Organization    string
}

// NotifyConfig sizes the notification worker queue.
type NotifyConfig struct {
	Workers int
	Retries int
}

// TracingConfig toggles OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool
	SamplerRatio float64
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("ENABLE_DATABASE"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:     v.GetBool("ENABLE_CACHE"),
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Approval = ApprovalConfig{PolicyFile: v.GetString("CHAIN_POLICY_FILE")}

	cfg.Directory = DirectoryConfig{
		CSVURL:   v.GetString("DIRECTORY_CSV_URL"),
		Timeout:  parseDuration(v.GetString("DIRECTORY_TIMEOUT"), 5*time.Second),
		CacheTTL: parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), 10*time.Minute),

		DefaultCredential: v.GetString("DIRECTORY_DEFAULT_CREDENTIAL"),
	}

	rate := v.GetFloat64("ENRICHMENT_RATE_PER_SEC")
	if rate <= 0 {
		rate = 1
	}
	cfg.Enrichment = EnrichmentConfig{
		Enabled:    v.GetBool("ENRICHMENT_ENABLED"),
		URL:        v.GetString("ENRICHMENT_URL"),
		APIKey:     v.GetString("ENRICHMENT_API_KEY"),
		Timeout:    parseDuration(v.GetString("ENRICHMENT_TIMEOUT"), 5*time.Second),
		RatePerSec: rate,
	}

	cfg.Events = EventsConfig{
		NATSURL:       v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("EVENTS_SUBJECT_PREFIX"),
		CloudLogURL:   v.GetString("CLOUD_LOG_URL"),
	}

	cfg.Certificates = CertificatesConfig{
		StorageDir:      v.GetString("CERTIFICATES_STORAGE_DIR"),
		SignedURLSecret: v.GetString("CERTIFICATES_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("CERTIFICATES_SIGNED_URL_TTL"), 30*time.Minute),
		Organization:    v.GetString("ORGANIZATION_NAME"),
	}

	workers := v.GetInt("NOTIFY_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Notify = NotifyConfig{
		Workers: workers,
		Retries: v.GetInt("NOTIFY_RETRIES"),
	}

	ratio := v.GetFloat64("TRACING_SAMPLER_RATIO")
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	cfg.Tracing = TracingConfig{
		Enabled:      v.GetBool("TRACING_ENABLED"),
		SamplerRatio: ratio,
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("ENABLE_DATABASE", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "leave_approval")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CHAIN_POLICY_FILE", "")

	v.SetDefault("DIRECTORY_CSV_URL", "")
	v.SetDefault("DIRECTORY_TIMEOUT", "5s")
	v.SetDefault("DIRECTORY_CACHE_TTL", "10m")
	v.SetDefault("DIRECTORY_DEFAULT_CREDENTIAL", "")

	v.SetDefault("ENRICHMENT_ENABLED", false)
	v.SetDefault("ENRICHMENT_URL", "")
	v.SetDefault("ENRICHMENT_API_KEY", "")
	v.SetDefault("ENRICHMENT_TIMEOUT", "5s")
	v.SetDefault("ENRICHMENT_RATE_PER_SEC", 1)

	v.SetDefault("NATS_URL", "")
	v.SetDefault("EVENTS_SUBJECT_PREFIX", "leave")
	v.SetDefault("CLOUD_LOG_URL", "")

	v.SetDefault("CERTIFICATES_STORAGE_DIR", "./certificates")
	v.SetDefault("CERTIFICATES_SIGNED_URL_SECRET", "dev_certificates_secret")
	v.SetDefault("CERTIFICATES_SIGNED_URL_TTL", "30m")
	v.SetDefault("ORGANIZATION_NAME", "EME Operations")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
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
