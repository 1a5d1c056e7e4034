package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the image hosting API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Metrics  MetricsConfig
	Locale   LocaleConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection and pool details.
type PostgresConfig struct {
	URL            string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	MinConns       int32
	MaxConns       int32
	AcquireTimeout time.Duration
	AutoMigrate    bool
}

// DSN returns the PostgreSQL DSN string. DATABASE_URL wins over the parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// UploadConfig controls validation and public URLs of uploaded images.
type UploadConfig struct {
	AllowedExtensions []string
	MaxFileSize       int64
	MaxImagePixels    int64
	ImagesDir         string
	BaseURL           string
	ItemsPerPage      int
}

// StorageConfig selects where image bytes live.
type StorageConfig struct {
	Backend string
	MinIO   MinIOConfig
}

const (
	BackendDisk  = "disk"
	BackendMinIO = "minio"
)

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	// PresignTTL > 0 makes image downloads redirect to presigned URLs.
	PresignTTL time.Duration
}

// AuthConfig guards destructive endpoints. Empty TokenSecret disables it.
type AuthConfig struct {
	TokenSecret       string
	AdminPasswordHash string
	TokenTTL          time.Duration
	BcryptCost        int
}

// Enabled reports whether admin authentication is configured.
func (a AuthConfig) Enabled() bool {
	return a.TokenSecret != "" && a.AdminPasswordHash != ""
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// LocaleConfig selects the language of user-facing messages.
type LocaleConfig struct {
	DefaultLanguage string
}

// Load reads configuration values from the environment (and a .env file when
// present), applying defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Host:            getString("IMAGEHOST_API_HOST", "0.0.0.0"),
			Port:            getInt("IMAGEHOST_API_PORT", 8000),
			ReadTimeout:     getDuration("IMAGEHOST_API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDuration("IMAGEHOST_API_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("IMAGEHOST_API_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("IMAGEHOST_API_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL:            getString("DATABASE_URL", ""),
			Host:           getString("POSTGRES_HOST", "localhost"),
			Port:           getInt("POSTGRES_PORT", 5432),
			User:           getString("POSTGRES_USER", "imagehost"),
			Password:       getString("POSTGRES_PASSWORD", "change-me"),
			Database:       getString("POSTGRES_DB", "imagehost"),
			SSLMode:        strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			MinConns:       int32(getInt("DB_POOL_MIN_SIZE", 1)),
			MaxConns:       int32(getInt("DB_POOL_MAX_SIZE", 10)),
			AcquireTimeout: getDuration("DB_POOL_ACQUIRE_TIMEOUT", 5*time.Second),
			AutoMigrate:    getBool("DB_AUTO_MIGRATE", true),
		},
		Upload: UploadConfig{
			AllowedExtensions: getList("ALLOWED_EXTENSIONS", []string{"jpg", "jpeg", "png", "gif"}),
			MaxFileSize:       getInt64("MAX_FILE_SIZE", 5*1024*1024),
			MaxImagePixels:    getInt64("MAX_IMAGE_PIXELS", 50_000_000),
			ImagesDir:         getString("IMAGES_DIR", "images"),
			BaseURL:           strings.TrimRight(getString("BASE_URL", "http://localhost:8000"), "/"),
			ItemsPerPage:      getInt("ITEMS_PER_PAGE", 10),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getString("STORAGE_BACKEND", BackendDisk)),
			MinIO: MinIOConfig{
				Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
				AccessKeyID:     getString("MINIO_ROOT_USER", "imagehost"),
				SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
				Bucket:          getString("MINIO_BUCKET", "images"),
				UseSSL:          getBool("MINIO_USE_SSL", false),
				Region:          getString("MINIO_REGION", ""),
				PresignTTL:      getDuration("MINIO_PRESIGN_TTL", 0),
			},
		},
		Auth: loadAuthConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("IMAGEHOST_METRICS_PATH", "/metrics"),
		},
		Locale: LocaleConfig{
			DefaultLanguage: strings.ToLower(getString("IMAGEHOST_DEFAULT_LANG", "en")),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must be positive"))
	}
	if c.Upload.ItemsPerPage <= 0 {
		errs = append(errs, errors.New("ITEMS_PER_PAGE must be positive"))
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("ALLOWED_EXTENSIONS must not be empty"))
	}
	if c.Postgres.MinConns < 0 || c.Postgres.MaxConns <= 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
		errs = append(errs, fmt.Errorf("invalid pool size: min=%d max=%d", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	switch c.Storage.Backend {
	case BackendDisk, BackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getList parses a comma separated list, lower-casing and dropping blanks
// and a leading dot (".png" and "png" are the same extension).
func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item)), ".")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadAuthConfig() AuthConfig {
	cost := getInt("IMAGEHOST_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		TokenSecret:       getString("IMAGEHOST_JWT_SECRET", ""),
		AdminPasswordHash: getString("IMAGEHOST_ADMIN_PASSWORD_HASH", ""),
		TokenTTL:          getDuration("IMAGEHOST_AUTH_TOKEN_TTL", time.Hour),
		BcryptCost:        cost,
	}
}
