package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Storage drivers for uploaded profile images
const (
	StorageDisabled = ""
	StorageR2       = "r2"
	StorageMinio    = "minio"
)

type Config struct {
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	RedisURL string

	ServerPort string

	LogLevel  string
	LogFormat string

	SessionSecret string
	SessionMaxAge int
	SessionSecure bool

	JWTSecret         string
	AccessTokenMaxAge int

	CORSAllowedOrigins []string

	DefaultImageURL       string
	DefaultHeaderImageURL string

	StorageDriver string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string

	FeedWorkers        int
	StreamTrimSchedule string
	StreamMaxLen       int64
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Info().Msg("No .env file found or error loading it, relying on environment variables")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		ServerPort: getEnv("SERVER_PORT", "8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 86400),
		SessionSecure: getEnvBool("SESSION_SECURE", false),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenMaxAge: getEnvInt("ACCESS_TOKEN_MAX_AGE", 900),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		DefaultImageURL:       getEnv("DEFAULT_IMAGE_URL", "/static/images/default-pic.png"),
		DefaultHeaderImageURL: getEnv("DEFAULT_HEADER_IMAGE_URL", "/static/images/warbler-hero.jpg"),

		StorageDriver: strings.ToLower(os.Getenv("STORAGE_DRIVER")),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "warbler"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioPublicURL: os.Getenv("MINIO_PUBLIC_URL"),

		FeedWorkers:        getEnvInt("FEED_WORKERS", 2),
		StreamTrimSchedule: getEnv("STREAM_TRIM_SCHEDULE", "@hourly"),
		StreamMaxLen:       int64(getEnvInt("STREAM_MAX_LEN", 10000)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" && c.DBHost == "" {
		errs = append(errs, errors.New("DATABASE_URL or DB_HOST must be set"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET must be set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	switch c.StorageDriver {
	case StorageDisabled, StorageR2, StorageMinio:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	return errors.Join(errs...)
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
