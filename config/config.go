package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=dev test prod"`
	LogLevel    string

	MongoURI          string `validate:"required"`
	MongoDatabase     string `validate:"required"`
	MongoTransactions bool

	JWTSecret    string        `validate:"required,min=16"`
	SessionTTL   time.Duration `validate:"gt=0"`
	CookieSecure bool
	CORSOrigins  []string

	// Object storage
	AWSRegion         string `validate:"required"`
	BucketName        string `validate:"required"`
	S3Endpoint        string `validate:"omitempty,url"`
	S3PublicBaseURL   string `validate:"omitempty,url"`
	S3PathStyle       bool
	StoragePathMarker string        `validate:"required,excludesall=/"`
	PresignTTL        time.Duration `validate:"gt=0"`

	UploadTmpDir   string
	MaxUploadBytes int64 `validate:"gt=0"`

	AuthRateLimit float64 `validate:"gt=0"`
	AuthRateBurst int     `validate:"gt=0"`

	FolderDeleteMode string `validate:"oneof=detach cascade reparent"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "error", err)
	}

	env := getEnv("ENVIRONMENT", "dev")
	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		Environment: env,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "imagestore"),
		MongoTransactions: getBool("MONGO_TRANSACTIONS", true),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		SessionTTL:   getDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure: getBool("COOKIE_SECURE", env == "prod"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),

		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		BucketName:        os.Getenv("BUCKET_NAME"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3PublicBaseURL:   strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		S3PathStyle:       getBool("S3_PATH_STYLE", false),
		StoragePathMarker: getEnv("STORAGE_PATH_MARKER", "upload"),
		PresignTTL:        getDuration("PRESIGN_TTL", 10*time.Minute),

		UploadTmpDir:   getEnv("UPLOAD_TMP_DIR", os.TempDir()),
		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 10<<20),

		AuthRateLimit: getFloat("AUTH_RATE_LIMIT", 1),
		AuthRateBurst: int(getInt64("AUTH_RATE_BURST", 10)),

		FolderDeleteMode: getEnv("FOLDER_DELETE_MODE", "detach"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
