package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL          string
	AwsAccessKey         string
	AwsSecretKey         string
	AwsRegion            string
	BucketName           string
	StorageEndpoint      string
	ObjectPrefix         string
	UploadURLTTL         time.Duration
	MaxDirectUploadBytes int64
	JWTSecret            string
	JWTTTL               time.Duration
	AllowedOrigins       []string
	VerifyWorkers        int
	AuthRatePerMinute    int
	AuthRateBurst        int
	Port                 string
	LogLevel             string
	LogPretty            bool
}

// LoadConfig loads the environment variables and return config
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		AwsAccessKey:         getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:         getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:            getEnv("AWS_REGION", "us-central1"),
		BucketName:           getEnv("BUCKET_NAME", "stratus-uploads"),
		StorageEndpoint:      getEnv("STORAGE_ENDPOINT", ""),
		ObjectPrefix:         strings.Trim(getEnv("OBJECT_PREFIX", "uploads"), "/"),
		UploadURLTTL:         getEnvDuration("UPLOAD_URL_TTL", time.Hour),
		MaxDirectUploadBytes: int64(getEnvInt("MAX_DIRECT_UPLOAD_BYTES", 32<<20)),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTTTL:               getEnvDuration("JWT_TTL", 24*time.Hour),
		AllowedOrigins:       getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		VerifyWorkers:        getEnvInt("VERIFY_WORKERS", 2),
		AuthRatePerMinute:    getEnvInt("AUTH_RATE_PER_MINUTE", 30),
		AuthRateBurst:        getEnvInt("AUTH_RATE_BURST", 10),
		Port:                 getEnv("PORT", "8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnv("LOG_PRETTY", "false") == "true",
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET not set")
	}
	if cfg.VerifyWorkers < 1 {
		cfg.VerifyWorkers = 1
	}

	return cfg, nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("not an int, using default")
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Dur("default", def).Msg("not a duration, using default")
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
