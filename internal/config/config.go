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

type Config struct {
	HTTPPort string
	LogLevel string

	JWTSecret string
	JWTTTL    time.Duration

	DatabaseDriver string
	DatabaseURL    string

	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	ArkAPIKey    string
	ArkModel     string
	ArkBaseURL   string
	Classifier   string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	HistoryCacheTTL time.Duration
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the environment alone and validates it.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTTTL:          time.Duration(getEnvAsInt("JWT_TTL_HOURS", 24)) * time.Hour,
		DatabaseDriver:  strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:     getEnv("DATABASE_URL", "mindmate.db"),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		ArkAPIKey:       getEnv("ARK_API_KEY", ""),
		ArkModel:        getEnv("ARK_MODEL", ""),
		ArkBaseURL:      getEnv("ARK_BASE_URL", ""),
		Classifier:      strings.ToLower(getEnv("CLASSIFIER", "keyword")),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		HistoryCacheTTL: getEnvAsDuration("HISTORY_CACHE_TTL", 5*time.Minute),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}

	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver))
	}

	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required for the gemini provider"))
		}
	case "ark":
		if c.ArkAPIKey == "" || c.ArkModel == "" {
			errs = append(errs, errors.New("ARK_API_KEY and ARK_MODEL environment variables are required for the ark provider"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be gemini, ark or mock, got %q", c.LLMProvider))
	}

	switch c.Classifier {
	case "keyword", "model":
	default:
		errs = append(errs, fmt.Errorf("CLASSIFIER must be keyword or model, got %q", c.Classifier))
	}
	return errors.Join(errs...)
}

func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
