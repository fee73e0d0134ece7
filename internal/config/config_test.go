package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"HTTP_PORT", "LOG_LEVEL", "JWT_SECRET", "JWT_TTL_HOURS", "DATABASE_DRIVER", "DATABASE_URL",
		"LLM_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL", "ARK_API_KEY", "ARK_MODEL", "ARK_BASE_URL",
		"CLASSIFIER", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "HISTORY_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("JWT_TTL_HOURS", "abc")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "keyword", cfg.Classifier)
	assert.Equal(t, 5*time.Minute, cfg.HistoryCacheTTL)
	assert.False(t, cfg.CacheEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LLM_PROVIDER", "Ark")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "doubao")
	t.Setenv("CLASSIFIER", "model")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/mindmate")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("HISTORY_CACHE_TTL", "30s")
	t.Setenv("JWT_TTL_HOURS", "1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ark", cfg.LLMProvider)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 30*time.Second, cfg.HistoryCacheTTL)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.CacheEnabled())
}

func TestFromEnvRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":     {"LLM_PROVIDER": "mock"},
		"gemini without key": {"JWT_SECRET": "x", "LLM_PROVIDER": "gemini"},
		"ark without model":  {"JWT_SECRET": "x", "LLM_PROVIDER": "ark", "ARK_API_KEY": "k"},
		"unknown provider":   {"JWT_SECRET": "x", "LLM_PROVIDER": "openai"},
		"unknown driver":     {"JWT_SECRET": "x", "LLM_PROVIDER": "mock", "DATABASE_DRIVER": "mysql"},
		"unknown classifier": {"JWT_SECRET": "x", "LLM_PROVIDER": "mock", "CLASSIFIER": "vibes"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
