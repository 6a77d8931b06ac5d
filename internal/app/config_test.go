package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CSRF_SECRET", "csrf")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 5*time.Minute, cfg.AccessCacheTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, "0 3 * * *", cfg.SessionPurgeCron)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.Equal(t, 5, cfg.PGAttempts)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresCSRFSecret(t *testing.T) {
	t.Setenv("CSRF_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsZeroCacheTTL(t *testing.T) {
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("ACCESS_CACHE_TTL", "0s")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestAsynqRedisCarriesCredentials(t *testing.T) {
	t.Setenv("CSRF_SECRET", "csrf")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("REDIS_DB", "3")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	opts := cfg.AsynqRedis()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "info", cfg.LogLevel)
}
