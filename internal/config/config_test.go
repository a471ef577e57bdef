package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1, cfg.Etherscan.ChainID)
	assert.Equal(t, 100, cfg.Etherscan.PageSize)
	assert.Equal(t, 2, cfg.Etherscan.BudgetReserved)
	assert.Equal(t, 5*time.Second, cfg.Etherscan.BudgetMaxWait)
	assert.Equal(t, 2500.0, cfg.Prices.FallbackNativeUSD)
	assert.False(t, cfg.Database.Postgres.Enabled)
	assert.Empty(t, cfg.RateLimit.TrustedProxies)
	assert.Equal(t, 4, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.Database.Postgres.ConnectTimeout)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("ETHERSCAN_RPS", "4.5")
	t.Setenv("POSTGRES_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 4.5, cfg.Etherscan.RequestsPerSecond)
	assert.True(t, cfg.Database.Postgres.Enabled)
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	cfg, err := LoadConfig()
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "unknown cache backend")
}

func TestLoadConfig_TrustedProxies(t *testing.T) {
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7,,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.7"}, cfg.RateLimit.TrustedProxies)

	prefixes, err := cfg.RateLimit.TrustedPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.7/32", prefixes[1].String())
}

func TestLoadConfig_RejectsBadTrustedProxy(t *testing.T) {
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/33")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid trusted proxy")
}

func TestPostgresConfig_URL(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "scor"}
	assert.Equal(t, "postgres://u:p@db:5432/scor?sslmode=disable", c.URL())

	c.Password = "p@ss/word"
	c.SSLMode = "require"
	assert.Equal(t, "postgres://u:p%40ss%2Fword@db:5432/scor?sslmode=require", c.URL())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "200")
	t.Setenv("TEST_INT_INVALID", "invalid")
	t.Setenv("TEST_FLOAT", "1.25")
	t.Setenv("TEST_BOOL", "yes-please")
	t.Setenv("TEST_DURATION", "30s")
	t.Setenv("TEST_DURATION_INVALID", "soon")

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{name: "string default", got: getEnv("TEST_NOT_SET", "default"), want: "default"},
		{name: "int valid", got: getEnvAsInt("TEST_INT", 100), want: 200},
		{name: "int invalid", got: getEnvAsInt("TEST_INT_INVALID", 100), want: 100},
		{name: "float valid", got: getEnvAsFloat("TEST_FLOAT", 0), want: 1.25},
		{name: "bool invalid", got: getEnvAsBool("TEST_BOOL", true), want: true},
		{name: "duration valid", got: getEnvAsDuration("TEST_DURATION", time.Second), want: 30 * time.Second},
		{name: "duration invalid", got: getEnvAsDuration("TEST_DURATION_INVALID", time.Second), want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
