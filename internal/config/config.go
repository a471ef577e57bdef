// Package config provides configuration management for the DAO credit scanner.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Etherscan EtherscanConfig
	Prices    PricesConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration for contact signups
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MinConnections int
	ConnectTimeout time.Duration
}

// URL returns the connection URL shared by the pool and migrations
func (c PostgresConfig) URL() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Backend   string
	TTL       time.Duration
	KeyPrefix string
}

// EtherscanConfig holds chain-data provider configuration
type EtherscanConfig struct {
	APIKey            string
	BaseURL           string
	ChainID           int
	RequestsPerSecond float64
	PageSize          int
	Timeout           time.Duration
	// Cross-process call budget, active with the redis cache backend.
	// The total per second is RequestsPerSecond rounded up.
	BudgetReserved int
	BudgetMaxWait  time.Duration
}

// PricesConfig holds price provider configuration
type PricesConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	FallbackNativeUSD float64
}

// RateLimitConfig holds public API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// TrustedProxies lists the addresses or CIDRs whose X-Forwarded-For is believed
	TrustedProxies []string
}

// TrustedPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "scor"),
				User:           getEnv("POSTGRES_USER", "scor"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				SSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 4),
				MinConnections: getEnvAsInt("POSTGRES_MIN_CONNECTIONS", 0),
				ConnectTimeout: getEnvAsDuration("POSTGRES_CONNECT_TIMEOUT", 10*time.Second),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			Backend:   strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			TTL:       getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "scor_analysis"),
		},
		Etherscan: EtherscanConfig{
			APIKey:            getEnv("ETHERSCAN_API_KEY", ""),
			BaseURL:           getEnv("ETHERSCAN_BASE_URL", "https://api.etherscan.io/v2/api"),
			ChainID:           getEnvAsInt("ETHERSCAN_CHAIN_ID", 1),
			RequestsPerSecond: getEnvAsFloat("ETHERSCAN_RPS", 3),
			PageSize:          getEnvAsInt("ETHERSCAN_PAGE_SIZE", 100),
			Timeout:           getEnvAsDuration("ETHERSCAN_TIMEOUT", 30*time.Second),
			BudgetReserved:    getEnvAsInt("ETHERSCAN_BUDGET_RESERVED", 2),
			BudgetMaxWait:     getEnvAsDuration("ETHERSCAN_BUDGET_MAX_WAIT", 5*time.Second),
		},
		Prices: PricesConfig{
			BaseURL:           getEnv("PRICES_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:            getEnv("COINGECKO_API_KEY", ""),
			Timeout:           getEnvAsDuration("PRICES_TIMEOUT", 10*time.Second),
			FallbackNativeUSD: getEnvAsFloat("PRICES_FALLBACK_NATIVE_USD", 2500),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
			TrustedProxies:    getEnvAsList("RATE_LIMIT_TRUSTED_PROXIES"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q (want %q or %q)", c.Cache.Backend, CacheBackendMemory, CacheBackendRedis)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.Cache.TTL)
	}
	if _, err := c.RateLimit.TrustedPrefixes(); err != nil {
		return err
	}
	return nil
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
