package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scor-analyzer/internal/config"
	"github.com/scor-analyzer/internal/models"
)

// integrationPostgres connects to the database named by POSTGRES_TEST_HOST or skips
func integrationPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("POSTGRES_TEST_HOST not set")
	}

	cfg := &config.PostgresConfig{
		Host:           host,
		Port:           "5432",
		Database:       "scor",
		User:           "scor",
		Password:       os.Getenv("POSTGRES_TEST_PASSWORD"),
		MaxConnections: 4,
	}

	db, err := NewPostgresDB(testContext(t), cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, NewMigrator(cfg.URL(), "../../"+DefaultMigrationsPath).Up())
	return db
}

func TestSignupPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.PostgresConfig
		wantMax  int32
		wantMin  int32
		wantWait time.Duration
	}{
		{name: "zero values", cfg: config.PostgresConfig{}, wantMax: 1, wantMin: 0},
		{name: "min above max", cfg: config.PostgresConfig{MaxConnections: 2, MinConnections: 5}, wantMax: 2, wantMin: 2},
		{name: "explicit", cfg: config.PostgresConfig{MaxConnections: 4, MinConnections: 1, ConnectTimeout: 3 * time.Second}, wantMax: 4, wantMin: 1, wantWait: 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database = "db", "5432", "scor", "p@ss:word", "scor"

			pc, err := signupPoolConfig(&cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, pc.MaxConns)
			assert.Equal(t, tt.wantMin, pc.MinConns)
			assert.Equal(t, signupConnIdleTime, pc.MaxConnIdleTime)
			assert.Equal(t, "p@ss:word", pc.ConnConfig.Password)
			assert.Equal(t, "db", pc.ConnConfig.Host)
			assert.Equal(t, applicationName, pc.ConnConfig.RuntimeParams["application_name"])
			if tt.wantWait > 0 {
				assert.Equal(t, tt.wantWait, pc.ConnConfig.ConnectTimeout)
			}
		})
	}
}

func TestPostgresDB_Ping(t *testing.T) {
	db := integrationPostgres(t)
	assert.NoError(t, db.Ping(testContext(t)))
	assert.NotNil(t, db.Pool())
}

func TestSignupRepository_Integration(t *testing.T) {
	db := integrationPostgres(t)
	ctx := testContext(t)
	repo := NewSignupRepository(db.Pool())

	_, err := db.Pool().Exec(ctx, "DELETE FROM email_signups WHERE email = $1", "integration@example.org")
	require.NoError(t, err)

	dup, err := repo.Create(ctx, &models.Signup{Email: "integration@example.org", Source: models.DefaultSignupSource})
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = repo.Create(ctx, &models.Signup{Email: "integration@example.org", Source: models.DefaultSignupSource})
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestNewMigrator_DefaultPath(t *testing.T) {
	m := NewMigrator("postgres://localhost/scor", "")
	assert.Equal(t, DefaultMigrationsPath, m.migrationsPath)
}
