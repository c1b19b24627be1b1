package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wallet-engine", cfg.AppName)
	assert.Equal(t, ":8080", cfg.Address())
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.MinDeposit.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.MaxDeposit.Equal(decimal.NewFromInt(10000)))
	assert.True(t, cfg.MinWithdrawal.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, cfg.MaxWithdrawal.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, 3*time.Second, cfg.DoubleSubmitGuard)
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, 3, cfg.ConflictRetries)
	assert.Equal(t, "repeatable_read", cfg.IsolationLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownPeriod)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/wallet")
	t.Setenv("PORT", ":9090")
	t.Setenv("MAX_WITHDRAWAL", "2500.50")
	t.Setenv("DOUBLE_SUBMIT_GUARD_SECONDS", "5")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "4")
	t.Setenv("ISOLATION_LEVEL", "SERIALIZABLE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address())
	assert.True(t, cfg.MaxWithdrawal.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, 5*time.Second, cfg.DoubleSubmitGuard)
	assert.Equal(t, 4*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, "serializable", cfg.IsolationLevel)
	assert.True(t, cfg.IsProduction())
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wallet.yaml")
	require.NoError(t, os.WriteFile(file, []byte("max_deposit: \"20000\"\ndefault_page_size: \"25\"\n"), 0o600))

	t.Setenv("APP_ENV", "local")
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("DEFAULT_PAGE_SIZE", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.MaxDeposit.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, 15, cfg.DefaultPageSize, "environment wins over the config file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"database required outside dev": {"APP_ENV": "production"},
		"unknown log level":             {"LOG_LEVEL": "verbose"},
		"unknown isolation level":       {"ISOLATION_LEVEL": "read_committed"},
		"min above max":                 {"MIN_DEPOSIT": "500", "MAX_DEPOSIT": "100"},
		"non positive bound":            {"MIN_WITHDRAWAL": "0"},
		"malformed decimal":             {"MAX_DEPOSIT": "ten"},
		"default page above max":        {"DEFAULT_PAGE_SIZE": "200"},
		"negative retries":              {"CONFLICT_RETRIES": "-1"},
		"malformed guard":               {"DOUBLE_SUBMIT_GUARD_SECONDS": "3s"},
		"malformed shutdown":            {"SHUTDOWN_TIMEOUT": "soon"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
