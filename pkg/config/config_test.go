package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, StorageMemory, cfg.Ledger.StorageDriver)
	assert.Equal(t, 2*time.Second, cfg.Ledger.KeyTimeout)
	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.RetryBackoff)
	assert.Zero(t, cfg.Reservations.TTL, "sin TTL las reservas no vencen")
	assert.Equal(t, time.Minute, cfg.Reservations.SweepInterval)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_VariablesDeEntorno(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("LEDGER_KEY_TIMEOUT_MS", "750")
	t.Setenv("LEDGER_MAX_RETRIES", "0")
	t.Setenv("RESERVATION_TTL_MINUTES", "15")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Ledger.StorageDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.KeyTimeout)
	assert.Equal(t, 0, cfg.Ledger.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Reservations.TTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestValidate_RechazaValoresInvalidos(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		msg    string
	}{
		{"timeout cero", func(c *Config) { c.Ledger.KeyTimeout = 0 }, "LEDGER_KEY_TIMEOUT_MS"},
		{"reintentos negativos", func(c *Config) { c.Ledger.MaxRetries = -1 }, "LEDGER_MAX_RETRIES"},
		{"driver desconocido", func(c *Config) { c.Ledger.StorageDriver = "mongo" }, "STORAGE_DRIVER"},
		{"barrido cero", func(c *Config) { c.Reservations.SweepInterval = 0 }, "RESERVATION_SWEEP_INTERVAL_SECONDS"},
		{"puerto", func(c *Config) { c.HTTP.Port = 70000 }, "HTTP_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:word", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aword@db:5432/ledger?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgresql://x@y/z"
	assert.Equal(t, "postgresql://x@y/z", c.ConnectionString())
}
