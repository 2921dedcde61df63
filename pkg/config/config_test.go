package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_DEFAULT_UNIT_VOLUME", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "stock-ledger", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "1", cfg.Ledger.DefaultUnitVolume.String())
	assert.False(t, cfg.DB.AutoMigrate)
	assert.Equal(t, StorePostgres, cfg.Ledger.Store)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("IDEMPOTENCY_TTL_MINUTES", "30")
	t.Setenv("LEDGER_DEFAULT_UNIT_VOLUME", "0.25")
	t.Setenv("LEDGER_STORE", " Memory ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, "0.25", cfg.Ledger.DefaultUnitVolume.String())
	assert.Equal(t, StoreMemory, cfg.Ledger.Store)
}

func TestLoad_InvalidStore(t *testing.T) {
	t.Setenv("LEDGER_STORE", "sqlite")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidUnitVolume(t *testing.T) {
	t.Setenv("LEDGER_DEFAULT_UNIT_VOLUME", "-1")
	_, err := Load()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/ledger?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
