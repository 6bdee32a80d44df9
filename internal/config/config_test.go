package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"DURAK_ENV", "PORT", "REDIS_ADDR", "REDIS_DB", "PG_HOST", "PG_PORT", "TOKEN_EXPIRE_TIME",
		"DISCONNECT_GRACE", "ENFORCE_MOVE_TIMER", "SETTLEMENT_MAX_ATTEMPTS", "LOG_LEVEL", "ALLOWED_ORIGINS",
		"AUTH_PRIVATE_KEY", "AUTH_PUBLIC_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, 10*time.Minute, cfg.DisconnectGrace)
	assert.False(t, cfg.EnforceMoveTimer)
	assert.Equal(t, time.Duration(0), cfg.TokenExpire)
	assert.Equal(t, 5, cfg.SettlementMaxAttempts)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.PostgresEnabled())
	assert.Equal(t, []string{"https://*", "http://*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AuthKeysConfigured())
}

func TestLoadAuthKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_PRIVATE_KEY", "/etc/durak/jwt.key")
	t.Setenv("AUTH_PUBLIC_KEY", "/etc/durak/jwt.pub")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AuthKeysConfigured())
	assert.Equal(t, "/etc/durak/jwt.key", cfg.AuthPrivateKey)
	assert.Equal(t, "/etc/durak/jwt.pub", cfg.AuthPublicKey)

	// half a key pair is a misconfiguration
	t.Setenv("AUTH_PUBLIC_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "AUTH_PRIVATE_KEY")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DURAK_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PG_HOST", "db")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("DISCONNECT_GRACE", "30")
	t.Setenv("ENFORCE_MOVE_TIMER", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "https://durak.example, https://www.durak.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.PostgresEnabled())
	assert.Equal(t, 72*time.Hour, cfg.TokenExpire)
	assert.Equal(t, 30*time.Second, cfg.DisconnectGrace)
	assert.True(t, cfg.EnforceMoveTimer)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://durak.example", "https://www.durak.example"}, cfg.AllowedOrigins)
}

func TestLoadRejectsGarbage(t *testing.T) {
	for key, val := range map[string]string{
		"REDIS_DB":                "two",
		"TOKEN_EXPIRE_TIME":       "soon",
		"DISCONNECT_GRACE":        "forever",
		"ENFORCE_MOVE_TIMER":      "maybe",
		"SETTLEMENT_MAX_ATTEMPTS": "0",
		"LOG_LEVEL":               "loud",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := Config{PGUser: "u", PGPassword: "p", PGHost: "h", PGPort: "5432", PGDatabase: "durak"}
	assert.Equal(t, "postgres://u:p@h:5432/durak", cfg.PostgresURL())
}
