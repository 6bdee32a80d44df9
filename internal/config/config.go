// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// Config is everything the binaries read from the environment.
type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string
	LogLevel       logrus.Level

	RedisAddr string
	RedisDB   int

	PGUser     string
	PGPassword string
	PGHost     string
	PGPort     string
	PGDatabase string

	// TokenExpire is the JWT lifetime; zero means tokens never expire.
	TokenExpire time.Duration
	// AuthPrivateKey and AuthPublicKey are paths to raw ed25519 keys. Without them a
	// key pair is generated at startup and tokens die with the process.
	AuthPrivateKey string
	AuthPublicKey  string

	DisconnectGrace  time.Duration
	EnforceMoveTimer bool
	ActionQueue      string

	SettlementQueue       string
	SettlementMaxAttempts int
	SettlementPopTimeout  time.Duration
	SettlementRetryBase   time.Duration
}

// Load reads the environment (plus any .env file) and applies defaults.
func Load() (Config, error) {
	cfg := Config{
		Env:                   getEnv("DURAK_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		PGUser:                os.Getenv("POSTGRES_USER"),
		PGPassword:            os.Getenv("POSTGRES_PASSWORD"),
		PGHost:                os.Getenv("PG_HOST"),
		PGPort:                getEnv("PG_PORT", "5432"),
		PGDatabase:            os.Getenv("PG_DATABASE"),
		AuthPrivateKey:        os.Getenv("AUTH_PRIVATE_KEY"),
		AuthPublicKey:         os.Getenv("AUTH_PUBLIC_KEY"),
		ActionQueue:           getEnv("ACTION_QUEUE_NAME", "durak_actions"),
		SettlementQueue:       getEnv("SETTLEMENT_QUEUE_NAME", "durak_settlements"),
		SettlementMaxAttempts: 5,
	}

	if (cfg.AuthPrivateKey == "") != (cfg.AuthPublicKey == "") {
		return cfg, fmt.Errorf("AUTH_PRIVATE_KEY and AUTH_PUBLIC_KEY must be set together")
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.SettlementMaxAttempts, err = getEnvInt("SETTLEMENT_MAX_ATTEMPTS", 5); err != nil {
		return cfg, err
	}
	if cfg.SettlementMaxAttempts < 1 {
		return cfg, fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.DisconnectGrace, err = getEnvDuration("DISCONNECT_GRACE", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.SettlementPopTimeout, err = getEnvDuration("SETTLEMENT_POP_TIMEOUT", 3*time.Second); err != nil {
		return cfg, err
	}
	if cfg.SettlementRetryBase, err = getEnvDuration("SETTLEMENT_RETRY_BASE", 500*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.EnforceMoveTimer, err = getEnvBool("ENFORCE_MOVE_TIMER", false); err != nil {
		return cfg, err
	}

	switch expire := os.Getenv("TOKEN_EXPIRE_TIME"); expire {
	case "", "0", "never":
		cfg.TokenExpire = 0
	default:
		if cfg.TokenExpire, err = time.ParseDuration(expire); err != nil {
			return cfg, fmt.Errorf("failed to parse TOKEN_EXPIRE_TIME: %w", err)
		}
	}

	cfg.LogLevel = logrus.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if cfg.LogLevel, err = logrus.ParseLevel(lvl); err != nil {
			return cfg, fmt.Errorf("failed to parse LOG_LEVEL: %w", err)
		}
	}

	if cfg.Production() {
		for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{"https://*", "http://*"}
	}
	return cfg, nil
}

// Production reports whether the server runs with production restrictions.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Addr is the listen address. Outside production only localhost is bound.
func (c Config) Addr() string {
	if c.Production() {
		return ":" + c.Port
	}
	return "localhost:" + c.Port
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// PostgresEnabled reports whether a database host was configured.
func (c Config) PostgresEnabled() bool {
	return c.PGHost != ""
}

// AuthKeysConfigured reports whether the JWT keys come from files.
func (c Config) AuthKeysConfigured() bool {
	return c.AuthPrivateKey != "" && c.AuthPublicKey != ""
}

// PostgresURL builds the pgx connection string.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return d, nil
}
