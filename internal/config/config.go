package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is prepended to every variable name
const EnvPrefix = "QUIZMATCH_"

// Config holds the server configuration, read from QUIZMATCH_* variables
type Config struct {
	// HTTP
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT"             envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StorageType     string        `env:"STORAGE_TYPE"      envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"         envDefault:"redis://localhost:6379"`
	RedisPoolSize   int           `env:"REDIS_POOL_SIZE"   envDefault:"10"`
	RedisHistoryTTL time.Duration `env:"REDIS_HISTORY_TTL" envDefault:"720h"`

	// Result publishing is disabled when NATSURL is empty
	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"quizmatch.results"`

	// AdminPasswordHash is a bcrypt hash. AdminPassword is hashed at startup
	// when no hash is given.
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
	AdminPassword     string `env:"ADMIN_PASSWORD"`

	TimerInterval time.Duration `env:"TIMER_INTERVAL" envDefault:"1s"`

	// Websocket
	WSReadBufferSize  int           `env:"WS_READ_BUFFER_SIZE"  envDefault:"1024"`
	WSWriteBufferSize int           `env:"WS_WRITE_BUFFER_SIZE" envDefault:"1024"`
	WSSendBufferSize  int           `env:"WS_SEND_BUFFER_SIZE"  envDefault:"256"`
	WSMaxMessageSize  int64         `env:"WS_MAX_MESSAGE_SIZE"  envDefault:"65536"`
	WSPingInterval    time.Duration `env:"WS_PING_INTERVAL"     envDefault:"30s"`

	// Session engine
	SessionQueueSize         int           `env:"SESSION_QUEUE_SIZE"         envDefault:"1024"`
	SessionBackgroundTimeout time.Duration `env:"SESSION_BACKGROUND_TIMEOUT" envDefault:"10s"`
}

// Load reads .env files when present, then parses the environment.
// Variables already set in the environment win over .env entries.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot
func (c Config) Validate() error {
	switch c.StorageType {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid %sSTORAGE_TYPE %q: must be memory or redis", EnvPrefix, c.StorageType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %sPORT %d", EnvPrefix, c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid %sLOG_LEVEL %q: %w", EnvPrefix, c.LogLevel, err)
	}
	return level, nil
}

// PasswordHash returns the bcrypt hash guarding delete-all. It is nil when
// no admin password is configured, which rejects every attempt.
func (c Config) PasswordHash() ([]byte, error) {
	if c.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.AdminPasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid %sADMIN_PASSWORD_HASH: %w", EnvPrefix, err)
		}
		return []byte(c.AdminPasswordHash), nil
	}
	if c.AdminPassword == "" {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return hash, nil
}
