package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, time.Second, cfg.TimerInterval)
	assert.Equal(t, 720*time.Hour, cfg.RedisHistoryTTL)
	assert.Equal(t, "quizmatch.results", cfg.NATSSubjectPrefix)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, int64(65536), cfg.WSMaxMessageSize)
}

func TestParseReadsPrefixedVariables(t *testing.T) {
	t.Setenv("QUIZMATCH_PORT", "9090")
	t.Setenv("QUIZMATCH_STORAGE_TYPE", "redis")
	t.Setenv("QUIZMATCH_TIMER_INTERVAL", "250ms")
	t.Setenv("QUIZMATCH_LOG_LEVEL", "debug")
	t.Setenv("PORT", "1")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "redis", cfg.StorageType)
	assert.Equal(t, 250*time.Millisecond, cfg.TimerInterval)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"storage type", "QUIZMATCH_STORAGE_TYPE", "postgres"},
		{"port", "QUIZMATCH_PORT", "0"},
		{"log level", "QUIZMATCH_LOG_LEVEL", "loud"},
		{"duration", "QUIZMATCH_TIMER_INTERVAL", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsDotenvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("QUIZMATCH_PORT=7000\nQUIZMATCH_NATS_URL=nats://example:4222\n"), 0o600))
	t.Setenv("QUIZMATCH_PORT", "7100")
	// Registered for cleanup; godotenv sets it for the rest of the process
	t.Setenv("QUIZMATCH_NATS_URL", "")
	require.NoError(t, os.Unsetenv("QUIZMATCH_NATS_URL"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Port)
	assert.Equal(t, "nats://example:4222", cfg.NATSURL)
}

func TestLoadWithoutDotenv(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestPasswordHash(t *testing.T) {
	t.Run("plaintext is hashed", func(t *testing.T) {
		hash, err := Config{AdminPassword: "secret"}.PasswordHash()
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("secret")))
	})

	t.Run("hash wins over plaintext", func(t *testing.T) {
		stored, err := bcrypt.GenerateFromPassword([]byte("other"), bcrypt.MinCost)
		require.NoError(t, err)

		hash, err := Config{AdminPasswordHash: string(stored), AdminPassword: "secret"}.PasswordHash()
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("other")))
	})

	t.Run("malformed hash", func(t *testing.T) {
		_, err := Config{AdminPasswordHash: "not-a-hash"}.PasswordHash()
		assert.Error(t, err)
	})

	t.Run("unset", func(t *testing.T) {
		hash, err := Config{}.PasswordHash()
		require.NoError(t, err)
		assert.Nil(t, hash)
	})
}
