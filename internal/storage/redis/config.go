package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// MatchHistoryTTL expires the saved match history list; zero keeps it forever
	MatchHistoryTTL time.Duration

	// TxRetries bounds optimistic retries of read-modify-write updates
	TxRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:             "redis://localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		MatchHistoryTTL: 30 * 24 * time.Hour,
		TxRetries:       10,
	}
}
