package service

import "time"

// Config carries the tunables of the payment core. Defaults suit a single
// instance behind a provider that retries callbacks within a few minutes.
type Config struct {
	// LockTTL bounds how long a crashed holder can starve a lock key.
	LockTTL time.Duration
	// TxTimeout aborts a persistence transaction; expiry surfaces as a
	// transient, retryable error.
	TxTimeout time.Duration
	// ChunkDelay is the pause between batch chunks.
	ChunkDelay time.Duration
	// DefaultBatchSize bounds batch parallelism when the caller passes none.
	DefaultBatchSize int
	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration
	// RetryMaxAttempts caps retries before a failure becomes terminal.
	RetryMaxAttempts int
	// Late-fee policy: rate in basis points, clamped to [LateFeeMin, LateFeeMax].
	LateFeeRateBps int64
	LateFeeMin     int64
	LateFeeMax     int64
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		LockTTL:          30 * time.Second,
		TxTimeout:        5 * time.Second,
		ChunkDelay:       100 * time.Millisecond,
		DefaultBatchSize: 10,
		RetryBaseDelay:   2 * time.Second,
		RetryMaxAttempts: 5,
		LateFeeRateBps:   500,
		LateFeeMin:       100,
		LateFeeMax:       50000,
	}
}
