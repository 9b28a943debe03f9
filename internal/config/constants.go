package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// WebSocket channel settings
const (
	WSWriteTimeout    = 10 * time.Second
	WSMaxMessageBytes = 4096
	HeartbeatInterval = 30 * time.Second
)

// Call session policy. These are fixed by policy, not configurable per call:
// a call ending before ShortCallThreshold counts as a failed connection and
// triggers an automatic redial, up to MaxCallRetries attempts.
const (
	ShortCallThreshold = 120 * time.Second
	CallRedialDelay    = 30 * time.Second
	CallStabilityDelay = 300 * time.Second
	MaxCallRetries     = 3
)

// Background job intervals
const (
	CleanupJobInterval   = 1 * time.Hour
	CallAttemptRetention = 30 * 24 * time.Hour
)
