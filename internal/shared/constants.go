package shared

import "time"

// HTTP Client Configuration
const (
	DefaultShutdownTimeout = 30 * time.Second
)

// Cache Configuration
const (
	UserInfoCacheTTL = 1 * time.Minute
	ProfileCacheTTL  = 24 * time.Hour
	CacheSweepPeriod = 5 * time.Minute
)

// Rate Limit Configuration
const (
	DefaultWindow       = 1 * time.Minute
	DefaultWindowLimit  = 60
	LoginWindowLimit    = 10
	ChatWindowLimit     = 20
	LimiterSweepPeriod  = 2 * time.Minute
	LimiterIdleEviction = 2 * time.Minute
)

// Extraction Configuration
const (
	ExtractionWorkers   = 4
	ExtractionQueueSize = 64
)

// API Configuration
const (
	DefaultMaxTokens = 2000
	APIKeyLength     = 32
	HistoryPageSize  = 20
	MaxHistoryPage   = 100
)
