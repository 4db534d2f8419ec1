package publish

import "time"

// Publishing defaults
const (
	DefaultStreamPrefix = "reelwatch.events"
	DefaultMaxLen       = 10_000 // approximate XADD MAXLEN per stream

	DefaultBatcherMaxSize    = 50
	DefaultBatcherFlushDelay = 2 * time.Second

	DefaultBigWinCooldown = 30 * time.Second
)
