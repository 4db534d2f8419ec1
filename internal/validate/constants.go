package validate

// Validation defaults
const (
	DefaultMinConfidence   = 0.85
	DefaultMaxBalance      = 10_000_000
	DefaultMaxBet          = 100_000
	DefaultMaxMultiplier   = 100_000
	DefaultOutlierZScore   = 3.0
	DefaultHistoryWindow   = 50
	DefaultValidConfidence = 0.7

	// Outlier check needs this many balance samples
	MinOutlierSamples = 5
)

// Confidence penalties applied per failed check
const (
	penaltyMissingBalance  = 0.5
	penaltyNegativeBalance = 0.0
	penaltyBalanceTooLarge = 0.5
	penaltyNegativeBet     = 0.5
	penaltyBetTooLarge     = 0.8
	penaltyNegativeWin     = 0.5
	penaltyMultiplierLarge = 0.8
	penaltyBetOverBalance  = 0.7
	penaltyOutlier         = 0.8
)
