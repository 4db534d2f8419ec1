package resilience

import "time"

// Breaker defaults
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3
	DefaultName              = "default"

	// The recognizer sits on the per-frame path: trip early, probe again soon.
	RecognizerThreshold         = 3
	RecognizerResetTimeout      = 10 * time.Second
	RecognizerHalfOpenSuccesses = 2
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // for logs
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // time spent open before a probe is admitted
	HalfOpenSuccesses int           // successful probes needed to close
}

// DefaultConfig returns general purpose settings.
func DefaultConfig() Config {
	return Config{
		Name:              DefaultName,
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// RecognizerConfig returns the settings used in front of the recognition service.
func RecognizerConfig() Config {
	return Config{
		Name:              "recognizer",
		Threshold:         RecognizerThreshold,
		ResetTimeout:      RecognizerResetTimeout,
		HalfOpenSuccesses: RecognizerHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
