// Package orchestrator runs one extraction pipeline per monitored stream.
package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Event history configuration
	HistoryMaxEntries  = 500
	HistoryEventBuffer = 100

	// Control requests queued per stream worker
	ControlBuffer = 4

	// Pause after a failed capture before the next attempt
	CaptureBackoff = 2 * time.Second

	// Upper bound on how long a control request waits for its worker
	ControlTimeout = 10 * time.Second
)
