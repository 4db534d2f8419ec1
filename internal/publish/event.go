// Package publish delivers stream events to downstream consumers.
package publish

import (
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/validate"
)

// Event types
const (
	TypeBalanceUpdate = "balance_update"
	TypeBigWin        = "big_win"
	TypeStreamReset   = "stream_reset"
)

// Event is one validated observation of a stream.
type Event struct {
	Type       string            `json:"type"`
	StreamID   string            `json:"stream_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Extraction *extract.Result   `json:"extraction,omitempty"`
	Session    *validate.Summary `json:"session,omitempty"`
}
