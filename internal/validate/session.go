package validate

import (
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
)

// Summary is a snapshot of session aggregates. RTP and ProfitLoss are nil until defined.
type Summary struct {
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	StartBalance *float64  `json:"start_balance,omitempty"`
	LastBalance  *float64  `json:"last_balance,omitempty"`
	TotalWagered float64   `json:"total_wagered"`
	TotalWon     float64   `json:"total_won"`
	ProfitLoss   *float64  `json:"profit_loss,omitempty"`
	RTP          *float64  `json:"rtp,omitempty"`
	Results      int       `json:"results"`
	Accepted     int       `json:"accepted"`
}

// SessionValidator validates results and folds the accepted ones into session totals.
// One instance per monitored stream; not safe for concurrent use.
type SessionValidator struct {
	validator *ResultValidator

	id           string
	startedAt    time.Time
	startBalance *float64
	lastBalance  *float64
	totalWagered float64
	totalWon     float64
	results      int
	accepted     int
}

// NewSessionValidator starts a new session.
func NewSessionValidator(opts Options) *SessionValidator {
	s := &SessionValidator{validator: NewResultValidator(opts)}
	s.begin()
	return s
}

func (s *SessionValidator) begin() {
	s.id = uuid.NewString()
	s.startedAt = time.Now()
	s.startBalance, s.lastBalance = nil, nil
	s.totalWagered, s.totalWon = 0, 0
	s.results, s.accepted = 0, 0
}

// AddResult validates r and, when valid, updates the session totals.
func (s *SessionValidator) AddResult(r extract.Result) Validation {
	v := s.validator.Validate(r)
	s.results++
	if !v.IsValid {
		return v
	}
	s.accepted++

	if r.Balance != nil {
		b := *r.Balance
		if s.startBalance == nil {
			start := b
			s.startBalance = &start
		}
		s.lastBalance = &b
	}
	if r.Bet != nil {
		s.totalWagered += *r.Bet
	}
	if r.Win != nil && *r.Win > 0 {
		s.totalWon += *r.Win
	}
	return v
}

// ID returns the session identifier.
func (s *SessionValidator) ID() string { return s.id }

// RTP returns total won over total wagered as a percentage; ok is false when nothing was wagered.
func (s *SessionValidator) RTP() (rtp float64, ok bool) {
	if s.totalWagered <= 0 {
		return 0, false
	}
	return s.totalWon / s.totalWagered * 100, true
}

// ProfitLoss returns the last accepted balance minus the start balance.
func (s *SessionValidator) ProfitLoss() (float64, bool) {
	if s.startBalance == nil || s.lastBalance == nil {
		return 0, false
	}
	return *s.lastBalance - *s.startBalance, true
}

// Summary returns a copy of the current aggregates.
func (s *SessionValidator) Summary() Summary {
	sum := Summary{
		SessionID:    s.id,
		StartedAt:    s.startedAt,
		TotalWagered: s.totalWagered,
		TotalWon:     s.totalWon,
		Results:      s.results,
		Accepted:     s.accepted,
	}
	if s.startBalance != nil {
		v := *s.startBalance
		sum.StartBalance = &v
	}
	if s.lastBalance != nil {
		v := *s.lastBalance
		sum.LastBalance = &v
	}
	if pl, ok := s.ProfitLoss(); ok {
		sum.ProfitLoss = &pl
	}
	if rtp, ok := s.RTP(); ok {
		sum.RTP = &rtp
	}
	return sum
}

// Reset discards the session and its validation history and starts a new session.
func (s *SessionValidator) Reset() {
	s.validator.Reset()
	s.begin()
}
