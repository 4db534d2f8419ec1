// Package validate scores extraction results and aggregates accepted ones into session totals.
package validate

import (
	"fmt"
	"math"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
)

// Options configures range and confidence checks.
type Options struct {
	MinConfidence   float64 // per-field confidence floor
	MaxBalance      float64
	MaxBet          float64
	MaxMultiplier   float64
	OutlierZScore   float64
	HistoryWindow   int     // balance/bet history capacity
	ValidConfidence float64 // overall score required for validity
}

// DefaultOptions returns the default thresholds.
func DefaultOptions() Options {
	return Options{
		MinConfidence:   DefaultMinConfidence,
		MaxBalance:      DefaultMaxBalance,
		MaxBet:          DefaultMaxBet,
		MaxMultiplier:   DefaultMaxMultiplier,
		OutlierZScore:   DefaultOutlierZScore,
		HistoryWindow:   DefaultHistoryWindow,
		ValidConfidence: DefaultValidConfidence,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinConfidence <= 0 {
		o.MinConfidence = d.MinConfidence
	}
	if o.MaxBalance <= 0 {
		o.MaxBalance = d.MaxBalance
	}
	if o.MaxBet <= 0 {
		o.MaxBet = d.MaxBet
	}
	if o.MaxMultiplier <= 0 {
		o.MaxMultiplier = d.MaxMultiplier
	}
	if o.OutlierZScore <= 0 {
		o.OutlierZScore = d.OutlierZScore
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = d.HistoryWindow
	}
	if o.ValidConfidence <= 0 {
		o.ValidConfidence = d.ValidConfidence
	}
	return o
}

// Validation is the outcome of checking one result.
type Validation struct {
	IsValid         bool     `json:"is_valid"`
	ConfidenceScore float64  `json:"confidence_score"`
	Issues          []string `json:"issues"`
	Outlier         bool     `json:"outlier"`
}

// ResultValidator checks results against ranges, each other, and recent history.
// It is owned by a single stream and is not safe for concurrent use.
type ResultValidator struct {
	opts        Options
	balanceHist *history
	betHist     *history
}

// NewResultValidator creates a validator with empty histories.
func NewResultValidator(opts Options) *ResultValidator {
	opts = opts.withDefaults()
	return &ResultValidator{
		opts:        opts,
		balanceHist: newHistory(opts.HistoryWindow),
		betHist:     newHistory(opts.HistoryWindow),
	}
}

// Options returns the effective options.
func (v *ResultValidator) Options() Options { return v.opts }

// Validate scores r. Every failed check appends an issue and scales the confidence score,
// so problems compound. An outlier is reported but does not make the result invalid on its own.
func (v *ResultValidator) Validate(r extract.Result) Validation {
	out := Validation{ConfidenceScore: 1.0}
	blocking := 0
	issue := func(factor float64, format string, args ...any) {
		out.Issues = append(out.Issues, fmt.Sprintf(format, args...))
		out.ConfidenceScore *= factor
		blocking++
	}

	if r.Balance == nil {
		issue(penaltyMissingBalance, "missing balance")
	}

	for _, name := range []string{extract.FieldBalance, extract.FieldBet, extract.FieldWin, extract.FieldMultiplier} {
		val, conf := r.Field(name)
		if val != nil && conf < v.opts.MinConfidence {
			issue(conf, "low %s confidence: %.2f", name, conf)
		}
	}

	if r.Balance != nil {
		if *r.Balance < 0 {
			issue(penaltyNegativeBalance, "negative balance: %.2f", *r.Balance)
		}
		if *r.Balance > v.opts.MaxBalance {
			issue(penaltyBalanceTooLarge, "balance exceeds maximum: %.2f", *r.Balance)
		}
	}
	if r.Bet != nil {
		if *r.Bet < 0 {
			issue(penaltyNegativeBet, "negative bet: %.2f", *r.Bet)
		}
		if *r.Bet > v.opts.MaxBet {
			issue(penaltyBetTooLarge, "bet exceeds maximum: %.2f", *r.Bet)
		}
	}
	if r.Win != nil && *r.Win < 0 {
		issue(penaltyNegativeWin, "negative win: %.2f", *r.Win)
	}
	if r.Multiplier != nil && *r.Multiplier > v.opts.MaxMultiplier {
		issue(penaltyMultiplierLarge, "multiplier exceeds maximum: %.2f", *r.Multiplier)
	}
	if r.Bet != nil && r.Balance != nil && *r.Bet > *r.Balance {
		issue(penaltyBetOverBalance, "bet exceeds balance: %.2f > %.2f", *r.Bet, *r.Balance)
	}

	if r.Balance != nil && v.balanceHist.len() >= MinOutlierSamples {
		mean, std := v.balanceHist.meanStd()
		if std > 0 {
			if z := math.Abs(*r.Balance-mean) / std; z > v.opts.OutlierZScore {
				out.Issues = append(out.Issues, fmt.Sprintf("balance outlier: z=%.2f", z))
				out.ConfidenceScore *= penaltyOutlier
				out.Outlier = true
			}
		}
	}

	out.IsValid = blocking == 0 && out.ConfidenceScore >= v.opts.ValidConfidence

	if r.Balance != nil && r.BalanceConfidence >= v.opts.MinConfidence {
		v.balanceHist.push(*r.Balance)
	}
	if r.Bet != nil && r.BetConfidence >= v.opts.MinConfidence {
		v.betHist.push(*r.Bet)
	}
	return out
}

// BalanceHistory returns recent confident balances, oldest first.
func (v *ResultValidator) BalanceHistory() []float64 { return v.balanceHist.values() }

// BetHistory returns recent confident bets, oldest first.
func (v *ResultValidator) BetHistory() []float64 { return v.betHist.values() }

// Reset clears the histories.
func (v *ResultValidator) Reset() {
	v.balanceHist.clear()
	v.betHist.clear()
}
