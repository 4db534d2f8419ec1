// Package extract turns recognized text into balance, bet, win and multiplier values.
package extract

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// Result holds the values read from one frame. Absent fields are nil with zero confidence.
type Result struct {
	GameID               string   `json:"game_id,omitempty"`
	Balance              *float64 `json:"balance,omitempty"`
	Bet                  *float64 `json:"bet,omitempty"`
	Win                  *float64 `json:"win,omitempty"`
	Multiplier           *float64 `json:"multiplier,omitempty"`
	BalanceConfidence    float64  `json:"balance_confidence"`
	BetConfidence        float64  `json:"bet_confidence"`
	WinConfidence        float64  `json:"win_confidence"`
	MultiplierConfidence float64  `json:"multiplier_confidence"`
	IsValid              bool     `json:"is_valid"`
	Error                string   `json:"error,omitempty"`
}

// Field returns the value and confidence of a named field.
func (r *Result) Field(name string) (*float64, float64) {
	switch name {
	case FieldBalance:
		return r.Balance, r.BalanceConfidence
	case FieldBet:
		return r.Bet, r.BetConfidence
	case FieldWin:
		return r.Win, r.WinConfidence
	case FieldMultiplier:
		return r.Multiplier, r.MultiplierConfidence
	}
	return nil, 0
}

// Clone returns a copy that shares no field pointers with r.
func (r *Result) Clone() *Result {
	out := *r
	out.Balance = cloneFloat(r.Balance)
	out.Bet = cloneFloat(r.Bet)
	out.Win = cloneFloat(r.Win)
	out.Multiplier = cloneFloat(r.Multiplier)
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (r *Result) set(name string, v float64, conf float64) {
	p := &v
	switch name {
	case FieldBalance:
		r.Balance, r.BalanceConfidence = p, conf
	case FieldBet:
		r.Bet, r.BetConfidence = p, conf
	case FieldWin:
		r.Win, r.WinConfidence = p, conf
	case FieldMultiplier:
		r.Multiplier, r.MultiplierConfidence = p, conf
	}
}

// Options configures an Extractor.
type Options struct {
	MinConfidence float64 // balance confidence required by the coarse validity check
}

// Extractor reads game values from frames through a Recognizer.
// It holds no per-stream state and is safe for concurrent use if the Recognizer is.
type Extractor struct {
	rec           ocr.Recognizer
	minConfidence float64
}

// New creates an extractor.
func New(rec ocr.Recognizer, opts Options) *Extractor {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	return &Extractor{rec: rec, minConfidence: opts.MinConfidence}
}

// Extract reads fields from f. With a template each region is cropped and recognized
// separately; without one the whole frame is recognized and scanned for labels.
// Unparseable fields are left absent. Only recognition failures return an error.
func (e *Extractor) Extract(ctx context.Context, f *frame.Frame, tmpl *Template) (Result, error) {
	ctx, span := trace.StartSpan(ctx, "extract")
	defer span.End()

	if err := f.Validate(); err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.RecognitionInvalidImage, "invalid frame")
	}

	var (
		res      Result
		failures []string
		err      error
	)
	if tmpl != nil {
		span.SetAttr("game_id", tmpl.GameID)
		res.GameID = tmpl.GameID
		failures, err = e.extractRegions(ctx, f, tmpl, &res)
	} else {
		failures, err = e.extractKeywords(ctx, f, &res)
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		return Result{}, err
	}

	if len(failures) > 0 {
		res.Error = "unparsed: " + strings.Join(failures, ", ")
	}
	res.IsValid = e.precheck(&res)
	span.SetAttr("valid", res.IsValid)
	return res, nil
}

func (e *Extractor) extractRegions(ctx context.Context, f *frame.Frame, tmpl *Template, res *Result) ([]string, error) {
	regions := tmpl.Regions()
	var failures []string
	for _, name := range fieldOrder {
		region, ok := regions[name]
		if !ok {
			continue
		}
		crop := f.Crop(region.Pixels(f.Width, f.Height))
		texts, err := e.rec.Recognize(ctx, crop, nil)
		if err != nil {
			return nil, recognitionError(err, name)
		}
		if len(texts) == 0 {
			failures = append(failures, name)
			continue
		}

		parse := ParseNumber
		if name == FieldMultiplier {
			parse = ParseMultiplier
		}
		v, ok := parse(texts[0].Text)
		if !ok {
			trace.Logger(ctx).Debug("unparseable field", "field", name, "text", texts[0].Text)
			failures = append(failures, name)
			continue
		}
		res.set(name, v, texts[0].Confidence)
	}
	return failures, nil
}

// extractKeywords assigns the first number found after each label keyword,
// either in the same fragment or in the one that follows it.
func (e *Extractor) extractKeywords(ctx context.Context, f *frame.Frame, res *Result) ([]string, error) {
	texts, err := e.rec.Recognize(ctx, f, nil)
	if err != nil {
		return nil, recognitionError(err, "frame")
	}

	found := map[string]bool{}
	for i, t := range texts {
		lower := strings.ToLower(t.Text)
		for _, kw := range keywords {
			if found[kw.field] {
				continue
			}
			idx := indexAny(lower, kw.words)
			if idx < 0 {
				continue
			}
			if v, ok := firstNumber(lower[idx:]); ok {
				res.set(kw.field, v, t.Confidence)
				found[kw.field] = true
			} else if i+1 < len(texts) {
				if v, ok := firstNumber(texts[i+1].Text); ok {
					res.set(kw.field, v, texts[i+1].Confidence)
					found[kw.field] = true
				}
			}
		}
		if !found[FieldMultiplier] && multiplierPattern.MatchString(t.Text) {
			if v, ok := ParseMultiplier(t.Text); ok {
				res.set(FieldMultiplier, v, t.Confidence)
				found[FieldMultiplier] = true
			}
		}
	}

	var failures []string
	for _, kw := range keywords {
		if !found[kw.field] {
			failures = append(failures, kw.field)
		}
	}
	return failures, nil
}

// precheck is the coarse validity test; ResultValidator makes the final decision.
func (e *Extractor) precheck(r *Result) bool {
	if r.Balance == nil || *r.Balance < 0 {
		return false
	}
	if r.Bet != nil && *r.Bet > *r.Balance {
		return false
	}
	if r.Win != nil && *r.Win < 0 {
		return false
	}
	return r.BalanceConfidence >= e.minConfidence
}

func indexAny(s string, words []string) int {
	best := -1
	for _, w := range words {
		if i := strings.Index(s, w); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

func recognitionError(err error, region string) error {
	if apperrors.IsCode(err, apperrors.Cancelled) {
		return err
	}
	return apperrors.Wrap(err, apperrors.RecognitionFailed, fmt.Sprintf("recognizing %s", region)).
		WithMetadata("region", region)
}
