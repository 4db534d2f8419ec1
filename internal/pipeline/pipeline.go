// Package pipeline runs change detection, preprocessing, extraction and validation for one stream.
package pipeline

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/config"
	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/syncx"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/validate"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/vision/change"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/vision/preprocess"
)

// Result is returned from every ProcessFrame call.
type Result struct {
	Extraction       *extract.Result      `json:"extraction,omitempty"`
	Validation       *validate.Validation `json:"validation,omitempty"`
	FrameChanged     bool                 `json:"frame_changed"`
	ChangePercentage float64              `json:"change_percentage"`
	Processed        bool                 `json:"processed"`
	Error            string               `json:"error,omitempty"`
	ErrorKind        ErrorKind            `json:"error_kind,omitempty"`
}

// Observer receives every frame outcome, typically for metrics.
type Observer interface {
	ObserveFrame(streamID string, res Result, elapsed time.Duration)
}

// Options carries the collaborators of a pipeline.
type Options struct {
	StreamID        string
	Template        *extract.Template // nil selects keyword extraction
	OnBalanceUpdate func(extract.Result)
	OnBigWin        func(extract.Result)
	Observer        Observer
}

// Pipeline owns all rolling state of one stream. ProcessFrame, Reset and SetTemplate
// must be called from a single goroutine; Stats and State may be called from any.
type Pipeline struct {
	cfg       config.Pipeline
	opts      Options
	detector  change.ChangeDetector
	processor *preprocess.Processor
	extractor *extract.Extractor
	session   *validate.SessionValidator
	template  *extract.Template

	state    *syncx.Value[State]
	counters counters
	snapshot *syncx.Value[Stats]

	last     *extract.Result // most recent processed extraction
	lastGood *extract.Result // most recent extraction that passed validation
}

// New builds a pipeline. Invalid settings or templates are rejected here so that
// no frame is ever processed with them.
func New(cfg config.Pipeline, rec ocr.Recognizer, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.New(apperrors.ConfigInvalid, "pipeline requires a recognizer")
	}

	p := &Pipeline{
		cfg:       cfg,
		opts:      opts,
		detector:  newDetector(cfg),
		extractor: extract.New(rec, extract.Options{MinConfidence: cfg.MinConfidence}),
		session:   NewSession(cfg),
		state:     syncx.NewValue(StateIdle),
		snapshot:  syncx.NewValue(Stats{}),
	}
	if err := p.SetTemplate(opts.Template); err != nil {
		return nil, err
	}
	p.publishStats()
	return p, nil
}

func newDetector(cfg config.Pipeline) change.ChangeDetector {
	opts := change.Options{
		Method:          cfg.ComparisonMethod,
		Threshold:       cfg.ChangeThreshold,
		RegionThreshold: cfg.RegionThreshold,
		BlockSize:       cfg.StructuralBlockSize,
		BlockThreshold:  cfg.StructuralBlockThreshold,
	}
	if !cfg.AdaptiveDetection {
		return change.NewDetector(opts)
	}
	return change.NewAdaptiveDetector(opts, change.AdaptiveOptions{
		Multiplier: cfg.AdaptiveMultiplier,
		Minimum:    cfg.AdaptiveMin,
		Maximum:    cfg.AdaptiveMax,
	})
}

// NewSession creates a session validator from pipeline settings.
func NewSession(cfg config.Pipeline) *validate.SessionValidator {
	return validate.NewSessionValidator(validate.Options{
		MinConfidence:   cfg.MinConfidence,
		MaxBalance:      cfg.MaxBalance,
		MaxBet:          cfg.MaxBet,
		MaxMultiplier:   cfg.MaxMultiplier,
		OutlierZScore:   cfg.OutlierZScore,
		HistoryWindow:   cfg.HistoryWindow,
		ValidConfidence: cfg.ValidConfidence,
	})
}

// SetTemplate binds t (nil unbinds). Template preprocessing flags, when any are set,
// replace the configured preprocessing. Region snapshots are dropped.
func (p *Pipeline) SetTemplate(t *extract.Template) error {
	if t != nil {
		if err := t.Validate(); err != nil {
			return err
		}
		c := *t
		t = &c
	}
	p.template = t

	procOpts := p.cfg.Preprocess
	if t != nil && !t.Preprocess.IsZero() {
		procOpts = t.ProcessorOptions()
	}
	p.processor = preprocess.New(procOpts)
	p.detector.Reset()
	return nil
}

// Template returns the bound template, or nil.
func (p *Pipeline) Template() *extract.Template { return p.template }

// State returns the current processing state.
func (p *Pipeline) State() State { return p.state.Load() }

// ProcessFrame runs one frame through the pipeline. Failures are reported in the
// result; nothing escapes as an error or panic.
func (p *Pipeline) ProcessFrame(ctx context.Context, f *frame.Frame) (res Result) {
	start := time.Now()
	ctx = trace.WithStream(ctx, p.opts.StreamID)
	ctx, span := trace.StartSpan(ctx, "process_frame")
	defer span.End()

	p.counters.frames++
	defer func() {
		if r := recover(); r != nil {
			trace.Logger(ctx).Error("frame processing panicked", "panic", r)
			res = p.recognitionFailure(res, apperrors.Newf(apperrors.Internal, "panic: %v", r))
		}
		p.state.Store(StateIdle)
		span.SetAttr("processed", res.Processed)
		span.SetAttr("changed", res.FrameChanged)
		if res.Error != "" {
			span.SetAttr("error", res.Error)
		}
		p.publishStats()
		if p.opts.Observer != nil {
			p.opts.Observer.ObserveFrame(p.opts.StreamID, res, time.Since(start))
		}
	}()

	if err := f.Validate(); err != nil {
		return p.recognitionFailure(res, apperrors.Wrap(err, apperrors.RecognitionInvalidImage, "invalid frame"))
	}

	p.state.Store(StateDetecting)
	var regions map[string]image.Rectangle
	if p.template != nil {
		regions = p.template.PixelRegions(f.Width, f.Height)
	}
	cr := p.detector.Detect(f, regions)
	res.FrameChanged = cr.HasChanged
	res.ChangePercentage = cr.ChangePercentage

	if !cr.HasChanged && p.cfg.SkipUnchangedFrames {
		p.counters.skipped++
		if p.last != nil {
			res.Extraction = p.last.Clone()
		}
		return res
	}

	p.state.Store(StateProcessing)
	img := p.preprocess(f)
	ext, err := p.extractor.Extract(ctx, img, p.template)
	if err != nil {
		trace.Logger(ctx).Warn("recognition failed", "error", err)
		return p.recognitionFailure(res, err)
	}

	v := p.session.AddResult(ext)
	p.state.Store(StateValidated)
	p.counters.processed++
	p.last = ext.Clone()
	res.Processed = true
	res.Extraction = &ext
	res.Validation = &v

	switch {
	case !v.IsValid:
		p.counters.invalid++
		res.ErrorKind = KindValidation
		res.Error = strings.Join(v.Issues, "; ")
	case ext.Error != "":
		res.ErrorKind = KindParse
		res.Error = ext.Error
	}
	if v.IsValid {
		p.lastGood = p.last
		p.notify(ctx, ext)
	}
	return res
}

func (p *Pipeline) preprocess(f *frame.Frame) *frame.Frame {
	if p.cfg.EnhanceNumbers {
		return preprocess.EnhanceForNumbers(f)
	}
	return p.processor.Process(f)
}

// recognitionFailure marks the frame unprocessed and carries the last good extraction.
func (p *Pipeline) recognitionFailure(res Result, err error) Result {
	p.counters.failures++
	res.Processed = false
	res.Validation = nil
	res.Extraction = nil
	if p.lastGood != nil {
		res.Extraction = p.lastGood.Clone()
	}
	res.Error = err.Error()
	res.ErrorKind = KindRecognition
	return res
}

// notify fires callbacks for a validated extraction.
func (p *Pipeline) notify(ctx context.Context, ext extract.Result) {
	if ext.Balance != nil && p.opts.OnBalanceUpdate != nil {
		p.opts.OnBalanceUpdate(ext)
	}
	if ext.Multiplier != nil && *ext.Multiplier >= p.cfg.BigWinThreshold {
		p.counters.bigWins++
		trace.Logger(ctx).Info("big win", "multiplier", *ext.Multiplier)
		if p.opts.OnBigWin != nil {
			p.opts.OnBigWin(ext)
		}
	}
}

// Reset clears detector snapshots, validation history and session totals.
func (p *Pipeline) Reset() {
	p.detector.Reset()
	p.session.Reset()
	p.counters = counters{}
	p.last, p.lastGood = nil, nil
	p.state.Store(StateIdle)
	p.publishStats()
}

// Session exposes the session validator for read-only inspection.
func (p *Pipeline) Session() *validate.SessionValidator { return p.session }
