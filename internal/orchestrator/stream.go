package orchestrator

import (
	"context"
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/capture"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/config"
	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/metrics"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/pipeline"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/publish"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// worker owns the pipeline and source of one stream. Only its goroutine
// touches the pipeline; other goroutines go through do.
type worker struct {
	stream   config.Stream
	pipeline *pipeline.Pipeline
	source   capture.Source
	metrics  *metrics.Metrics
	interval time.Duration
	ctl      chan func(*pipeline.Pipeline)
	cancel   context.CancelFunc
	done     chan struct{}
}

func (m *Manager) newWorker(s config.Stream) (*worker, error) {
	w := &worker{
		stream:  s,
		metrics: m.deps.Metrics,
		ctl:     make(chan func(*pipeline.Pipeline), ControlBuffer),
		done:    make(chan struct{}),
	}
	if rate := m.cfg.Pipeline.MaxProcessingRate; rate > 0 {
		w.interval = time.Duration(float64(time.Second) / rate)
	}

	opts := pipeline.Options{
		StreamID:        s.ID,
		Template:        m.template(s),
		OnBalanceUpdate: func(ext extract.Result) { m.onBalance(w, ext) },
		OnBigWin:        func(ext extract.Result) { m.onBigWin(w, ext) },
	}
	if m.deps.Metrics != nil {
		opts.Observer = m.deps.Metrics
	}
	p, err := pipeline.New(m.cfg.Pipeline, m.deps.Recognizer, opts)
	if err != nil {
		return nil, err
	}
	w.pipeline = p

	src, err := m.deps.OpenSource(s)
	if err != nil {
		return nil, err
	}
	w.source = src
	return w, nil
}

// template resolves the template of s. Streams whose game has no template yet
// start in keyword mode and are rebound by RegisterTemplate.
func (m *Manager) template(s config.Stream) *extract.Template {
	if s.GameID == "" || m.deps.Templates == nil {
		return nil
	}
	t, err := m.deps.Templates.Get(s.GameID)
	if err != nil {
		ctx := trace.WithStream(context.Background(), s.ID)
		trace.Logger(ctx).Warn("no template for game, using keyword extraction", "game_id", s.GameID)
		return nil
	}
	return t
}

func (m *Manager) onBalance(w *worker, ext extract.Result) {
	summary := w.pipeline.Session().Summary()
	m.emit(publish.Event{
		Type:       publish.TypeBalanceUpdate,
		StreamID:   w.stream.ID,
		SessionID:  summary.SessionID,
		Extraction: &ext,
		Session:    &summary,
	})
}

func (m *Manager) onBigWin(w *worker, ext extract.Result) {
	if m.deps.Metrics != nil {
		m.deps.Metrics.ObserveBigWin(w.stream.ID)
	}
	if !m.cooldown.Allow(w.stream.ID) {
		return
	}
	summary := w.pipeline.Session().Summary()
	m.emit(publish.Event{
		Type:       publish.TypeBigWin,
		StreamID:   w.stream.ID,
		SessionID:  summary.SessionID,
		Extraction: &ext,
		Session:    &summary,
	})
}

// run starts the capture loop. Frames are taken at most once per interval.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	ctx = trace.WithStream(ctx, w.stream.ID)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-w.ctl:
			fn(w.pipeline)
		case <-timer.C:
			start := time.Now()
			interval := w.interval
			if !w.tick(ctx) {
				interval = max(interval, CaptureBackoff)
			}
			timer.Reset(max(interval-time.Since(start), 0))
		}
	}
}

// tick captures and processes one frame. It reports false when capture failed.
func (w *worker) tick(ctx context.Context) bool {
	ctx, span := trace.StartSpan(ctx, "stream_tick")
	defer span.End()

	f, err := w.source.Capture(ctx)
	if w.metrics != nil {
		w.metrics.ObserveCapture(w.stream.ID, err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Warn("capture failed", "error", err)
		return false
	}

	res := w.pipeline.ProcessFrame(ctx, f)
	span.SetAttr("processed", res.Processed)
	if w.metrics != nil {
		w.metrics.ObserveStats(w.pipeline.Stats())
	}
	return true
}

// do runs fn on the worker goroutine and waits for it.
func (w *worker) do(ctx context.Context, fn func(*pipeline.Pipeline) error) error {
	ctx, cancel := context.WithTimeout(ctx, ControlTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	select {
	case w.ctl <- func(p *pipeline.Pipeline) { errCh <- fn(p) }:
	case <-w.done:
		return notFound(w.stream.ID)
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.Timeout, "stream busy")
	}

	select {
	case err := <-errCh:
		return err
	case <-w.done:
		return notFound(w.stream.ID)
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.Timeout, "stream busy")
	}
}
