package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/capture"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/config"
	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/metrics"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/orchestrator/history"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/pipeline"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/publish"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// SourceOpener opens the frame source of a stream.
type SourceOpener func(s config.Stream) (capture.Source, error)

// Deps are the collaborators shared by every stream.
type Deps struct {
	Recognizer ocr.Recognizer
	Templates  *extract.Registry // nil runs every stream in keyword mode
	Publisher  publish.Publisher // nil disables downstream publishing
	Metrics    *metrics.Metrics  // optional
	OpenSource SourceOpener      // nil opens ffmpeg or directory sources
}

// Manager coordinates all monitored streams.
type Manager struct {
	cfg      *config.Config
	deps     Deps
	history  *history.MemoryStore
	cooldown *publish.Cooldown

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	streams map[string]*worker
}

// New creates a new manager
func New(cfg *config.Config, deps Deps) *Manager {
	if deps.OpenSource == nil {
		ffcfg := capture.FFmpegConfig{Path: cfg.FFmpegPath, Timeout: cfg.CaptureTimeout}
		deps.OpenSource = func(s config.Stream) (capture.Source, error) {
			return capture.Open(s.URL, ffcfg)
		}
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		history:  history.NewStore(HistoryMaxEntries, HistoryEventBuffer),
		cooldown: publish.NewCooldown(cfg.BigWinCooldown),
		streams:  make(map[string]*worker),
	}
}

// Start begins monitoring the configured streams. Streams that fail to start
// are logged and skipped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return apperrors.New(apperrors.Internal, "manager already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	log := trace.Logger(ctx)
	for _, s := range m.cfg.Streams {
		if err := m.AddStream(s); err != nil {
			log.Warn("stream start failed", "stream_id", s.ID, "error", err)
		}
	}
	return nil
}

// Stop stops all stream workers and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	workers := make([]*worker, 0, len(m.streams))
	for id, w := range m.streams {
		workers = append(workers, w)
		delete(m.streams, id)
	}
	m.mu.Unlock()

	for _, w := range workers {
		m.shutdown(w)
	}
}

// AddStream starts monitoring s.
func (m *Manager) AddStream(s config.Stream) error {
	if s.ID == "" || s.URL == "" {
		return apperrors.New(apperrors.InvalidArgument, "stream requires id and url")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return apperrors.New(apperrors.Unavailable, "manager not started")
	}
	if m.ctx.Err() != nil {
		return apperrors.New(apperrors.Unavailable, "manager stopped")
	}
	if _, ok := m.streams[s.ID]; ok {
		return apperrors.Newf(apperrors.InvalidArgument, "stream %q already monitored", s.ID)
	}

	w, err := m.newWorker(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(m.ctx)
	w.cancel = cancel
	m.streams[s.ID] = w
	if m.deps.Metrics != nil {
		m.deps.Metrics.ActiveStreams.Add(1)
	}
	go w.run(ctx)

	trace.Logger(trace.WithStream(ctx, s.ID)).Info("stream added", "game_id", s.GameID, "template", w.pipeline.Template() != nil)
	return nil
}

// RemoveStream stops monitoring a stream and drops its state.
func (m *Manager) RemoveStream(id string) error {
	m.mu.Lock()
	w, ok := m.streams[id]
	delete(m.streams, id)
	m.mu.Unlock()
	if !ok {
		return notFound(id)
	}

	m.shutdown(w)
	m.history.Forget(id)
	m.cooldown.Forget(id)
	if m.deps.Metrics != nil {
		m.deps.Metrics.RemoveStream(id)
	}
	trace.Logger(trace.WithStream(context.Background(), id)).Info("stream removed")
	return nil
}

func (m *Manager) shutdown(w *worker) {
	w.cancel()
	<-w.done
	if err := w.source.Close(); err != nil {
		trace.Logger(trace.WithStream(context.Background(), w.stream.ID)).Warn("closing source failed", "error", err)
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.ActiveStreams.Add(-1)
	}
}

// ResetStream clears the rolling state and session of a stream.
func (m *Manager) ResetStream(ctx context.Context, id string) error {
	w, err := m.worker(id)
	if err != nil {
		return err
	}
	var summary pipeline.Stats
	err = w.do(ctx, func(p *pipeline.Pipeline) error {
		p.Reset()
		summary = p.Stats()
		return nil
	})
	if err != nil {
		return err
	}
	m.cooldown.Forget(id)
	m.emit(publish.Event{
		Type:      publish.TypeStreamReset,
		StreamID:  id,
		SessionID: summary.Session.SessionID,
		Session:   &summary.Session,
	})
	return nil
}

// RegisterTemplate stores t and binds it to every stream of its game. It
// returns the number of streams rebound.
func (m *Manager) RegisterTemplate(ctx context.Context, t extract.Template) (int, error) {
	if m.deps.Templates == nil {
		return 0, apperrors.New(apperrors.Unavailable, "no template registry")
	}
	if err := m.deps.Templates.Register(t); err != nil {
		return 0, err
	}

	m.mu.RLock()
	var bound []*worker
	for _, w := range m.streams {
		if w.stream.GameID == t.GameID {
			bound = append(bound, w)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, w := range bound {
		err := w.do(ctx, func(p *pipeline.Pipeline) error { return p.SetTemplate(&t) })
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Streams returns the monitored streams ordered by id.
func (m *Manager) Streams() []config.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]config.Stream, 0, len(m.streams))
	for _, w := range m.streams {
		out = append(out, w.stream)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns a snapshot of every stream ordered by id.
func (m *Manager) Stats() []pipeline.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipeline.Stats, 0, len(m.streams))
	for _, w := range m.streams {
		out = append(out, w.pipeline.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StreamID < out[j].StreamID })
	return out
}

// StreamStats returns the snapshot of one stream.
func (m *Manager) StreamStats(id string) (pipeline.Stats, error) {
	w, err := m.worker(id)
	if err != nil {
		return pipeline.Stats{}, err
	}
	return w.pipeline.Stats(), nil
}

// Events returns the channel of live stream events.
func (m *Manager) Events() <-chan publish.Event {
	return m.history.Events()
}

// RecentEvents returns retained events of a stream (all streams when id is empty).
func (m *Manager) RecentEvents(id string, window time.Duration) []publish.Event {
	return m.history.Recent(id, window)
}

func (m *Manager) worker(id string) (*worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.streams[id]
	if !ok {
		return nil, notFound(id)
	}
	return w, nil
}

// emit records ev and hands it to listeners and the downstream publisher.
func (m *Manager) emit(ev publish.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	m.history.Add(ev)
	m.history.Emit(ev)

	if m.deps.Publisher == nil {
		return
	}
	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()
	if err := m.deps.Publisher.Publish(ctx, ev); err != nil {
		trace.Logger(ctx).Warn("event publish failed", "type", ev.Type, "stream_id", ev.StreamID, "error", err)
	}
}

func notFound(id string) error {
	return apperrors.Newf(apperrors.NotFound, "stream %q not monitored", id)
}
