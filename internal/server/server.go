package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/config"
	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/metrics"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/pipeline"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/publish"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// StreamManager is the subset of the orchestrator the API drives.
type StreamManager interface {
	Streams() []config.Stream
	AddStream(s config.Stream) error
	RemoveStream(id string) error
	Stats() []pipeline.Stats
	StreamStats(id string) (pipeline.Stats, error)
	ResetStream(ctx context.Context, id string) error
	RegisterTemplate(ctx context.Context, t extract.Template) (int, error)
	RecentEvents(id string, window time.Duration) []publish.Event
	Events() <-chan publish.Event
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type SubscribeMessage struct {
	Type      string   `json:"type"`
	StreamIDs []string `json:"stream_ids"` // empty subscribes to every stream
	TraceID   string   `json:"trace_id,omitempty"`
}

type EventMessage struct {
	Type  string        `json:"type"`
	Event publish.Event `json:"event"`
}

type SubscribedMessage struct {
	Type      string   `json:"type"`
	StreamIDs []string `json:"stream_ids"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one websocket connection and its stream filter.
type client struct {
	limiter rateLimiter
	mu      sync.RWMutex
	streams map[string]bool // nil means all streams
}

func (c *client) wants(streamID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streams == nil || c.streams[streamID]
}

func (c *client) subscribe(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) == 0 {
		c.streams = nil
		return
	}
	c.streams = make(map[string]bool, len(ids))
	for _, id := range ids {
		c.streams[id] = true
	}
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	mgr       StreamManager
	templates *extract.Registry
	metrics   *metrics.Metrics
	origins   []string

	mu    sync.RWMutex
	conns map[*websocket.Conn]*client

	done chan struct{}
	once sync.Once
}

// New creates a new server and starts broadcasting manager events.
func New(mgr StreamManager, templates *extract.Registry, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		mgr:       mgr,
		templates: templates,
		metrics:   m,
		origins:   cfg.AllowedOrigins,
		conns:     make(map[*websocket.Conn]*client),
		done:      make(chan struct{}),
	}

	go s.broadcastEvents()

	return s
}

// Close stops the broadcaster.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/streams", s.handleListStreams)
	mux.HandleFunc("POST /api/streams", s.handleAddStream)
	mux.HandleFunc("DELETE /api/streams/{id}", s.handleRemoveStream)
	mux.HandleFunc("GET /api/streams/{id}/stats", s.handleStreamStats)
	mux.HandleFunc("POST /api/streams/{id}/reset", s.handleResetStream)
	mux.HandleFunc("GET /api/streams/{id}/events", s.handleStreamEvents)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleRegisterTemplate)
	mux.HandleFunc("DELETE /api/templates/{game}", s.handleRemoveTemplate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	cl := &client{}
	s.mu.Lock()
	s.conns[conn] = cl
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.WSClients.Add(1)
	}

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.WSClients.Add(-1)
		}
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !cl.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, RateLimitedMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "subscribe":
			var sub SubscribeMessage
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			}
			cl.subscribe(sub.StreamIDs)
			trace.Logger(ctx).Info("websocket subscribed", "streams", sub.StreamIDs)
			_ = wsjson.Write(ctx, conn, SubscribedMessage{Type: "subscribed", StreamIDs: sub.StreamIDs})
		case "ping":
			_ = wsjson.Write(baseCtx, conn, PongMessage{Type: "pong"})
		}
	}
}

func (s *Server) broadcastEvents() {
	events := s.mgr.Events()
	for {
		select {
		case <-s.done:
			return
		case ev := <-events:
			msg := EventMessage{Type: "event", Event: ev}

			s.mu.RLock()
			for conn, cl := range s.conns {
				if !cl.wants(ev.StreamID) {
					continue
				}
				go func(c *websocket.Conn) {
					ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
					defer cancel()
					_ = wsjson.Write(ctx, c, msg)
				}(conn)
			}
			s.mu.RUnlock()
		}
	}
}

func (s *Server) handleListStreams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"streams": s.mgr.Streams()})
}

func (s *Server) handleAddStream(w http.ResponseWriter, r *http.Request) {
	var st config.Stream
	if err := decodeBody(w, r, &st); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.mgr.AddStream(st); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleRemoveStream(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.RemoveStream(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStreamStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.mgr.StreamStats(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResetStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := trace.WithStream(r.Context(), id)
	if err := s.mgr.ResetStream(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	trace.Logger(ctx).Info("stream reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "stream_id": id})
}

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.mgr.StreamStats(id); err != nil {
		writeError(w, r, err)
		return
	}
	window := DefaultEventWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid window %q", v))
			return
		}
		window = d
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.mgr.RecentEvents(id, window)})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"streams": s.mgr.Stats()})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.templates.List()})
}

func (s *Server) handleRegisterTemplate(w http.ResponseWriter, r *http.Request) {
	var t extract.Template
	if err := decodeBody(w, r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.mgr.RegisterTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trace.Logger(r.Context()).Info("template registered", "game_id", t.GameID, "streams", n)
	writeJSON(w, http.StatusCreated, map[string]any{"game_id": t.GameID, "streams_bound": n})
}

func (s *Server) handleRemoveTemplate(w http.ResponseWriter, r *http.Request) {
	game := r.PathValue("game")
	if !s.templates.Remove(game) {
		writeError(w, r, apperrors.Newf(apperrors.TemplateNotFound, "no template for game %q", game))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
