package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
)

type mockAdder struct {
	mu      sync.Mutex
	args    []*redis.XAddArgs
	failFor map[string]bool // stream id -> fail
}

func (m *mockAdder) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.args = append(m.args, a)
	if m.failFor[a.Values.(map[string]interface{})["stream_id"].(string)] {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	return redis.NewStringResult("1-0", nil)
}

func (m *mockAdder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.args)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]Event
}

func (r *recordingPublisher) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
	return nil
}

func (r *recordingPublisher) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func TestStreamPublisherWritesEvents(t *testing.T) {
	adder := &mockAdder{}
	p := NewStreamPublisher(adder, "")

	err := p.Publish(context.Background(), Event{
		Type:      TypeBalanceUpdate,
		StreamID:  "alpha",
		SessionID: "s1",
		Timestamp: time.Unix(100, 0).UTC(),
	}, Event{Type: TypeBigWin, StreamID: "beta"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if adder.count() != 2 {
		t.Fatalf("XAdd calls = %d, want 2", adder.count())
	}
	first := adder.args[0]
	if first.Stream != "reelwatch.events.alpha" {
		t.Errorf("Stream = %q", first.Stream)
	}
	if first.MaxLen != DefaultMaxLen || !first.Approx {
		t.Errorf("MaxLen = %d, Approx = %v", first.MaxLen, first.Approx)
	}
	values := first.Values.(map[string]interface{})
	if values["type"] != TypeBalanceUpdate || values["session_id"] != "s1" {
		t.Errorf("values = %v", values)
	}
	var decoded Event
	if err := json.Unmarshal([]byte(values["data"].(string)), &decoded); err != nil {
		t.Fatalf("data is not JSON: %v", err)
	}
	if decoded.StreamID != "alpha" || decoded.Type != TypeBalanceUpdate {
		t.Errorf("decoded = %+v", decoded)
	}
	if adder.args[1].Stream != "reelwatch.events.beta" {
		t.Errorf("second Stream = %q", adder.args[1].Stream)
	}
}

func TestStreamPublisherAttemptsAll(t *testing.T) {
	adder := &mockAdder{failFor: map[string]bool{"bad": true}}
	p := NewStreamPublisher(adder, "custom")

	err := p.Publish(context.Background(),
		Event{Type: TypeBigWin, StreamID: "bad"},
		Event{Type: TypeBigWin, StreamID: "good"},
	)
	if !apperrors.IsCode(err, apperrors.Unavailable) {
		t.Errorf("Publish() error = %v, want Unavailable", err)
	}
	if adder.count() != 2 {
		t.Errorf("XAdd calls = %d, want 2", adder.count())
	}
	if got := p.StreamKey("good"); got != "custom.good" {
		t.Errorf("StreamKey = %q", got)
	}
}

func TestBatcherFlushesOnSize(t *testing.T) {
	next := &recordingPublisher{}
	b := NewBatcher(next, 3, time.Hour)

	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), Event{Type: TypeBalanceUpdate, StreamID: "a"})
	}
	b.Stop()

	if next.total() != 3 || len(next.batches) != 1 {
		t.Errorf("batches = %d, total = %d; want 1, 3", len(next.batches), next.total())
	}
}

func TestBatcherFlushesOnDelay(t *testing.T) {
	next := &recordingPublisher{}
	done := make(chan struct{})
	b := NewBatcher(next, 100, 20*time.Millisecond).OnFlush(func([]Event, error) { close(done) })

	b.Publish(context.Background(), Event{Type: TypeBigWin, StreamID: "a"})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer flush did not happen")
	}
	b.Stop()
	if next.total() != 1 {
		t.Errorf("total = %d, want 1", next.total())
	}
}

func TestBatcherStopFlushesPending(t *testing.T) {
	next := &recordingPublisher{}
	b := NewBatcher(next, 100, time.Hour)
	b.Publish(context.Background(), Event{StreamID: "a"}, Event{StreamID: "b"})
	if b.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", b.Pending())
	}
	b.Stop()
	if next.total() != 2 || b.Pending() != 0 {
		t.Errorf("total = %d, pending = %d", next.total(), b.Pending())
	}
}

func TestCooldown(t *testing.T) {
	c := NewCooldown(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	if !c.Allow("alpha") {
		t.Fatal("first Allow should pass")
	}
	if c.Allow("alpha") {
		t.Error("repeat inside window should be suppressed")
	}
	if !c.Allow("beta") {
		t.Error("keys are independent")
	}

	now = now.Add(time.Minute)
	if !c.Allow("alpha") {
		t.Error("Allow after window should pass")
	}

	c.Forget("alpha")
	if !c.Allow("alpha") {
		t.Error("Allow after Forget should pass")
	}
}
