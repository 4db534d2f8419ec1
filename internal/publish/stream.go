package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// Publisher sends events downstream.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// StreamAdder is the subset of *redis.Client the publisher needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher appends events to per-stream Redis streams.
type StreamPublisher struct {
	client StreamAdder
	prefix string
	maxLen int64
}

var _ Publisher = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher writing to "<prefix>.<stream id>".
func NewStreamPublisher(client StreamAdder, prefix string) *StreamPublisher {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	return &StreamPublisher{client: client, prefix: prefix, maxLen: DefaultMaxLen}
}

// StreamKey returns the Redis stream an event for streamID goes to.
func (p *StreamPublisher) StreamKey(streamID string) string {
	return fmt.Sprintf("%s.%s", p.prefix, streamID)
}

// Publish XADDs each event. All events are attempted; errors are joined.
func (p *StreamPublisher) Publish(ctx context.Context, events ...Event) error {
	ctx, span := trace.StartSpan(ctx, "publish_events")
	defer span.End()
	span.SetAttr("count", len(events))

	var errs []error
	for _, ev := range events {
		if err := p.publishOne(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetAttr("error", err.Error())
		return apperrors.Wrapf(err, apperrors.Unavailable, "publishing %d of %d events failed", len(errs), len(events))
	}
	return nil
}

func (p *StreamPublisher) publishOne(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", ev.Type, err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.StreamKey(ev.StreamID),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":       string(data),
			"type":       ev.Type,
			"stream_id":  ev.StreamID,
			"session_id": ev.SessionID,
		},
	}).Err()
}
