// Package grpcclient provides a client for the remote text recognition service.
package grpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/resilience"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// Circuit breaker re-exports
const (
	CircuitClosed   = resilience.Closed
	CircuitOpen     = resilience.Open
	CircuitHalfOpen = resilience.HalfOpen
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = resilience.ErrOpen

// Client calls the recognition service. It implements ocr.Recognizer and is safe
// for concurrent use; callers that need bounded concurrency wrap it in ocr.Pool.
type Client struct {
	conn    *grpc.ClientConn
	cfg     Config
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

var _ ocr.Recognizer = (*Client)(nil)

// New creates a recognition client. The connection is established lazily.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	conn, err := grpc.NewClient(cfg.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "dialing recognizer at %s", cfg.Addr)
	}
	return newWithConn(conn, cfg), nil
}

func newWithConn(conn *grpc.ClientConn, cfg Config) *Client {
	retry := cfg.Retry
	retry.IsRetryable = func(err error) bool {
		if errors.Is(err, resilience.ErrOpen) {
			return false
		}
		return resilience.IsRetryableGRPC(err)
	}
	return &Client{
		conn:    conn,
		cfg:     cfg,
		breaker: resilience.New(cfg.Breaker),
		retry:   retry,
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// OnBreakerChange registers a callback for circuit state transitions.
func (c *Client) OnBreakerChange(fn func(from, to resilience.State)) {
	c.breaker.OnStateChange(fn)
}

// BreakerCounts reports request, failure and rejection totals of the breaker.
func (c *Client) BreakerCounts() resilience.Counts {
	return c.breaker.Counts()
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Recognize sends img to the recognition service.
func (c *Client) Recognize(ctx context.Context, img *frame.Frame, region *image.Rectangle) ([]ocr.RecognizedText, error) {
	ctx, span := trace.StartSpan(ctx, "recognize")
	defer span.End()
	span.SetAttr("width", img.Width)
	span.SetAttr("height", img.Height)

	req, err := EncodeRequest(img, region, c.cfg.UseGPU)
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	err = resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.breaker.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
			return c.conn.Invoke(callCtx, RecognizeMethod, req, resp)
		})
	})
	if err != nil {
		span.SetAttr("error", err.Error())
		if errors.Is(err, resilience.ErrOpen) {
			return nil, apperrors.Wrap(err, apperrors.Unavailable, "recognizer circuit open")
		}
		cause := apperrors.FromGRPCError(err)
		return nil, apperrors.Wrap(cause, apperrors.RecognitionFailed, "recognize call failed")
	}

	results := DecodeResponse(resp)
	span.SetAttr("results", len(results))
	trace.Logger(ctx).Debug("recognized", "fragments", len(results))
	return results, nil
}

// EncodeRequest builds the request message: a base64 PNG plus dimensions and optional region.
func EncodeRequest(img *frame.Frame, region *image.Rectangle, useGPU bool) (*structpb.Struct, error) {
	if err := img.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.RecognitionInvalidImage, "invalid frame")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToImage()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.RecognitionInvalidImage, "encoding frame")
	}

	fields := map[string]any{
		"image":   base64.StdEncoding.EncodeToString(buf.Bytes()),
		"format":  "png",
		"width":   img.Width,
		"height":  img.Height,
		"use_gpu": useGPU,
	}
	if region != nil {
		fields["region"] = map[string]any{
			"x": region.Min.X,
			"y": region.Min.Y,
			"w": region.Dx(),
			"h": region.Dy(),
		}
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "building recognize request")
	}
	return req, nil
}

// DecodeResponse reads the "results" list. Malformed entries are skipped.
func DecodeResponse(resp *structpb.Struct) []ocr.RecognizedText {
	list := resp.GetFields()["results"].GetListValue()
	out := make([]ocr.RecognizedText, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		entry := v.GetStructValue()
		if entry == nil {
			continue
		}
		f := entry.GetFields()
		rt := ocr.RecognizedText{
			Text:       f["text"].GetStringValue(),
			Confidence: clamp01(f["confidence"].GetNumberValue()),
		}
		for i, p := range f["bbox"].GetListValue().GetValues() {
			if i >= len(rt.BBox) {
				break
			}
			xy := p.GetListValue().GetValues()
			if len(xy) < 2 {
				continue
			}
			rt.BBox[i] = ocr.Point{X: xy[0].GetNumberValue(), Y: xy[1].GetNumberValue()}
		}
		out = append(out, rt)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
