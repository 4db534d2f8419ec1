package capture

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// FFmpegConfig configures stream grabs.
type FFmpegConfig struct {
	Path    string        // ffmpeg binary
	Timeout time.Duration // per grab
}

type ffmpegBackend struct {
	url string
	cfg FFmpegConfig
}

// NewFFmpeg returns a source that grabs the current frame of url (RTMP, HLS,
// RTSP, file path or anything else ffmpeg can open) as PNG.
func NewFFmpeg(url string, cfg FFmpegConfig) Source {
	if cfg.Path == "" {
		cfg.Path = DefaultFFmpegPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return newBase(&ffmpegBackend{url: url, cfg: cfg})
}

func (b *ffmpegBackend) args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", b.url,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "png",
		"-",
	}
}

func (b *ffmpegBackend) captureRaw(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	ctx, span := trace.StartSpan(ctx, "ffmpeg_grab")
	defer span.End()

	cmd := exec.CommandContext(ctx, b.cfg.Path, b.args()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		span.SetAttr("error", err.Error())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Wrapf(err, apperrors.Timeout, "ffmpeg grab exceeded %s", b.cfg.Timeout)
		}
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "ffmpeg grab failed").
			WithMetadata("stderr", tail(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, apperrors.New(apperrors.CaptureFailed, "ffmpeg produced no image").
			WithMetadata("stderr", tail(stderr.String()))
	}
	span.SetAttr("bytes", stdout.Len())
	return stdout.Bytes(), nil
}

func (b *ffmpegBackend) cleanup() error { return nil }

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[len(s)-maxStderr:]
	}
	return s
}
