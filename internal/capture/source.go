// Package capture grabs single frames from live streams and image files.
package capture

import (
	"bytes"
	"context"
	"crypto/md5"
	"strings"
	"sync"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// Source produces frames on demand.
type Source interface {
	Capture(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// backend fetches one encoded image.
type backend interface {
	captureRaw(ctx context.Context) ([]byte, error)
	cleanup() error
}

// baseSource decodes backend output. Byte-identical images reuse the previous
// decode.
type baseSource struct {
	backend
	mu       sync.Mutex
	lastHash [16]byte
	last     *frame.Frame
}

func newBase(b backend) *baseSource {
	return &baseSource{backend: b}
}

func (s *baseSource) Capture(ctx context.Context) (*frame.Frame, error) {
	data, err := s.captureRaw(ctx)
	if err != nil {
		return nil, err
	}

	hash := md5.Sum(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && hash == s.lastHash {
		return s.last.Clone(), nil
	}

	f, err := frame.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "decoding captured image")
	}
	s.lastHash, s.last = hash, f
	return f.Clone(), nil
}

func (s *baseSource) Close() error {
	return s.cleanup()
}

// DirScheme selects image replay from a local directory instead of ffmpeg.
const DirScheme = "dir://"

// Open returns the source for a stream URL.
func Open(url string, cfg FFmpegConfig) (Source, error) {
	if dir, ok := strings.CutPrefix(url, DirScheme); ok {
		return NewFiles(dir, true)
	}
	return NewFFmpeg(url, cfg), nil
}
