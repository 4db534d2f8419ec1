package capture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
)

type filesBackend struct {
	mu    sync.Mutex
	paths []string
	next  int
	loop  bool
}

// NewFiles returns a source that replays the PNG and JPEG images in dir in
// name order. With loop set it wraps around; otherwise it fails once exhausted.
func NewFiles(dir string, loop bool) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "reading capture directory").
			WithMetadata("dir", dir)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, apperrors.New(apperrors.ConfigInvalid, "no images in capture directory").
			WithMetadata("dir", dir)
	}
	sort.Strings(paths)
	return newBase(&filesBackend{paths: paths, loop: loop}), nil
}

func (b *filesBackend) captureRaw(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Cancelled, "capture cancelled")
	}
	b.mu.Lock()
	if b.next >= len(b.paths) {
		if !b.loop {
			b.mu.Unlock()
			return nil, apperrors.New(apperrors.CaptureFailed, "image sequence exhausted")
		}
		b.next = 0
	}
	path := b.paths[b.next]
	b.next++
	b.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "reading image").WithMetadata("path", path)
	}
	return data, nil
}

func (b *filesBackend) cleanup() error { return nil }
