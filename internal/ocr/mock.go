package ocr

import (
	"context"
	"image"
	"sync"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// MockRecognizer is a deterministic Recognizer for tests and dry runs.
// Each call returns the next entry of the cycle, wrapping around; an empty
// cycle returns no text. Err, when set, is returned from every call.
type MockRecognizer struct {
	mu    sync.Mutex
	cycle [][]RecognizedText
	next  int
	err   error
	calls int
}

// NewMock creates a mock that answers calls from cycle in order.
func NewMock(cycle ...[]RecognizedText) *MockRecognizer {
	return &MockRecognizer{cycle: cycle}
}

// Texts builds a single-fragment response.
func Texts(text string, confidence float64) []RecognizedText {
	return []RecognizedText{{Text: text, Confidence: confidence}}
}

// Recognize returns the next scripted response.
func (m *MockRecognizer) Recognize(_ context.Context, _ *frame.Frame, _ *image.Rectangle) ([]RecognizedText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.cycle) == 0 {
		return nil, nil
	}
	out := m.cycle[m.next%len(m.cycle)]
	m.next++
	return append([]RecognizedText(nil), out...), nil
}

// SetCycle replaces the scripted responses and restarts from the first one.
func (m *MockRecognizer) SetCycle(cycle ...[]RecognizedText) {
	m.mu.Lock()
	m.cycle = cycle
	m.next = 0
	m.mu.Unlock()
}

// SetError makes subsequent calls fail with err (nil clears it).
func (m *MockRecognizer) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Calls returns the number of Recognize calls so far.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
