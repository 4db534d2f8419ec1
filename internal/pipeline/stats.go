package pipeline

import (
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/validate"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/vision/change"
)

type counters struct {
	frames    int
	processed int
	skipped   int
	failures  int
	invalid   int
	bigWins   int
}

// Stats is a point-in-time snapshot of a pipeline.
type Stats struct {
	StreamID            string           `json:"stream_id"`
	GameID              string           `json:"game_id,omitempty"`
	State               State            `json:"state"`
	Frames              int              `json:"frames"`
	Processed           int              `json:"processed"`
	Skipped             int              `json:"skipped"`
	RecognitionFailures int              `json:"recognition_failures"`
	Invalid             int              `json:"invalid"`
	BigWins             int              `json:"big_wins"`
	SkipRate            float64          `json:"skip_rate"`
	ChangeThreshold     float64          `json:"change_threshold"`
	Session             validate.Summary `json:"session"`
	LastExtraction      *extract.Result  `json:"last_extraction,omitempty"`
}

// Stats returns the snapshot taken after the most recent frame or reset.
func (p *Pipeline) Stats() Stats {
	s := p.snapshot.Load()
	s.State = p.state.Load()
	return s
}

func (p *Pipeline) publishStats() {
	c := p.counters
	s := Stats{
		StreamID:            p.opts.StreamID,
		Frames:              c.frames,
		Processed:           c.processed,
		Skipped:             c.skipped,
		RecognitionFailures: c.failures,
		Invalid:             c.invalid,
		BigWins:             c.bigWins,
		ChangeThreshold:     p.threshold(),
		Session:             p.session.Summary(),
	}
	if c.frames > 0 {
		s.SkipRate = float64(c.skipped) / float64(c.frames)
	}
	if p.template != nil {
		s.GameID = p.template.GameID
	}
	if p.last != nil {
		s.LastExtraction = p.last.Clone()
	}
	p.snapshot.Store(s)
}

// threshold reports the change threshold currently in effect.
func (p *Pipeline) threshold() float64 {
	switch d := p.detector.(type) {
	case *change.AdaptiveDetector:
		return d.Threshold()
	case *change.Detector:
		return d.Options().Threshold
	}
	return 0
}
