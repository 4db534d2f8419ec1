package pipeline

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/config"
	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
)

func solid(v byte) *frame.Frame {
	f := frame.New(64, 48, frame.RGB)
	for i := range f.Pix {
		f.Pix[i] = v
	}
	return f
}

func slotTemplate(withMultiplier bool) *extract.Template {
	t := &extract.Template{
		GameID:        "slot",
		BalanceRegion: frame.Region{X: 0.0, Y: 0.8, W: 0.3, H: 0.2},
		BetRegion:     frame.Region{X: 0.35, Y: 0.8, W: 0.3, H: 0.2},
		WinRegion:     frame.Region{X: 0.7, Y: 0.8, W: 0.3, H: 0.2},
	}
	if withMultiplier {
		t.MultiplierRegion = &frame.Region{X: 0.3, Y: 0.3, W: 0.4, H: 0.2}
	}
	return t
}

// spin scripts one frame's worth of region reads.
func spin(balance, bet, win string, multiplier ...string) [][]ocr.RecognizedText {
	out := [][]ocr.RecognizedText{
		ocr.Texts(balance, 0.95),
		ocr.Texts(bet, 0.95),
		ocr.Texts(win, 0.95),
	}
	for _, m := range multiplier {
		out = append(out, ocr.Texts(m, 0.95))
	}
	return out
}

type recordingObserver struct {
	mu      sync.Mutex
	results []Result
}

func (o *recordingObserver) ObserveFrame(_ string, res Result, _ time.Duration) {
	o.mu.Lock()
	o.results = append(o.results, res)
	o.mu.Unlock()
}

func newPipeline(t *testing.T, rec ocr.Recognizer, opts Options) *Pipeline {
	t.Helper()
	if opts.StreamID == "" {
		opts.StreamID = "test"
	}
	p, err := New(config.DefaultPipeline(), rec, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestSkipUnchangedReturnsPriorExtraction(t *testing.T) {
	rec := ocr.NewMock(spin("1,000.00", "5", "0")...)
	p := newPipeline(t, rec, Options{Template: slotTemplate(false)})
	ctx := context.Background()

	first := p.ProcessFrame(ctx, solid(30))
	if !first.Processed || !first.FrameChanged || first.ChangePercentage != 1.0 {
		t.Fatalf("first = %+v, want processed full change", first)
	}
	if first.Extraction == nil || *first.Extraction.Balance != 1000 {
		t.Fatalf("first extraction = %+v", first.Extraction)
	}

	second := p.ProcessFrame(ctx, solid(30))
	if second.Processed || second.FrameChanged {
		t.Fatalf("second = %+v, want skipped", second)
	}
	if second.ChangePercentage >= 0.01 {
		t.Errorf("ChangePercentage = %f, want < 0.01", second.ChangePercentage)
	}
	if !reflect.DeepEqual(second.Extraction, first.Extraction) {
		t.Errorf("skipped extraction = %+v, want %+v", second.Extraction, first.Extraction)
	}
	if rec.Calls() != 3 {
		t.Errorf("recognizer calls = %d, want 3", rec.Calls())
	}
}

func TestProcessesUnchangedWhenSkippingDisabled(t *testing.T) {
	rec := ocr.NewMock(spin("100", "1", "0")...)
	cfg := config.DefaultPipeline()
	cfg.SkipUnchangedFrames = false
	p, err := New(cfg, rec, Options{Template: slotTemplate(false)})
	if err != nil {
		t.Fatal(err)
	}

	p.ProcessFrame(context.Background(), solid(10))
	res := p.ProcessFrame(context.Background(), solid(10))
	if !res.Processed || res.FrameChanged {
		t.Errorf("res = %+v, want processed without change", res)
	}
}

func TestBigWinCallback(t *testing.T) {
	rec := ocr.NewMock()
	var bigWins, balances int
	p := newPipeline(t, rec, Options{
		Template:        slotTemplate(true),
		OnBigWin:        func(extract.Result) { bigWins++ },
		OnBalanceUpdate: func(extract.Result) { balances++ },
	})
	ctx := context.Background()

	rec.SetCycle(spin("1000", "10", "1500", "150x")...)
	res := p.ProcessFrame(ctx, solid(0))
	if res.Validation == nil || !res.Validation.IsValid {
		t.Fatalf("validation = %+v, want valid", res.Validation)
	}
	if bigWins != 1 || balances != 1 {
		t.Fatalf("callbacks = %d big wins, %d balances; want 1, 1", bigWins, balances)
	}

	rec.SetCycle(spin("1000", "10", "800", "80x")...)
	p.ProcessFrame(ctx, solid(200))
	if bigWins != 1 {
		t.Errorf("big wins = %d after 80x, want 1", bigWins)
	}
	if balances != 2 {
		t.Errorf("balance updates = %d, want 2", balances)
	}
	if got := p.Stats().BigWins; got != 1 {
		t.Errorf("Stats().BigWins = %d, want 1", got)
	}
}

func TestBigWinWithThousandsSeparator(t *testing.T) {
	rec := ocr.NewMock(spin("20,000", "10", "10,000", "1,000x")...)
	var got []float64
	p := newPipeline(t, rec, Options{
		Template: slotTemplate(true),
		OnBigWin: func(r extract.Result) { got = append(got, *r.Multiplier) },
	})

	p.ProcessFrame(context.Background(), solid(0))
	if len(got) != 1 || got[0] != 1000 {
		t.Errorf("big win multipliers = %v, want [1000]", got)
	}
}

func TestReturnedExtractionIsACopy(t *testing.T) {
	rec := ocr.NewMock(spin("500", "5", "0")...)
	p := newPipeline(t, rec, Options{Template: slotTemplate(false)})
	ctx := context.Background()

	first := p.ProcessFrame(ctx, solid(0))
	*first.Extraction.Balance = -1

	skipped := p.ProcessFrame(ctx, solid(0))
	if skipped.Processed {
		t.Fatal("identical frame should be skipped")
	}
	if *skipped.Extraction.Balance != 500 {
		t.Fatalf("skipped balance = %v, want 500", *skipped.Extraction.Balance)
	}
	skipped.Extraction.Balance = nil

	rec.SetError(errors.New("model offline"))
	failed := p.ProcessFrame(ctx, solid(255))
	if failed.Extraction == nil || failed.Extraction.Balance == nil || *failed.Extraction.Balance != 500 {
		t.Errorf("last good extraction = %+v, want balance 500", failed.Extraction)
	}
	if last := p.Stats().LastExtraction; last == nil || *last.Balance != 500 {
		t.Errorf("Stats().LastExtraction = %+v, want balance 500", last)
	}
}

func TestInvalidResultSkipsCallbacksAndSession(t *testing.T) {
	rec := ocr.NewMock(spin("100", "500", "0")...)
	called := false
	p := newPipeline(t, rec, Options{
		Template:        slotTemplate(false),
		OnBalanceUpdate: func(extract.Result) { called = true },
	})

	res := p.ProcessFrame(context.Background(), solid(90))
	if !res.Processed {
		t.Fatal("invalid results are still processed")
	}
	if res.ErrorKind != KindValidation || res.Validation.IsValid {
		t.Errorf("res = %+v, want validation failure", res)
	}
	if called {
		t.Error("OnBalanceUpdate fired for invalid result")
	}
	if sum := p.Stats().Session; sum.Accepted != 0 || sum.StartBalance != nil {
		t.Errorf("session = %+v, want untouched", sum)
	}
}

func TestRecognitionFailureReusesLastGood(t *testing.T) {
	rec := ocr.NewMock(spin("500", "5", "0")...)
	p := newPipeline(t, rec, Options{Template: slotTemplate(false)})
	ctx := context.Background()

	good := p.ProcessFrame(ctx, solid(0))
	rec.SetError(errors.New("model offline"))
	res := p.ProcessFrame(ctx, solid(255))

	if res.Processed || res.ErrorKind != KindRecognition || res.Error == "" {
		t.Fatalf("res = %+v, want recognition failure", res)
	}
	if !reflect.DeepEqual(res.Extraction, good.Extraction) {
		t.Errorf("extraction = %+v, want last good %+v", res.Extraction, good.Extraction)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %v, want idle", p.State())
	}
	if got := p.Stats().RecognitionFailures; got != 1 {
		t.Errorf("RecognitionFailures = %d, want 1", got)
	}
}

func TestPanicIsContained(t *testing.T) {
	rec := ocr.RecognizerFunc(func(context.Context, *frame.Frame, *image.Rectangle) ([]ocr.RecognizedText, error) {
		panic("index out of range")
	})
	p := newPipeline(t, rec, Options{Template: slotTemplate(false)})

	res := p.ProcessFrame(context.Background(), solid(1))
	if res.Processed || res.ErrorKind != KindRecognition {
		t.Errorf("res = %+v, want contained failure", res)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %v, want idle", p.State())
	}
}

func TestInvalidFrame(t *testing.T) {
	p := newPipeline(t, ocr.NewMock(), Options{})
	res := p.ProcessFrame(context.Background(), &frame.Frame{Width: 4, Height: 4, Channels: frame.RGB})
	if res.Processed || res.ErrorKind != KindRecognition {
		t.Errorf("res = %+v, want rejected frame", res)
	}
}

func TestResetBehavesAsFirstCall(t *testing.T) {
	rec := ocr.NewMock(spin("100", "1", "0")...)
	p := newPipeline(t, rec, Options{Template: slotTemplate(false)})
	ctx := context.Background()

	p.ProcessFrame(ctx, solid(60))
	p.ProcessFrame(ctx, solid(60))
	sessionID := p.Stats().Session.SessionID

	p.Reset()
	if s := p.Stats(); s.Frames != 0 || s.Session.Accepted != 0 || s.Session.SessionID == sessionID {
		t.Errorf("stats after reset = %+v", s)
	}

	res := p.ProcessFrame(ctx, solid(60))
	if !res.Processed || res.ChangePercentage != 1.0 {
		t.Errorf("res = %+v, want full reprocessing", res)
	}
}

func TestStats(t *testing.T) {
	obs := &recordingObserver{}
	rec := ocr.NewMock(spin("100", "1", "0")...)
	p := newPipeline(t, rec, Options{StreamID: "alpha", Template: slotTemplate(false), Observer: obs})
	ctx := context.Background()

	p.ProcessFrame(ctx, solid(5))
	p.ProcessFrame(ctx, solid(5))
	p.ProcessFrame(ctx, solid(5))
	p.ProcessFrame(ctx, solid(250))

	s := p.Stats()
	if s.StreamID != "alpha" || s.GameID != "slot" {
		t.Errorf("identity = %q/%q", s.StreamID, s.GameID)
	}
	if s.Frames != 4 || s.Processed != 2 || s.Skipped != 2 {
		t.Errorf("counts = %d/%d/%d, want 4/2/2", s.Frames, s.Processed, s.Skipped)
	}
	if s.SkipRate != 0.5 {
		t.Errorf("SkipRate = %f, want 0.5", s.SkipRate)
	}
	if s.Session.Accepted != 2 || s.LastExtraction == nil {
		t.Errorf("session = %+v, last = %v", s.Session, s.LastExtraction)
	}
	if s.ChangeThreshold <= 0 {
		t.Errorf("ChangeThreshold = %f", s.ChangeThreshold)
	}
	if len(obs.results) != 4 {
		t.Errorf("observer saw %d frames, want 4", len(obs.results))
	}
}

func TestKeywordModeWithoutTemplate(t *testing.T) {
	rec := ocr.NewMock([]ocr.RecognizedText{
		{Text: "BALANCE 2,500.00", Confidence: 0.97},
		{Text: "BET 2.50", Confidence: 0.96},
	})
	p := newPipeline(t, rec, Options{})

	res := p.ProcessFrame(context.Background(), solid(40))
	if !res.Processed || res.Extraction.Balance == nil || *res.Extraction.Balance != 2500 {
		t.Fatalf("res = %+v", res)
	}
	if res.ErrorKind != KindParse {
		t.Errorf("ErrorKind = %q, want parse failure for missing win", res.ErrorKind)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.ChangeThreshold = 2
	if _, err := New(cfg, ocr.NewMock(), Options{}); !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("bad config error = %v, want ConfigInvalid", err)
	}

	bad := slotTemplate(false)
	bad.WinRegion.X = 0.9
	if _, err := New(config.DefaultPipeline(), ocr.NewMock(), Options{Template: bad}); !apperrors.IsCode(err, apperrors.TemplateInvalid) {
		t.Errorf("bad template error = %v, want TemplateInvalid", err)
	}

	if _, err := New(config.DefaultPipeline(), nil, Options{}); err == nil {
		t.Error("nil recognizer should be rejected")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateIdle: "idle", StateDetecting: "detecting", StateProcessing: "processing", StateValidated: "validated", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
