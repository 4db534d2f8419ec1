package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"1,234", 1234, true},
		{"1.234,56", 1234.56, true},
		{"12,50", 12.5, true},
		{"1,234,567", 1234567, true},
		{"1.234.567,89", 1234567.89, true},
		{"1.2.3", 12.3, true},
		{"€ 0.40", 0.4, true},
		{"BALANCE: 250", 250, true},
		{"abc", 0, false},
		{"", 0, false},
		{",", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseMultiplier(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"150x", 150, true},
		{"2.5 X", 2.5, true},
		{"x 1,50x", 1.5, true},
		{"1,000x", 1000, true},
		{"2,500 X", 2500, true},
		{"12,50x", 12.5, true},
		{"WIN 25", 25, true},
		{"xx", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseMultiplier(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseMultiplier(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func validTemplate(id string) Template {
	return Template{
		GameID:        id,
		GameName:      "Test Slot",
		BalanceRegion: frame.Region{X: 0.0, Y: 0.8, W: 0.3, H: 0.1},
		BetRegion:     frame.Region{X: 0.35, Y: 0.8, W: 0.3, H: 0.1},
		WinRegion:     frame.Region{X: 0.7, Y: 0.8, W: 0.3, H: 0.1},
	}
}

func TestRegistryRejectsOutOfBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"missing id", func(t *Template) { t.GameID = "" }},
		{"overflow x", func(t *Template) { t.BalanceRegion.W = 0.9 }},
		{"negative y", func(t *Template) { t.BetRegion.Y = -0.1 }},
		{"empty win", func(t *Template) { t.WinRegion.H = 0 }},
		{"bad multiplier", func(t *Template) { t.MultiplierRegion = &frame.Region{X: 0.9, Y: 0.9, W: 0.2, H: 0.05} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tmpl := validTemplate("g1")
			tt.mutate(&tmpl)
			err := r.Register(tmpl)
			if !apperrors.IsCode(err, apperrors.TemplateInvalid) {
				t.Fatalf("Register() error = %v, want TemplateInvalid", err)
			}
			if len(r.List()) != 0 {
				t.Error("invalid template was stored")
			}
		})
	}
}

func TestRegistryGetAndList(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"zeta", "alpha"} {
		if err := r.Register(validTemplate(id)); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	got, err := r.Get("alpha")
	if err != nil || got.GameID != "alpha" {
		t.Fatalf("Get(alpha) = %+v, %v", got, err)
	}
	if _, err := r.Get("missing"); !apperrors.IsCode(err, apperrors.TemplateNotFound) {
		t.Errorf("Get(missing) error = %v, want TemplateNotFound", err)
	}

	list := r.List()
	if len(list) != 2 || list[0].GameID != "alpha" || list[1].GameID != "zeta" {
		t.Errorf("List() = %v, want [alpha zeta]", list)
	}
	if !r.Remove("zeta") || r.Remove("zeta") {
		t.Error("Remove should report presence once")
	}
}

func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.json")
	data := `[{"game_id":"sweet","game_name":"Sweet Reels",
		"balance_region":{"x":0.05,"y":0.9,"w":0.2,"h":0.05},
		"bet_region":{"x":0.4,"y":0.9,"w":0.2,"h":0.05},
		"win_region":{"x":0.7,"y":0.9,"w":0.2,"h":0.05},
		"multiplier_region":{"x":0.4,"y":0.4,"w":0.2,"h":0.1},
		"preprocess":{"grayscale":true,"threshold":true}}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	n, err := r.LoadTemplates(path)
	if err != nil || n != 1 {
		t.Fatalf("LoadTemplates() = %d, %v", n, err)
	}
	tmpl, _ := r.Get("sweet")
	if tmpl.MultiplierRegion == nil {
		t.Fatal("multiplier region not loaded")
	}
	opts := tmpl.ProcessorOptions()
	if !opts.Grayscale || !opts.Binarize || opts.Invert {
		t.Errorf("ProcessorOptions() = %+v", opts)
	}

	if _, err := r.LoadTemplates(filepath.Join(dir, "missing.json")); !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("missing file error = %v, want ConfigInvalid", err)
	}
}

func testFrame() *frame.Frame {
	return frame.New(200, 100, frame.RGB)
}

func TestExtractWithTemplate(t *testing.T) {
	rec := ocr.NewMock(
		ocr.Texts("$1,234.56", 0.95),
		ocr.Texts("2.00", 0.9),
		ocr.Texts("300", 0.92),
		ocr.Texts("150x", 0.88),
	)
	tmpl := validTemplate("g1")
	tmpl.MultiplierRegion = &frame.Region{X: 0.4, Y: 0.4, W: 0.2, H: 0.1}

	res, err := New(rec, Options{}).Extract(context.Background(), testFrame(), &tmpl)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Balance == nil || *res.Balance != 1234.56 || res.BalanceConfidence != 0.95 {
		t.Errorf("balance = %v (%.2f)", res.Balance, res.BalanceConfidence)
	}
	if res.Bet == nil || *res.Bet != 2 {
		t.Errorf("bet = %v", res.Bet)
	}
	if res.Win == nil || *res.Win != 300 {
		t.Errorf("win = %v", res.Win)
	}
	if res.Multiplier == nil || *res.Multiplier != 150 {
		t.Errorf("multiplier = %v", res.Multiplier)
	}
	if !res.IsValid || res.Error != "" {
		t.Errorf("IsValid = %v, Error = %q", res.IsValid, res.Error)
	}
	if rec.Calls() != 4 {
		t.Errorf("recognizer calls = %d, want 4", rec.Calls())
	}
}

func TestExtractParseFailureLeavesFieldAbsent(t *testing.T) {
	rec := ocr.NewMock(
		ocr.Texts("500", 0.95),
		ocr.Texts("B E T", 0.9),
		nil,
	)
	tmpl := validTemplate("g1")
	res, err := New(rec, Options{}).Extract(context.Background(), testFrame(), &tmpl)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Bet != nil || res.BetConfidence != 0 {
		t.Errorf("bet = %v (%.2f), want absent", res.Bet, res.BetConfidence)
	}
	if res.Win != nil {
		t.Errorf("win = %v, want absent", res.Win)
	}
	if res.Error == "" {
		t.Error("Error should name unparsed fields")
	}
	if !res.IsValid {
		t.Error("balance alone should pass the coarse check")
	}
}

func TestExtractRecognitionFailure(t *testing.T) {
	rec := ocr.NewMock()
	rec.SetError(errors.New("model crashed"))
	tmpl := validTemplate("g1")

	_, err := New(rec, Options{}).Extract(context.Background(), testFrame(), &tmpl)
	if !apperrors.IsCode(err, apperrors.RecognitionFailed) {
		t.Errorf("error = %v, want RecognitionFailed", err)
	}
}

func TestExtractKeywordScan(t *testing.T) {
	rec := ocr.NewMock([]ocr.RecognizedText{
		{Text: "CREDIT 1,000.00", Confidence: 0.9},
		{Text: "STAKE", Confidence: 0.8},
		{Text: "5.00", Confidence: 0.85},
		{Text: "payout: 40", Confidence: 0.7},
		{Text: "25x", Confidence: 0.6},
	})

	res, err := New(rec, Options{}).Extract(context.Background(), testFrame(), nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Balance == nil || *res.Balance != 1000 {
		t.Errorf("balance = %v, want 1000", res.Balance)
	}
	if res.Bet == nil || *res.Bet != 5 || res.BetConfidence != 0.85 {
		t.Errorf("bet = %v (%.2f), want 5 from following fragment", res.Bet, res.BetConfidence)
	}
	if res.Win == nil || *res.Win != 40 {
		t.Errorf("win = %v, want 40", res.Win)
	}
	if res.Multiplier == nil || *res.Multiplier != 25 {
		t.Errorf("multiplier = %v, want 25", res.Multiplier)
	}
}

func TestPrecheck(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	e := New(nil, Options{MinConfidence: 0.85})
	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{"ok", Result{Balance: f(100), BalanceConfidence: 0.9}, true},
		{"no balance", Result{Bet: f(1)}, false},
		{"negative balance", Result{Balance: f(-1), BalanceConfidence: 0.9}, false},
		{"bet over balance", Result{Balance: f(10), Bet: f(20), BalanceConfidence: 0.9}, false},
		{"negative win", Result{Balance: f(10), Win: f(-5), BalanceConfidence: 0.9}, false},
		{"low confidence", Result{Balance: f(10), BalanceConfidence: 0.5}, false},
	}
	for _, tt := range tests {
		if got := e.precheck(&tt.res); got != tt.want {
			t.Errorf("%s: precheck() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
