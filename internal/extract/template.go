package extract

import (
	"encoding/json"
	"image"
	"os"
	"strconv"

	apperrors "github.com/GriffinCanCode/reelwatch/backend/platform/internal/errors"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/syncx"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/vision/preprocess"
)

// PreprocessFlags are the per-game preprocessing toggles carried by a template.
type PreprocessFlags struct {
	Grayscale bool `json:"grayscale"`
	Threshold bool `json:"threshold"`
	Denoise   bool `json:"denoise"`
	Invert    bool `json:"invert"`
}

// IsZero reports whether no flag is set.
func (p PreprocessFlags) IsZero() bool {
	return p == PreprocessFlags{}
}

// Template names the fractional screen regions of one game's UI.
type Template struct {
	GameID           string          `json:"game_id"`
	GameName         string          `json:"game_name"`
	BalanceRegion    frame.Region    `json:"balance_region"`
	BetRegion        frame.Region    `json:"bet_region"`
	WinRegion        frame.Region    `json:"win_region"`
	MultiplierRegion *frame.Region   `json:"multiplier_region,omitempty"`
	Preprocess       PreprocessFlags `json:"preprocess"`
}

// Validate rejects templates without an ID or with regions outside the unit square.
func (t *Template) Validate() error {
	if t.GameID == "" {
		return apperrors.New(apperrors.TemplateInvalid, "template game_id is required")
	}
	for name, r := range t.Regions() {
		if err := r.Validate(); err != nil {
			return apperrors.Wrapf(err, apperrors.TemplateInvalid, "template %s: %s region", t.GameID, name).
				WithMetadata("game_id", t.GameID).
				WithMetadata("region", name)
		}
	}
	return nil
}

// Regions returns the template's regions keyed by field name.
func (t *Template) Regions() map[string]frame.Region {
	out := map[string]frame.Region{
		FieldBalance: t.BalanceRegion,
		FieldBet:     t.BetRegion,
		FieldWin:     t.WinRegion,
	}
	if t.MultiplierRegion != nil {
		out[FieldMultiplier] = *t.MultiplierRegion
	}
	return out
}

// PixelRegions maps every region onto a frame of the given size.
func (t *Template) PixelRegions(width, height int) map[string]image.Rectangle {
	regions := t.Regions()
	out := make(map[string]image.Rectangle, len(regions))
	for name, r := range regions {
		out[name] = r.Pixels(width, height)
	}
	return out
}

// ProcessorOptions translates the flags into preprocessing options.
func (t *Template) ProcessorOptions() preprocess.Options {
	return preprocess.Options{
		Grayscale: t.Preprocess.Grayscale,
		Binarize:  t.Preprocess.Threshold,
		Denoise:   t.Preprocess.Denoise,
		Invert:    t.Preprocess.Invert,
	}
}

// Registry holds templates by game ID. Safe for concurrent use.
type Registry struct {
	templates *syncx.Map[string, Template]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: syncx.NewMap[string](cloneTemplate)}
}

func cloneTemplate(t Template) Template {
	if t.MultiplierRegion != nil {
		m := *t.MultiplierRegion
		t.MultiplierRegion = &m
	}
	return t
}

// Register validates and stores t, replacing any template with the same game ID.
func (r *Registry) Register(t Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.templates.Store(t.GameID, t)
	return nil
}

// Get returns the template for gameID.
func (r *Registry) Get(gameID string) (*Template, error) {
	t, ok := r.templates.Load(gameID)
	if !ok {
		return nil, apperrors.Newf(apperrors.TemplateNotFound, "no template for game %q", gameID)
	}
	return &t, nil
}

// Remove deletes a template. It reports whether one was present.
func (r *Registry) Remove(gameID string) bool {
	return r.templates.Delete(gameID)
}

// Len returns the number of registered templates.
func (r *Registry) Len() int { return r.templates.Len() }

// List returns all templates sorted by game ID.
func (r *Registry) List() []Template {
	return r.templates.Values()
}

// LoadTemplates reads a JSON array of templates from path and registers each one.
// It stops at the first invalid template.
func (r *Registry) LoadTemplates(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.ConfigInvalid, "reading templates file %s", path)
	}
	var list []Template
	if err := json.Unmarshal(data, &list); err != nil {
		return 0, apperrors.Wrapf(err, apperrors.ConfigInvalid, "parsing templates file %s", path)
	}
	for i, t := range list {
		if err := r.Register(t); err != nil {
			if ae, ok := err.(*apperrors.AppError); ok {
				return i, ae.WithMetadata("index", strconv.Itoa(i))
			}
			return i, err
		}
	}
	return len(list), nil
}
