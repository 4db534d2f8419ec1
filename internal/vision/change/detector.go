package change

import (
	"image"
	"sort"
	"strings"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/frame"
)

// Options configures a Detector.
type Options struct {
	Method          Method
	Threshold       float64 // whole-frame change fraction
	RegionThreshold float64 // per-region change fraction
	BlockSize       int     // structural method only
	BlockThreshold  float64 // structural method only
}

// DefaultOptions returns the pixel method with default thresholds.
func DefaultOptions() Options {
	return Options{
		Method:          MethodPixel,
		Threshold:       DefaultThreshold,
		RegionThreshold: DefaultRegionThreshold,
		BlockSize:       DefaultBlockSize,
		BlockThreshold:  DefaultBlockThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.Method == "" {
		o.Method = MethodPixel
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.RegionThreshold <= 0 {
		o.RegionThreshold = DefaultRegionThreshold
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.BlockThreshold <= 0 {
		o.BlockThreshold = DefaultBlockThreshold
	}
	return o
}

// NamedRegion is a changed region in pixel coordinates.
type NamedRegion struct {
	Name string
	Rect image.Rectangle
}

// Result describes how a frame differs from the previous one.
type Result struct {
	HasChanged       bool
	ChangePercentage float64
	ChangedRegions   []NamedRegion
	RegionChanges    map[string]float64
	BalanceChanged   bool
	WinChanged       bool
}

// ChangeDetector is implemented by Detector and AdaptiveDetector.
type ChangeDetector interface {
	Detect(f *frame.Frame, regions map[string]image.Rectangle) Result
	Reset()
}

// Detector compares each frame with the most recent one it has seen.
// It is not safe for concurrent use.
type Detector struct {
	opts        Options
	cmp         comparer
	prev        *frame.Frame
	prevRegions map[string]*frame.Frame
}

// NewDetector creates a detector.
func NewDetector(opts Options) *Detector {
	d := &Detector{opts: opts.withDefaults(), prevRegions: make(map[string]*frame.Frame)}
	d.cmp = d.comparerFor(d.opts.Method)
	return d
}

// Options returns the effective options.
func (d *Detector) Options() Options { return d.opts }

// Detect compares f with the stored snapshot and then replaces the snapshot with f.
// The first call after construction or Reset always reports full change.
func (d *Detector) Detect(f *frame.Frame, regions map[string]image.Rectangle) Result {
	first := d.prev == nil
	res := Result{HasChanged: true, ChangePercentage: 1.0}
	if !first {
		res.ChangePercentage = d.compare(d.prev, f)
		res.HasChanged = res.ChangePercentage > d.opts.Threshold
	}

	if len(regions) > 0 {
		d.detectRegions(f, regions, &res)
	}

	d.prev = f.Clone()
	return res
}

func (d *Detector) detectRegions(f *frame.Frame, regions map[string]image.Rectangle, res *Result) {
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)

	res.RegionChanges = make(map[string]float64, len(names))
	for _, name := range names {
		rect := regions[name]
		crop := f.Crop(rect)
		pct := d.compare(d.prevRegions[name], crop)
		res.RegionChanges[name] = pct
		d.prevRegions[name] = crop

		if pct <= d.opts.RegionThreshold {
			continue
		}
		res.ChangedRegions = append(res.ChangedRegions, NamedRegion{Name: name, Rect: rect})
		lower := strings.ToLower(name)
		if strings.Contains(lower, "balance") {
			res.BalanceChanged = true
		}
		if strings.Contains(lower, "win") {
			res.WinChanged = true
		}
	}
}

// Reset forgets all snapshots so the next Detect behaves as a first call.
func (d *Detector) Reset() {
	d.prev = nil
	d.prevRegions = make(map[string]*frame.Frame)
}
