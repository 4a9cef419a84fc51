// Package metrics derives the storage summary of a footprint for one rack
// configuration.
//
// [Compute] packs the floor with the layout packer, stacks levels within the
// clear height and multiplies out the storage locations. It holds no state.
package metrics

import (
	"github.com/matzehuels/racksizer/pkg/baytype"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/layout"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// Result is the derived layout summary.
type Result struct {
	Footprint layout.Footprint `json:"footprint"`
	Height    float64          `json:"height"`
	Layout    layout.Result    `json:"layout"`

	MaxLevels int `json:"max_levels"`
	Levels    int `json:"levels"`

	BaysPerRack    int `json:"bays_per_rack"`
	Rows           int `json:"rows"`
	TotalBays      int `json:"total_bays"`
	TunnelBays     int `json:"tunnel_bays"`
	BackpackBays   int `json:"backpack_bays"`
	TotalLocations int `json:"total_locations"`

	FootprintM2    float64 `json:"footprint_m2"`
	ToteVolumeM3   float64 `json:"tote_volume_m3"`
	GrossVolumeM3  float64 `json:"gross_volume_m3"`
	MaxPerfDensity float64 `json:"max_perf_density"`
}

type options struct {
	levels    int
	hasLevels bool
}

// Option customizes [Compute].
type Option func(*options)

// WithLevels fixes the level count instead of using the structural maximum.
// The count must be between one and the computed maximum.
func WithLevels(n int) Option {
	return func(o *options) {
		o.levels = n
		o.hasLevels = true
	}
}

// Compute derives the layout summary of fp at the given clear height.
func Compute(fp layout.Footprint, height float64, cfg rack.Configuration, opts ...Option) (Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := errors.ValidatePositive("length", fp.Length); err != nil {
		return Result{}, err
	}
	if err := errors.ValidatePositive("width", fp.Width); err != nil {
		return Result{}, err
	}
	if err := errors.ValidatePositive("height", height); err != nil {
		return Result{}, err
	}

	lr := layout.Pack(layout.ParamsFor(cfg, fp))
	maxLevels := MaxLevels(height, cfg)

	levels := maxLevels
	if o.hasLevels {
		if o.levels < 1 || o.levels > maxLevels {
			return Result{}, errors.New(errors.ErrCodeInvalidInput,
				"level override %d outside 1..%d", o.levels, maxLevels)
		}
		levels = o.levels
	}

	row := baytype.Assign(lr.BaysPerRack, cfg.ConsiderTunnels, cfg.ConsiderBackpacks)
	counts := row.Counts()

	res := Result{
		Footprint:      fp,
		Height:         height,
		Layout:         lr,
		MaxLevels:      maxLevels,
		Levels:         levels,
		BaysPerRack:    lr.BaysPerRack,
		Rows:           lr.Rows,
		TotalBays:      lr.TotalBays(),
		TunnelBays:     counts[rack.BayTunnel] * lr.Rows,
		BackpackBays:   counts[rack.BayBackpack] * lr.Rows,
		TotalLocations: Locations(lr, levels, cfg),
		FootprintM2:    fp.AreaM2(),
		ToteVolumeM3:   cfg.ToteVolumeM3(),
		MaxPerfDensity: cfg.MaxPerfDensity,
	}
	res.GrossVolumeM3 = res.ToteVolumeM3 * float64(res.TotalLocations)
	return res, nil
}

// Locations multiplies out the storage positions of a packed layout at the
// given level count. Configuration-depth racks hold the configured number
// of totes deep, single-depth racks hold one.
func Locations(lr layout.Result, levels int, cfg rack.Configuration) int {
	perRack := lr.BaysPerRack * levels * cfg.ToteQtyPerBay
	deep := lr.ConfigDepthRacks*cfg.TotesDeepFor(false) + lr.SingleDepthRacks*cfg.TotesDeepFor(true)
	return perRack * deep
}

// MaxLevels returns the number of beam levels that fit under the clear
// height. Levels are stacked from the base beam; once a level would rise
// above the sprinkler threshold, that level and every level above it carry
// the extra sprinkler clearance.
func MaxLevels(height float64, cfg rack.Configuration) int {
	usable := height - cfg.OverheadClearance
	y := cfg.BaseBeamHeight
	step := cfg.ToteHeight + cfg.MinClearance
	if step <= 0 {
		return 0
	}

	sprinkler := false
	levels := 0
	for {
		h := step
		if cfg.SprinklerThreshold > 0 && (sprinkler || y+h > cfg.SprinklerThreshold) {
			sprinkler = true
			h += cfg.SprinklerClearance
		}
		if y+h > usable {
			return levels
		}
		levels++
		y += h + cfg.BeamWidth
	}
}
