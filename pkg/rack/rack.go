// Package rack defines the rack configuration record used by every stage of
// warehouse sizing.
//
// A [Configuration] describes one racking system: tote geometry, clearances,
// upright and beam dimensions, the width-axis layout mode, setbacks from the
// building walls, vertical stacking rules and the export styling applied to
// each bay type. Configurations are loaded from a catalog, completed with
// [Configuration.WithDefaults] and checked with [Configuration.Validate]
// once; after that they are treated as immutable values.
//
// All lengths are millimetres.
package rack

import (
	"fmt"
	"maps"

	"github.com/matzehuels/racksizer/pkg/errors"
)

// LayoutMode selects the width-axis pattern of racks and aisles.
type LayoutMode string

const (
	// LayoutSingle alternates single racks and aisles: R A R A R.
	LayoutSingle LayoutMode = "single"
	// LayoutDouble places back-to-back rack pairs between aisles: A D A D A.
	LayoutDouble LayoutMode = "double"
	// LayoutSingleDoubleSingle puts single-depth racks against both walls and
	// back-to-back pairs in between: S A D A D A S.
	LayoutSingleDoubleSingle LayoutMode = "s-d-s"
)

// LayoutModes lists all supported layout modes.
var LayoutModes = []LayoutMode{LayoutSingle, LayoutDouble, LayoutSingleDoubleSingle}

// Valid reports whether m is a known layout mode.
func (m LayoutMode) Valid() bool {
	switch m {
	case LayoutSingle, LayoutDouble, LayoutSingleDoubleSingle:
		return true
	}
	return false
}

// BayType is the role assigned to a bay position in a rack row.
type BayType string

const (
	BayStandard BayType = "Standard"
	BayTunnel   BayType = "Tunnel"
	BayBackpack BayType = "Backpack"
)

// BayTypes lists bay types in export order.
var BayTypes = []BayType{BayStandard, BayTunnel, BayBackpack}

// Default values applied by [Configuration.WithDefaults].
const (
	DefaultToteQtyPerBay  = 1
	DefaultTotesDeep      = 1
	DefaultMaxPerfDensity = 50.0
	DefaultTagName        = "BayType"
	DefaultBlock          = "GenericBay"
)

// Style is the CAD block styling for one bay type.
type Style struct {
	Block    string  `toml:"block" yaml:"block" json:"block"`
	Color    int     `toml:"color" yaml:"color" json:"color"`
	Rotation int     `toml:"rotation" yaml:"rotation" json:"rotation"`
	OffsetX  float64 `toml:"offset_x" yaml:"offset_x" json:"offset_x"`
	OffsetY  float64 `toml:"offset_y" yaml:"offset_y" json:"offset_y"`
}

// withDefaults fills the zero Block, Color and Rotation of s from def.
// Offsets are kept as given. A style that wants no rotation on a rotated
// default sets Rotation to 360.
func (s Style) withDefaults(def Style) Style {
	if s.Block == "" {
		s.Block = def.Block
	}
	if s.Block == "" {
		s.Block = DefaultBlock
	}
	if s.Color == 0 {
		s.Color = def.Color
	}
	if s.Rotation == 0 {
		s.Rotation = def.Rotation
	}
	return s
}

// DefaultStyles returns the styling used for bay types a configuration
// does not style itself. Fields a configured style leaves zero take the
// bay type's default.
func DefaultStyles() map[BayType]Style {
	return map[BayType]Style{
		BayStandard: {Block: DefaultBlock, Color: 256, Rotation: 0},
		BayBackpack: {Block: DefaultBlock, Color: 5, Rotation: 0},
		BayTunnel:   {Block: DefaultBlock, Color: 2, Rotation: 90},
	}
}

// Export holds the CAD export settings of a configuration.
type Export struct {
	TagName string            `toml:"tag_name" yaml:"tag_name" json:"tag_name"`
	Styles  map[BayType]Style `toml:"styles" yaml:"styles" json:"styles"`
}

// Configuration is a rack system definition.
type Configuration struct {
	Key  string `toml:"key" yaml:"key" json:"key"`
	Name string `toml:"name" yaml:"name" json:"name"`

	// Tote geometry
	ToteWidth     float64 `toml:"tote_width" yaml:"tote_width" json:"tote_width"`
	ToteLength    float64 `toml:"tote_length" yaml:"tote_length" json:"tote_length"`
	ToteHeight    float64 `toml:"tote_height" yaml:"tote_height" json:"tote_height"`
	ToteQtyPerBay int     `toml:"tote_qty_per_bay" yaml:"tote_qty_per_bay" json:"tote_qty_per_bay"`
	TotesDeep     int     `toml:"totes_deep" yaml:"totes_deep" json:"totes_deep"`

	// Clearances inside a bay
	ToteToToteDist     float64 `toml:"tote_to_tote_dist" yaml:"tote_to_tote_dist" json:"tote_to_tote_dist"`
	ToteToUprightDist  float64 `toml:"tote_to_upright_dist" yaml:"tote_to_upright_dist" json:"tote_to_upright_dist"`
	ToteBackToBackDist float64 `toml:"tote_back_to_back_dist" yaml:"tote_back_to_back_dist" json:"tote_back_to_back_dist"`

	// Structure
	UprightLength float64 `toml:"upright_length" yaml:"upright_length" json:"upright_length"`
	UprightWidth  float64 `toml:"upright_width" yaml:"upright_width" json:"upright_width"`
	HookAllowance float64 `toml:"hook_allowance" yaml:"hook_allowance" json:"hook_allowance"`

	// Floor plan
	AisleWidth    float64    `toml:"aisle_width" yaml:"aisle_width" json:"aisle_width"`
	FlueSpace     float64    `toml:"flue_space" yaml:"flue_space" json:"flue_space"`
	LayoutMode    LayoutMode `toml:"layout_mode" yaml:"layout_mode" json:"layout_mode"`
	SetbackTop    float64    `toml:"setback_top" yaml:"setback_top" json:"setback_top"`
	SetbackBottom float64    `toml:"setback_bottom" yaml:"setback_bottom" json:"setback_bottom"`
	SetbackLeft   float64    `toml:"setback_left" yaml:"setback_left" json:"setback_left"`
	SetbackRight  float64    `toml:"setback_right" yaml:"setback_right" json:"setback_right"`

	// Vertical stacking
	BaseBeamHeight     float64 `toml:"base_beam_height" yaml:"base_beam_height" json:"base_beam_height"`
	BeamWidth          float64 `toml:"beam_width" yaml:"beam_width" json:"beam_width"`
	MinClearance       float64 `toml:"min_clearance" yaml:"min_clearance" json:"min_clearance"`
	OverheadClearance  float64 `toml:"overhead_clearance" yaml:"overhead_clearance" json:"overhead_clearance"`
	SprinklerThreshold float64 `toml:"sprinkler_threshold" yaml:"sprinkler_threshold" json:"sprinkler_threshold"`
	SprinklerClearance float64 `toml:"sprinkler_clearance" yaml:"sprinkler_clearance" json:"sprinkler_clearance"`

	// Performance ceiling in throughput units per square metre.
	MaxPerfDensity float64 `toml:"max_perf_density" yaml:"max_perf_density" json:"max_perf_density"`

	ConsiderTunnels   bool `toml:"consider_tunnels" yaml:"consider_tunnels" json:"consider_tunnels"`
	ConsiderBackpacks bool `toml:"consider_backpacks" yaml:"consider_backpacks" json:"consider_backpacks"`

	Export Export `toml:"export" yaml:"export" json:"export"`
}

// DisplayName returns Name, falling back to Key.
func (c Configuration) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}

// WithDefaults returns a copy of c with zero-valued optional fields filled
// in. The receiver is not modified.
func (c Configuration) WithDefaults() Configuration {
	if c.LayoutMode == "" {
		c.LayoutMode = LayoutSingle
	}
	if c.ToteQtyPerBay == 0 {
		c.ToteQtyPerBay = DefaultToteQtyPerBay
	}
	if c.TotesDeep == 0 {
		c.TotesDeep = DefaultTotesDeep
	}
	if c.MaxPerfDensity == 0 {
		c.MaxPerfDensity = DefaultMaxPerfDensity
	}
	if c.Export.TagName == "" {
		c.Export.TagName = DefaultTagName
	}

	styles := DefaultStyles()
	for bt, s := range c.Export.Styles {
		styles[bt] = s.withDefaults(styles[bt])
	}
	c.Export.Styles = styles
	return c
}

// Clone returns a deep copy of c.
func (c Configuration) Clone() Configuration {
	c.Export.Styles = maps.Clone(c.Export.Styles)
	return c
}

// Validate checks the configuration invariants: every spatial field is
// non-negative, tote dimensions are positive, counts are at least one and
// the layout mode is known.
func (c Configuration) Validate() error {
	if c.Key == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "configuration key is required")
	}
	if err := c.validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "configuration %q", c.Key)
	}
	return nil
}

func (c Configuration) validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"tote_width", c.ToteWidth},
		{"tote_length", c.ToteLength},
		{"tote_height", c.ToteHeight},
		{"max_perf_density", c.MaxPerfDensity},
	}
	for _, f := range positive {
		if err := errors.ValidatePositive(f.name, f.v); err != nil {
			return err
		}
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"tote_to_tote_dist", c.ToteToToteDist},
		{"tote_to_upright_dist", c.ToteToUprightDist},
		{"tote_back_to_back_dist", c.ToteBackToBackDist},
		{"upright_length", c.UprightLength},
		{"upright_width", c.UprightWidth},
		{"hook_allowance", c.HookAllowance},
		{"aisle_width", c.AisleWidth},
		{"flue_space", c.FlueSpace},
		{"setback_top", c.SetbackTop},
		{"setback_bottom", c.SetbackBottom},
		{"setback_left", c.SetbackLeft},
		{"setback_right", c.SetbackRight},
		{"base_beam_height", c.BaseBeamHeight},
		{"beam_width", c.BeamWidth},
		{"min_clearance", c.MinClearance},
		{"overhead_clearance", c.OverheadClearance},
		{"sprinkler_threshold", c.SprinklerThreshold},
		{"sprinkler_clearance", c.SprinklerClearance},
	}
	for _, f := range nonNegative {
		if err := errors.ValidateNonNegative(f.name, f.v); err != nil {
			return err
		}
	}

	if err := errors.ValidatePositiveInt("tote_qty_per_bay", c.ToteQtyPerBay); err != nil {
		return err
	}
	if err := errors.ValidatePositiveInt("totes_deep", c.TotesDeep); err != nil {
		return err
	}
	if !c.LayoutMode.Valid() {
		return fmt.Errorf("unknown layout_mode %q (must be one of: single, double, s-d-s)", c.LayoutMode)
	}
	for bt := range c.Export.Styles {
		switch bt {
		case BayStandard, BayTunnel, BayBackpack:
		default:
			return fmt.Errorf("export style for unknown bay type %q", bt)
		}
	}
	return nil
}

// StyleFor returns the export style of a bay type, falling back to the
// package defaults.
func (c Configuration) StyleFor(bt BayType) Style {
	def := DefaultStyles()[bt]
	if s, ok := c.Export.Styles[bt]; ok {
		return s.withDefaults(def)
	}
	return def
}

// TagName returns the export tag property name.
func (c Configuration) TagName() string {
	if c.Export.TagName == "" {
		return DefaultTagName
	}
	return c.Export.TagName
}
