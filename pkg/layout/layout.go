// Package layout packs racks and aisles into a rectangular footprint.
//
// The width axis (x) carries the rack/aisle pattern selected by the layout
// mode. The length axis (y) carries the bays of each rack row: a repeating
// unit of one upright plus one clear opening, tiled as many whole times as
// the usable length allows.
//
// [Pack] is a pure function. Identical parameters always produce an
// identical [Result], including item offsets.
package layout

import (
	"math"

	"github.com/matzehuels/racksizer/pkg/baytype"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// Footprint is a building floor area in millimetres.
type Footprint struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// AreaM2 returns the footprint area in square metres.
func (f Footprint) AreaM2() float64 {
	return f.Length * f.Width / 1e6
}

// Exceeds reports whether f is longer or wider than bound.
func (f Footprint) Exceeds(bound Footprint) bool {
	return f.Length > bound.Length || f.Width > bound.Width
}

// ItemKind distinguishes the two kinds of width-axis items.
type ItemKind string

const (
	KindAisle ItemKind = "aisle"
	KindRack  ItemKind = "rack"
)

// Item is one placement along the width axis.
type Item struct {
	Kind ItemKind `json:"kind"`
	// X is the world-space offset of the item's left edge.
	X     float64 `json:"x"`
	Width float64 `json:"width"`
	// Double marks a back-to-back rack pair. Width then spans both racks
	// and the flue between them.
	Double bool `json:"double,omitempty"`
	// Depth is the depth of one rack of the item.
	Depth float64 `json:"depth,omitempty"`
	// SingleDepth marks racks built at single-tote depth.
	SingleDepth bool `json:"single_depth,omitempty"`
}

// Racks returns the number of individual racks the item contributes.
func (it Item) Racks() int {
	switch {
	case it.Kind != KindRack:
		return 0
	case it.Double:
		return 2
	default:
		return 1
	}
}

// Params are the inputs of [Pack].
type Params struct {
	BayDepthConfig  float64
	BayDepthSingle  float64
	AisleWidth      float64
	Length          float64
	Width           float64
	Mode            rack.LayoutMode
	FlueSpace       float64
	SetbackTop      float64
	SetbackBottom   float64
	SetbackLeft     float64
	SetbackRight    float64
	UprightLength   float64
	ClearOpening    float64
	ConsiderTunnels bool
}

// ParamsFor derives packer parameters from a configuration and footprint.
func ParamsFor(cfg rack.Configuration, fp Footprint) Params {
	return Params{
		BayDepthConfig:  cfg.BayDepthConfig(),
		BayDepthSingle:  cfg.BayDepthSingle(),
		AisleWidth:      cfg.AisleWidth,
		Length:          fp.Length,
		Width:           fp.Width,
		Mode:            cfg.LayoutMode,
		FlueSpace:       cfg.FlueSpace,
		SetbackTop:      cfg.SetbackTop,
		SetbackBottom:   cfg.SetbackBottom,
		SetbackLeft:     cfg.SetbackLeft,
		SetbackRight:    cfg.SetbackRight,
		UprightLength:   cfg.UprightLength,
		ClearOpening:    cfg.ClearOpening(),
		ConsiderTunnels: cfg.ConsiderTunnels,
	}
}

// Result is the packed arrangement.
type Result struct {
	// Rows counts racks individually; a back-to-back pair counts twice.
	Rows int `json:"rows"`
	// ConfigDepthRacks and SingleDepthRacks split Rows by rack depth.
	ConfigDepthRacks int `json:"config_depth_racks"`
	SingleDepthRacks int `json:"single_depth_racks"`
	BaysPerRack      int `json:"bays_per_rack"`
	// BayDepth is the depth of the configuration-depth racks, or the single
	// depth when the pattern holds no other racks.
	BayDepth        float64 `json:"bay_depth"`
	BayUnit         float64 `json:"bay_unit"`
	TotalRackLength float64 `json:"total_rack_length"`
	TotalWidth      float64 `json:"total_width"`
	UsableLength    float64 `json:"usable_length"`
	UsableWidth     float64 `json:"usable_width"`
	Items           []Item  `json:"items"`
	// Tunnels holds the tunnel bay indices shared by every row when tunnels
	// are considered.
	Tunnels []int `json:"tunnels,omitempty"`
}

// TotalBays is the bay count across all racks.
func (r Result) TotalBays() int {
	return r.BaysPerRack * r.Rows
}

// Pack arranges racks and aisles inside the footprint described by p.
func Pack(p Params) Result {
	usableLength := max(p.Length-p.SetbackTop-p.SetbackBottom, 0)
	usableWidth := max(p.Width-p.SetbackLeft-p.SetbackRight, 0)

	res := Result{
		UsableLength: usableLength,
		UsableWidth:  usableWidth,
		BayDepth:     p.BayDepthConfig,
		BayUnit:      p.UprightLength + p.ClearOpening,
	}

	if res.BayUnit > 0 {
		res.BaysPerRack = int(math.Floor(usableLength / res.BayUnit))
	}
	res.TotalRackLength = float64(res.BaysPerRack) * res.BayUnit

	if p.BayDepthConfig <= 0 || p.BayDepthSingle <= 0 {
		return res
	}

	pk := &packer{p: p, limit: usableWidth, x: p.SetbackLeft}
	switch p.Mode {
	case rack.LayoutDouble:
		pk.double()
	case rack.LayoutSingleDoubleSingle:
		pk.singleDoubleSingle()
	default:
		pk.single()
	}

	res.Items = pk.items
	res.TotalWidth = pk.used
	for _, it := range pk.items {
		if it.SingleDepth {
			res.SingleDepthRacks += it.Racks()
		} else {
			res.ConfigDepthRacks += it.Racks()
		}
	}
	res.Rows = res.ConfigDepthRacks + res.SingleDepthRacks
	if res.ConfigDepthRacks == 0 && res.SingleDepthRacks > 0 {
		res.BayDepth = p.BayDepthSingle
	}
	if res.Rows == 0 {
		res.Items = nil
		res.TotalWidth = 0
	}

	if p.ConsiderTunnels && res.Rows > 0 {
		res.Tunnels = baytype.Tunnels(res.BaysPerRack)
	}
	return res
}

// packer places items left to right and tracks consumed width.
type packer struct {
	p     Params
	limit float64
	x     float64
	used  float64
	items []Item
}

func (pk *packer) fits(w float64) bool {
	return pk.used+w <= pk.limit
}

func (pk *packer) place(it Item) {
	it.X = pk.x
	pk.items = append(pk.items, it)
	pk.x += it.Width
	pk.used += it.Width
}

func (pk *packer) aisle() Item {
	return Item{Kind: KindAisle, Width: pk.p.AisleWidth}
}

func (pk *packer) rack(depth float64, singleDepth bool) Item {
	return Item{Kind: KindRack, Width: depth, Depth: depth, SingleDepth: singleDepth}
}

func (pk *packer) pair() Item {
	d := pk.p.BayDepthConfig
	return Item{Kind: KindRack, Width: 2*d + pk.p.FlueSpace, Depth: d, Double: true}
}

// single lays out R (A R)*.
func (pk *packer) single() {
	r := pk.rack(pk.p.BayDepthConfig, false)
	if !pk.fits(r.Width) {
		return
	}
	pk.place(r)
	for pk.fits(pk.p.AisleWidth + r.Width) {
		pk.place(pk.aisle())
		pk.place(r)
	}
}

// double lays out A (D A)*.
func (pk *packer) double() {
	a := pk.aisle()
	if !pk.fits(a.Width) {
		return
	}
	pk.place(a)
	d := pk.pair()
	for pk.fits(d.Width + a.Width) {
		pk.place(d)
		pk.place(a)
	}
}

// singleDoubleSingle lays out S (A D)* A S. A pair is only placed when the
// aisle closing it also fits.
func (pk *packer) singleDoubleSingle() {
	s := pk.rack(pk.p.BayDepthSingle, true)
	if !pk.fits(s.Width) {
		return
	}
	pk.place(s)

	a := pk.aisle()
	d := pk.pair()
	pairs := 0
	for pk.fits(a.Width + d.Width + a.Width) {
		pk.place(a)
		pk.place(d)
		pairs++
	}

	switch {
	case pk.fits(a.Width + s.Width):
		pk.place(a)
		pk.place(s)
	case pairs > 0:
		pk.place(a)
	}
}
