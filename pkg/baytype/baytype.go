// Package baytype assigns tunnel and backpack roles to bay positions along a
// rack row.
//
// Both roles are spread with the same rounding rule. For count special bays
// in a run of n positions, the k-th (1-based) lands on
//
//	round(k*(n+1)/(count+1)) - 1
//
// Tunnels are placed first, one per nine bays. The row is then cut into
// sections at the placed tunnel positions and each section receives one
// backpack per five bays, offset by the section start. A position already holding a
// tunnel never becomes a backpack.
//
// The formula is applied as is. Rounding can map two k values of a short
// section to the same position; such positions are reported once.
package baytype

import (
	"math"
	"slices"

	"github.com/matzehuels/racksizer/pkg/rack"
)

const (
	// TunnelInterval is the number of bays per tunnel bay.
	TunnelInterval = 9
	// BackpackInterval is the number of bays per backpack bay within a section.
	BackpackInterval = 5
)

// spread returns count positions evenly spaced across n slots.
func spread(n, count int) []int {
	out := make([]int, 0, count)
	for k := 1; k <= count; k++ {
		pos := int(math.Round(float64(k*(n+1))/float64(count+1))) - 1
		out = append(out, pos)
	}
	return out
}

// Tunnels returns the ascending tunnel bay indices for a row of baysPerRack
// bays. Rows shorter than nine bays have no tunnels.
func Tunnels(baysPerRack int) []int {
	count := baysPerRack / TunnelInterval
	if count == 0 {
		return nil
	}
	return slices.Compact(spread(baysPerRack, count))
}

// Backpacks returns the ascending backpack bay indices for a row of
// baysPerRack bays, given the row's tunnel indices.
func Backpacks(baysPerRack int, tunnels []int) []int {
	if baysPerRack < BackpackInterval {
		return nil
	}

	bounds := make([]int, 0, len(tunnels)+2)
	bounds = append(bounds, 0)
	bounds = append(bounds, tunnels...)
	bounds = append(bounds, baysPerRack)
	slices.Sort(bounds)

	var out []int
	for i := 0; i < len(bounds)-1; i++ {
		start, end := bounds[i], bounds[i+1]
		length := end - start
		if length < 1 {
			continue
		}
		count := length / BackpackInterval
		if count == 0 {
			continue
		}
		for _, pos := range spread(length, count) {
			idx := start + pos
			if slices.Contains(tunnels, idx) {
				continue
			}
			out = append(out, idx)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Row is the resolved role of every bay position in a rack row.
type Row struct {
	Tunnels   []int `json:"tunnels,omitempty"`
	Backpacks []int `json:"backpacks,omitempty"`
	n         int
}

// Assign resolves the bay roles for a row of baysPerRack bays. Tunnels and
// backpacks are only placed when the corresponding flag is set. Backpack
// sections are cut at the placed tunnels only; without tunnels the whole row
// is one section.
func Assign(baysPerRack int, considerTunnels, considerBackpacks bool) Row {
	r := Row{n: baysPerRack}
	if considerTunnels {
		r.Tunnels = Tunnels(baysPerRack)
	}
	if considerBackpacks {
		r.Backpacks = Backpacks(baysPerRack, r.Tunnels)
	}
	return r
}

// Len returns the number of bay positions in the row.
func (r Row) Len() int { return r.n }

// TypeAt returns the role of bay index i. Tunnel takes priority over
// backpack.
func (r Row) TypeAt(i int) rack.BayType {
	if _, ok := slices.BinarySearch(r.Tunnels, i); ok {
		return rack.BayTunnel
	}
	if _, ok := slices.BinarySearch(r.Backpacks, i); ok {
		return rack.BayBackpack
	}
	return rack.BayStandard
}

// Counts returns the number of bays of each role in the row.
func (r Row) Counts() map[rack.BayType]int {
	counts := map[rack.BayType]int{
		rack.BayTunnel:   len(r.Tunnels),
		rack.BayBackpack: len(r.Backpacks),
	}
	counts[rack.BayStandard] = r.n - counts[rack.BayTunnel] - counts[rack.BayBackpack]
	return counts
}
