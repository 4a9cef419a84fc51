// Package export materializes every bay of a solved footprint and writes the
// bays in a CAD block-insertion text format.
//
// One line is written per bay type present, in the order Standard, Tunnel,
// Backpack:
//
//	{Block,Color,Rotation|TagName:BayType|(x1,y1,0)(x2,y2,0)...}
//
// Coordinates are whole millimetres: the bay centre plus the type's style
// offset, rounded. The x axis runs across the rack rows, the y axis along
// them, both measured from the footprint corner. Lines are newline-joined
// with no header or trailer.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/matzehuels/racksizer/pkg/baytype"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/layout"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// Bay is one bay position in world space.
type Bay struct {
	Center orb.Point
	Type   rack.BayType
	// Rack is the index of the rack across the width axis, counting each
	// rack of a back-to-back pair separately.
	Rack int
	// Index is the bay position along the rack row.
	Index int
}

// Bays re-packs fp with cfg and returns the centre of every bay. Both racks
// of a back-to-back pair contribute their own bays.
func Bays(cfg rack.Configuration, fp layout.Footprint) ([]Bay, error) {
	if err := errors.ValidatePositive("length", fp.Length); err != nil {
		return nil, err
	}
	if err := errors.ValidatePositive("width", fp.Width); err != nil {
		return nil, err
	}

	lr := layout.Pack(layout.ParamsFor(cfg, fp))
	row := baytype.Assign(lr.BaysPerRack, cfg.ConsiderTunnels, cfg.ConsiderBackpacks)

	var xs []float64
	for _, it := range lr.Items {
		if it.Kind != layout.KindRack {
			continue
		}
		xs = append(xs, it.X+it.Depth/2)
		if it.Double {
			xs = append(xs, it.X+it.Depth+cfg.FlueSpace+it.Depth/2)
		}
	}

	ys := make([]float64, lr.BaysPerRack)
	for i := range ys {
		ys[i] = cfg.SetbackTop + float64(i)*lr.BayUnit + cfg.UprightLength + cfg.ClearOpening()/2
	}

	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{fp.Width, fp.Length}}
	bays := make([]Bay, 0, len(xs)*len(ys))
	for r, x := range xs {
		for i, y := range ys {
			b := Bay{Center: orb.Point{x, y}, Type: row.TypeAt(i), Rack: r, Index: i}
			if !bound.Contains(b.Center) {
				return nil, errors.New(errors.ErrCodeInternal,
					"bay %d of rack %d at (%.1f, %.1f) lies outside the footprint", i, r, x, y)
			}
			bays = append(bays, b)
		}
	}
	return bays, nil
}

// Group is one output line: all bays of one type.
type Group struct {
	Type   rack.BayType `json:"type"`
	Style  rack.Style   `json:"style"`
	Tag    string       `json:"tag"`
	Points []orb.Point  `json:"points"`
}

// Document is the grouped export of a layout.
type Document struct {
	Groups []Group `json:"groups"`
}

// Build groups bays by type and applies the configuration's export styling.
// Types without bays produce no group.
func Build(cfg rack.Configuration, bays []Bay) Document {
	byType := make(map[rack.BayType][]orb.Point, len(rack.BayTypes))
	for _, b := range bays {
		s := cfg.StyleFor(b.Type)
		p := orb.Point{
			math.Round(b.Center.X() + s.OffsetX),
			math.Round(b.Center.Y() + s.OffsetY),
		}
		byType[b.Type] = append(byType[b.Type], p)
	}

	var doc Document
	for _, bt := range rack.BayTypes {
		pts := byType[bt]
		if len(pts) == 0 {
			continue
		}
		doc.Groups = append(doc.Groups, Group{
			Type:   bt,
			Style:  cfg.StyleFor(bt),
			Tag:    cfg.TagName(),
			Points: pts,
		})
	}
	return doc
}

// Export re-derives the bays of fp and builds the export document.
func Export(cfg rack.Configuration, fp layout.Footprint) (Document, error) {
	bays, err := Bays(cfg, fp)
	if err != nil {
		return Document{}, err
	}
	return Build(cfg, bays), nil
}

// Count returns the number of points across all groups.
func (d Document) Count() int {
	n := 0
	for _, g := range d.Groups {
		n += len(g.Points)
	}
	return n
}

// Counts returns the number of points per bay type.
func (d Document) Counts() map[rack.BayType]int {
	out := make(map[rack.BayType]int, len(d.Groups))
	for _, g := range d.Groups {
		out[g.Type] += len(g.Points)
	}
	return out
}

// Bound returns the extent of all exported points.
func (d Document) Bound() orb.Bound {
	var mp orb.MultiPoint
	for _, g := range d.Groups {
		mp = append(mp, g.Points...)
	}
	return mp.Bound()
}

// String renders the document in the CAD text format.
func (d Document) String() string {
	var sb strings.Builder
	_, _ = d.WriteTo(&sb)
	return sb.String()
}

// WriteTo writes the document in the CAD text format.
func (d Document) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for i, g := range d.Groups {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "{%s,%d,%d|%s:%s|", g.Style.Block, g.Style.Color, g.Style.Rotation, g.Tag, g.Type)
		for _, p := range g.Points {
			sb.WriteByte('(')
			sb.WriteString(strconv.FormatInt(int64(p.X()), 10))
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatInt(int64(p.Y()), 10))
			sb.WriteString(",0)")
		}
		sb.WriteByte('}')
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
