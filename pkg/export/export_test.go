package export

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/racksizer/pkg/baytype"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/layout"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// testConfig has a 900 mm clear opening, a 1000 mm bay unit and 1200 mm
// deep racks: bay centres sit at 550 + 1000*i along a row.
func testConfig(mode rack.LayoutMode) rack.Configuration {
	return rack.Configuration{
		Key:               "std",
		ToteWidth:         400,
		ToteLength:        600,
		ToteHeight:        300,
		ToteQtyPerBay:     2,
		TotesDeep:         2,
		ToteToToteDist:    50,
		ToteToUprightDist: 25,
		UprightLength:     100,
		UprightWidth:      100,
		AisleWidth:        1000,
		FlueSpace:         100,
		LayoutMode:        mode,
		MaxPerfDensity:    50,
	}.WithDefaults()
}

func TestExportSmallLayout(t *testing.T) {
	cfg := testConfig(rack.LayoutSingle)
	doc, err := Export(cfg, layout.Footprint{Length: 3000, Width: 3400})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := "{GenericBay,256,0|BayType:Standard|" +
		"(600,550,0)(600,1550,0)(600,2550,0)" +
		"(2800,550,0)(2800,1550,0)(2800,2550,0)}"
	if got := doc.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestExportCountMatchesLayout(t *testing.T) {
	tests := []struct {
		name string
		mode rack.LayoutMode
		fp   layout.Footprint
	}{
		{"single", rack.LayoutSingle, layout.Footprint{Length: 30000, Width: 20000}},
		{"double", rack.LayoutDouble, layout.Footprint{Length: 30000, Width: 20000}},
		{"s-d-s", rack.LayoutSingleDoubleSingle, layout.Footprint{Length: 30000, Width: 20000}},
		{"narrow", rack.LayoutSingle, layout.Footprint{Length: 12000, Width: 1500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.mode)
			cfg.ConsiderTunnels = true
			cfg.ConsiderBackpacks = true

			doc, err := Export(cfg, tt.fp)
			if err != nil {
				t.Fatal(err)
			}
			lr := layout.Pack(layout.ParamsFor(cfg, tt.fp))
			if doc.Count() != lr.TotalBays() {
				t.Errorf("Count() = %d, want %d", doc.Count(), lr.TotalBays())
			}

			row := baytype.Assign(lr.BaysPerRack, true, true)
			perRow := row.Counts()
			counts := doc.Counts()
			for _, bt := range rack.BayTypes {
				if want := perRow[bt] * lr.Rows; counts[bt] != want {
					t.Errorf("%s count = %d, want %d", bt, counts[bt], want)
				}
			}
		})
	}
}

func TestExportLineOrderAndStyles(t *testing.T) {
	cfg := testConfig(rack.LayoutSingle)
	cfg.ConsiderTunnels = true
	cfg.ConsiderBackpacks = true

	// One rack of nine bays: tunnel at 4, backpack at 6.
	doc, err := Export(cfg, layout.Footprint{Length: 9000, Width: 1200})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(doc.String(), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), doc)
	}
	prefixes := []string{
		"{GenericBay,256,0|BayType:Standard|",
		"{GenericBay,2,90|BayType:Tunnel|",
		"{GenericBay,5,0|BayType:Backpack|",
	}
	for i, p := range prefixes {
		if !strings.HasPrefix(lines[i], p) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], p)
		}
	}
	if lines[1] != "{GenericBay,2,90|BayType:Tunnel|(600,4550,0)}" {
		t.Errorf("tunnel line = %q", lines[1])
	}
	if lines[2] != "{GenericBay,5,0|BayType:Backpack|(600,6550,0)}" {
		t.Errorf("backpack line = %q", lines[2])
	}
}

func TestExportCustomStyleAndOffsets(t *testing.T) {
	cfg := testConfig(rack.LayoutSingle)
	cfg.Export = rack.Export{
		TagName: "Kind",
		Styles: map[rack.BayType]rack.Style{
			rack.BayStandard: {Block: "Bay2x", Color: 7, Rotation: 180, OffsetX: 10.4, OffsetY: -0.6},
		},
	}
	cfg = cfg.WithDefaults()

	doc, err := Export(cfg, layout.Footprint{Length: 1000, Width: 1200})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := doc.String(), "{Bay2x,7,180|Kind:Standard|(610,549,0)}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestExportEachBayOnce(t *testing.T) {
	cfg := testConfig(rack.LayoutDouble)
	cfg.ConsiderTunnels = true
	cfg.ConsiderBackpacks = true
	fp := layout.Footprint{Length: 40000, Width: 15000}

	bays, err := Bays(cfg, fp)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[orb.Point]bool, len(bays))
	for _, b := range bays {
		if seen[b.Center] {
			t.Fatalf("bay centre %v emitted twice", b.Center)
		}
		seen[b.Center] = true
	}

	bound := Build(cfg, bays).Bound()
	if bound.Min.X() < 0 || bound.Min.Y() < 0 || bound.Max.X() > fp.Width || bound.Max.Y() > fp.Length {
		t.Errorf("points %v escape footprint %+v", bound, fp)
	}
}

func TestExportEmptyLayout(t *testing.T) {
	cfg := testConfig(rack.LayoutSingle)
	doc, err := Export(cfg, layout.Footprint{Length: 500, Width: 500})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Count() != 0 || doc.String() != "" {
		t.Errorf("empty layout exported %q", doc.String())
	}
}

func TestExportInvalidFootprint(t *testing.T) {
	_, err := Export(testConfig(rack.LayoutSingle), layout.Footprint{Length: 0, Width: 1000})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	cfg := testConfig(rack.LayoutSingle)
	cfg.ConsiderTunnels = true
	cfg.ConsiderBackpacks = true
	doc, err := Export(cfg, layout.Footprint{Length: 20000, Width: 6000})
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := Parse(strings.NewReader(doc.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != doc.String() {
		t.Errorf("re-rendered document differs:\n%s\n%s", parsed, doc)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no braces", "GenericBay,256,0|BayType:Standard|(1,2,0)"},
		{"missing section", "{GenericBay,256,0|(1,2,0)}"},
		{"bad color", "{GenericBay,red,0|BayType:Standard|(1,2,0)}"},
		{"bad tag", "{GenericBay,256,0|Standard|(1,2,0)}"},
		{"bad point", "{GenericBay,256,0|BayType:Standard|(1,2)}"},
		{"unterminated", "{GenericBay,256,0|BayType:Standard|(1,2,0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}
