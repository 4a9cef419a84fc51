package pipeline

import (
	"fmt"

	"github.com/matzehuels/racksizer/pkg/export"
	"github.com/matzehuels/racksizer/pkg/layout"
	"github.com/matzehuels/racksizer/pkg/metrics"
	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// ExportResult is the CAD export of one footprint together with its
// storage summary.
type ExportResult struct {
	ConfigKey string          `json:"config_key"`
	Metrics   metrics.Result  `json:"metrics"`
	Document  export.Document `json:"document"`
	// Text is the document in the CAD text format.
	Text string `json:"text"`
}

// Export resolves the selected configuration and exports the footprint
// given by opts.Length and opts.Width without caching.
func Export(opts Options) (*ExportResult, error) {
	if err := opts.ValidateForExport(); err != nil {
		return nil, err
	}
	cfg, err := opts.ResolveConfig()
	if err != nil {
		return nil, err
	}
	return ExportFootprint(cfg, layout.Footprint{Length: opts.Length, Width: opts.Width}, opts.Height, opts.Levels)
}

// ExportFootprint exports fp for cfg. A levels value of zero uses the
// structural maximum.
func ExportFootprint(cfg rack.Configuration, fp layout.Footprint, height float64, levels int) (*ExportResult, error) {
	var mopts []metrics.Option
	if levels > 0 {
		mopts = append(mopts, metrics.WithLevels(levels))
	}
	m, err := metrics.Compute(fp, height, cfg, mopts...)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", cfg.Key, err)
	}
	doc, err := export.Export(cfg, fp)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", cfg.Key, err)
	}
	return &ExportResult{
		ConfigKey: cfg.Key,
		Metrics:   m,
		Document:  doc,
		Text:      doc.String(),
	}, nil
}

// ExportSolved exports the footprint of a solver result at its final level
// count.
func ExportSolved(cfg rack.Configuration, res *solver.Result) (*ExportResult, error) {
	return ExportFootprint(cfg, res.Footprint, res.Height, res.Levels)
}
