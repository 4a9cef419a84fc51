// Package cache provides the result cache used by the pipeline runner.
//
// Solving is deterministic: identical requests against an identical rack
// configuration always produce identical results. Results can therefore be
// stored under a key hashed from the full request and configuration record
// and served again without rescanning.
//
// # Backends
//
//   - [NullCache]: never stores anything (--no-cache, tests)
//   - [FileCache]: JSON entries on disk, used by the CLI
//   - [RedisCache]: shared cache for the HTTP server
//
// # Keys
//
// A [Keyer] builds keys. [DefaultKeyer] hashes its inputs with SHA-256;
// [ScopedKeyer] prefixes every key for namespace isolation.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/racksizer/pkg/rack"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Cache entry lifetimes.
const (
	TTLSolve   = 7 * 24 * time.Hour
	TTLCompare = 7 * 24 * time.Hour
	TTLExport  = 7 * 24 * time.Hour
)

// keyVersion is bumped whenever cached payload shapes change.
const keyVersion = "v1"

// SolveKeyOpts holds every request field that influences a solve.
type SolveKeyOpts struct {
	Storage                 int     `json:"storage"`
	Throughput              float64 `json:"throughput"`
	AspectRatio             float64 `json:"aspect_ratio"`
	Height                  float64 `json:"height"`
	ExpandForPerformance    bool    `json:"expand_for_performance"`
	ReduceLevels            bool    `json:"reduce_levels"`
	ExpandBeyondConstraints bool    `json:"expand_beyond_constraints"`
	BoundLength             float64 `json:"bound_length,omitempty"`
	BoundWidth              float64 `json:"bound_width,omitempty"`
}

// ExportKeyOpts identifies an export of a fixed footprint.
type ExportKeyOpts struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Levels int     `json:"levels,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// SolveKey keys a single-configuration solve.
	SolveKey(cfg rack.Configuration, opts SolveKeyOpts) string
	// CompareKey keys a comparison over an ordered configuration list.
	CompareKey(configs []rack.Configuration, opts SolveKeyOpts) string
	// ExportKey keys the CAD export of one footprint.
	ExportKey(cfg rack.Configuration, opts ExportKeyOpts) string
}

// DefaultKeyer hashes the full configuration record together with the
// request so that editing any configuration field invalidates the entry.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SolveKey implements Keyer.
func (DefaultKeyer) SolveKey(cfg rack.Configuration, opts SolveKeyOpts) string {
	return hashKey("solve", keyVersion, cfg, opts)
}

// CompareKey implements Keyer. Configuration order is part of the key
// because ties are ranked in catalog order.
func (DefaultKeyer) CompareKey(configs []rack.Configuration, opts SolveKeyOpts) string {
	return hashKey("compare", keyVersion, configs, opts)
}

// ExportKey implements Keyer.
func (DefaultKeyer) ExportKey(cfg rack.Configuration, opts ExportKeyOpts) string {
	return hashKey("export", keyVersion, cfg, opts)
}
