package cache

import "github.com/matzehuels/racksizer/pkg/rack"

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation, so that
// several deployments can share one Redis instance.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "racksizer:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SolveKey generates a prefixed key for a solve.
func (k *ScopedKeyer) SolveKey(cfg rack.Configuration, opts SolveKeyOpts) string {
	return k.prefix + k.inner.SolveKey(cfg, opts)
}

// CompareKey generates a prefixed key for a comparison.
func (k *ScopedKeyer) CompareKey(configs []rack.Configuration, opts SolveKeyOpts) string {
	return k.prefix + k.inner.CompareKey(configs, opts)
}

// ExportKey generates a prefixed key for an export.
func (k *ScopedKeyer) ExportKey(cfg rack.Configuration, opts ExportKeyOpts) string {
	return k.prefix + k.inner.ExportKey(cfg, opts)
}
