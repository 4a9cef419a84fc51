// Package catalog holds the table of rack configurations available to the
// solver and comparator.
//
// A catalog is an ordered list of [rack.Configuration] records keyed by
// configuration key. Order matters: the comparator ranks equal footprints in
// catalog order. Every record is completed with defaults and validated once
// when the catalog is built; a catalog never holds an invalid record.
//
// Catalog files may be TOML, YAML or JSON, chosen by file extension. All three
// share one shape, a top-level "configurations" list:
//
//	[[configurations]]
//	key = "sd-single"
//	name = "Single deep, single racks"
//	tote_width = 400
//	...
//
// [Default] returns the catalog compiled into the binary.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/rack"
)

//go:embed default.toml
var defaultTOML []byte

// Format is a catalog file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor infers a format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat,
		"unsupported catalog extension %q (must be .toml, .yaml, .yml or .json)", filepath.Ext(path))
}

// file is the on-disk shape of a catalog.
type file struct {
	Configurations []rack.Configuration `toml:"configurations" yaml:"configurations" json:"configurations"`
}

// Catalog is an immutable, ordered set of validated configurations.
type Catalog struct {
	configs []rack.Configuration
	index   map[string]int
	source  string
}

// New builds a catalog from configs in the given order. Defaults are
// applied to each record before validation. Duplicate keys are rejected.
func New(configs ...rack.Configuration) (*Catalog, error) {
	c := &Catalog{
		configs: make([]rack.Configuration, 0, len(configs)),
		index:   make(map[string]int, len(configs)),
	}
	for i, cfg := range configs {
		cfg = cfg.WithDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "entry %d", i)
		}
		if _, dup := c.index[cfg.Key]; dup {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "duplicate configuration key %q", cfg.Key)
		}
		c.index[cfg.Key] = len(c.configs)
		c.configs = append(c.configs, cfg)
	}
	return c, nil
}

// Parse decodes a catalog document.
func Parse(data []byte, format Format) (*Catalog, error) {
	var f file
	var err error
	switch format {
	case FormatTOML:
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown catalog format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s catalog", format)
	}
	return New(f.Configurations...)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "catalog file not found: %s", path)
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	c.source = path
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It panics if the embedded document
// is invalid, which the package tests rule out.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultTOML, FormatTOML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded default: %v", err))
		}
		c.source = "builtin"
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadOrDefault loads path, or returns [Default] when path is empty.
func LoadOrDefault(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Source is the file the catalog was loaded from, "builtin" for the
// embedded catalog and empty for catalogs built with [New].
func (c *Catalog) Source() string { return c.source }

// Len returns the number of configurations.
func (c *Catalog) Len() int { return len(c.configs) }

// Keys returns configuration keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.configs))
	for i, cfg := range c.configs {
		keys[i] = cfg.Key
	}
	return keys
}

// All returns copies of every configuration in catalog order.
func (c *Catalog) All() []rack.Configuration {
	out := make([]rack.Configuration, len(c.configs))
	for i, cfg := range c.configs {
		out[i] = cfg.Clone()
	}
	return out
}

// Get returns a copy of the configuration with the given key.
func (c *Catalog) Get(key string) (rack.Configuration, error) {
	if key == "" {
		return rack.Configuration{}, errors.New(errors.ErrCodeNoConfigurationSelected, "no configuration selected")
	}
	i, ok := c.index[key]
	if !ok {
		return rack.Configuration{}, errors.New(errors.ErrCodeUnknownConfiguration,
			"unknown configuration %q (available: %s)", key, strings.Join(c.Keys(), ", "))
	}
	return c.configs[i].Clone(), nil
}

// Select returns the configurations named by keys, in catalog order. An
// empty keys list selects everything.
func (c *Catalog) Select(keys []string) ([]rack.Configuration, error) {
	if len(keys) == 0 {
		return c.All(), nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := c.index[k]; !ok {
			return nil, errors.New(errors.ErrCodeUnknownConfiguration, "unknown configuration %q", k)
		}
		want[k] = true
	}
	out := make([]rack.Configuration, 0, len(want))
	for _, cfg := range c.configs {
		if want[cfg.Key] {
			out = append(out, cfg.Clone())
		}
	}
	return out, nil
}
