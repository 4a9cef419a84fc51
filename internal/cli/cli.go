package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matzehuels/racksizer/pkg/buildinfo"
	"github.com/matzehuels/racksizer/pkg/cache"
	"github.com/matzehuels/racksizer/pkg/catalog"
	"github.com/matzehuels/racksizer/pkg/pipeline"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "racksizer"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// catalogPath is bound to the persistent --catalog flag.
	catalogPath string

	// Terminal interaction, replaceable in tests.
	isTTY   func() bool
	pick    func(*catalog.Catalog) (string, error)
	confirm func(*solver.Result) (bool, error)
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:  newLogger(w, level),
		isTTY:   stdinIsTerminal,
		pick:    pickConfig,
		confirm: confirmExpand,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Racksizer sizes unit-load warehouse racking",
		Long:         `Racksizer finds the smallest warehouse footprint that meets a storage and a throughput target for a rack configuration, compares configurations and exports bay layouts as CAD blocks.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.catalogPath, "catalog", "", "configuration catalog file (toml, yaml or json; default: built-in)")

	// Register all subcommands
	root.AddCommand(c.solveCommand())
	root.AddCommand(c.compareCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.configsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	cache, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cache, nil, c.Logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// loadCatalog loads the --catalog file, or the built-in catalog when unset.
func (c *CLI) loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.LoadOrDefault(c.catalogPath)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("catalog loaded", "source", cat.Source(), "configs", cat.Len())
	return cat, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/racksizer/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Terminal
// =============================================================================

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// =============================================================================
// Options Helpers
// =============================================================================

// bindSolveFlags registers the flags shared by solve and compare.
func bindSolveFlags(cmd *cobra.Command, opts *pipeline.Options) {
	f := cmd.Flags()
	f.IntVar(&opts.Storage, "storage", 0, "required storage locations")
	f.Float64Var(&opts.Throughput, "throughput", 0, "required throughput (units per hour)")
	f.Float64Var(&opts.AspectRatio, "aspect", pipeline.DefaultAspectRatio, "footprint length/width ratio")
	f.Float64Var(&opts.Height, "height", 0, "clear building height (mm)")
	f.BoolVar(&opts.ExpandForPerformance, "expand-performance", false, "keep growing the footprint until the density ceiling is met")
	f.BoolVar(&opts.ReduceLevels, "reduce-levels", false, "drop beam levels while storage is still met")
	f.Float64Var(&opts.BoundLength, "bound-length", 0, "warehouse length limit (mm)")
	f.Float64Var(&opts.BoundWidth, "bound-width", 0, "warehouse width limit (mm)")
	f.BoolVar(&opts.ExpandBeyondConstraints, "expand-beyond-bound", false, "continue past the warehouse limit")
	f.BoolVar(&opts.Refresh, "refresh", false, "ignore cached results")
}
