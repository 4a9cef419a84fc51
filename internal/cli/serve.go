package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/racksizer/internal/server"
)

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var envFile, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sizing HTTP API",
		Long: `Serve the sizing HTTP API.

Configuration is read from RACKSIZER_* environment variables, after loading
the --env-file when it exists. The --catalog flag overrides RACKSIZER_CATALOG
and a catalog file is reloaded when it changes.`,
		Example: `  racksizer serve
  racksizer serve --addr :9000 --catalog racks.toml
  RACKSIZER_CACHE=redis racksizer serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if c.catalogPath != "" {
				cfg.CatalogPath = c.catalogPath
			}
			logger := cfg.NewLogger()
			if c.Logger.GetLevel() < logger.GetLevel() {
				logger.SetLevel(c.Logger.GetLevel())
			}
			return server.Run(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "environment file loaded before reading RACKSIZER_* variables")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides RACKSIZER_ADDR)")

	return cmd
}
