package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for racksizer.

To load completions:

Bash:
  $ source <(racksizer completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ racksizer completion bash > /etc/bash_completion.d/racksizer
  # macOS:
  $ racksizer completion bash > $(brew --prefix)/etc/bash_completion.d/racksizer

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ racksizer completion zsh > "${fpath[1]}/_racksizer"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ racksizer completion fish | source

  # To load completions for each session, execute once:
  $ racksizer completion fish > ~/.config/fish/completions/racksizer.fish

PowerShell:
  PS> racksizer completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> racksizer completion powershell > racksizer.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}

	return cmd
}

// completeConfigKeys completes --config from the catalog selected by
// --catalog, with configuration names as descriptions.
func (c *CLI) completeConfigKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cat, err := c.loadCatalog()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, cfg := range cat.All() {
		if strings.HasPrefix(cfg.Key, toComplete) {
			out = append(out, cfg.Key+"\t"+cfg.DisplayName())
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
