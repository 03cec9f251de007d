package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `To load completions:

Bash:
  $ source <(campus completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ campus completion bash > /etc/bash_completion.d/campus
  # macOS:
  $ campus completion bash > $(brew --prefix)/etc/bash_completion.d/campus

Zsh:
  # Enable shell completion once if it is not already on:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ campus completion zsh > "${fpath[1]}/_campus"

Fish:
  $ campus completion fish | source

  # To load completions for each session, execute once:
  $ campus completion fish > ~/.config/fish/completions/campus.fish

PowerShell:
  PS> campus completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:                  runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletionV2(out, true)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	}
	return nil
}
