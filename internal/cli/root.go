// Package cli provides the command-line interface for ctesplit.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/ctesplit/internal/cli/commands"
	"github.com/leapstack-labs/ctesplit/internal/cli/config"
	intconfig "github.com/leapstack-labs/ctesplit/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ctesplit",
		Short: "ctesplit - split SQL into sub-queries and compose it back",
		Long: `ctesplit splits a SQL statement into a main query and one standalone
sub-query per CTE, lets you edit the sub-queries independently, and
composes them back into a single statement with a WITH clause ordered
so that every sub-query follows its dependencies.

Sub-queries live in a workspace (private) or in a shared library
directory available to every workspace.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			logger.Debug("configuration loaded",
				"state", cfg.StatePath,
				"library", cfg.LibraryDir,
				"workspace", cfg.Workspace,
				"dialect", cfg.Dialect)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ctesplit.yaml)")
	rootCmd.PersistentFlags().String("state", "", "Path to state database")
	rootCmd.PersistentFlags().String("library", "", "Path to shared library directory")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace to operate on")
	rootCmd.PersistentFlags().String("dialect", "", "SQL dialect for quoting and validation")
	rootCmd.PersistentFlags().Int("max-depth", 0, "Maximum nesting and dependency depth")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	// Register completion for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return intconfig.Dialects, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewDecomposeCommand())
	rootCmd.AddCommand(commands.NewComposeCommand())
	rootCmd.AddCommand(commands.NewResolveCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(commands.NewDependentsCommand())
	rootCmd.AddCommand(commands.NewEntityCommand())
	rootCmd.AddCommand(commands.NewWorkspaceCommand())
	rootCmd.AddCommand(commands.NewLibraryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ctesplit.

To load completions:

Bash:
  $ source <(ctesplit completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ ctesplit completion bash > /etc/bash_completion.d/ctesplit
  # macOS:
  $ ctesplit completion bash > $(brew --prefix)/etc/bash_completion.d/ctesplit

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ ctesplit completion zsh > "${fpath[1]}/_ctesplit"

Fish:
  $ ctesplit completion fish | source

  # To load completions for each session, execute once:
  $ ctesplit completion fish > ~/.config/fish/completions/ctesplit.fish

PowerShell:
  PS> ctesplit completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
