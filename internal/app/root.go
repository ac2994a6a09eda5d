package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
	pwshPath   string
	verbose    bool

	// RootCmd is the root command for modsweep
	RootCmd = &cobra.Command{
		Use:   "modsweep",
		Short: "Keep PowerShell modules current and prune superseded versions",
		Long: `modsweep finds newer versions of installed PowerShell modules, applies
them with scope and elevation awareness, and removes old versions that
pile up under the module paths.

It drives PSResourceGet (provider A) or PowerShellGet (provider B) through
pwsh. With --provider Auto, PSResourceGet is used when it is installed.

Examples:
  # See which modules have updates
  modsweep update-scan

  # Preview, then apply, updates for the Az modules
  modsweep update-apply --name 'Az.*' --preview
  modsweep update-apply --name 'Az.*' --cleanup-old

  # Keep the two newest versions of Pester
  modsweep version-cleanup --name Pester --keep 2 --dry-run

  # Review what previous runs changed
  modsweep history`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("modsweep: PowerShell module updates and version cleanup")
			fmt.Println()
			fmt.Println("Run 'modsweep doctor' to check your environment.")
			fmt.Println("Run 'modsweep update-scan' to look for updates.")
			fmt.Println("Run 'modsweep --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/modsweep/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "journal database path (default: ~/.modsweep/modsweep.db)")
	RootCmd.PersistentFlags().StringVar(&pwshPath, "pwsh", "", "PowerShell 7 executable (default: pwsh)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log provider calls and other debug detail")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. An interrupt cancels the in-flight pwsh
// call; results gathered so far are still reported and journaled.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

// commandContext returns cmd's context, or Background when the command is
// run directly (as tests do).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
