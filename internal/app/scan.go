package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanFlags planFlags

var scanCmd = &cobra.Command{
	Use:   "update-scan",
	Short: "List installed modules that have a newer version available",
	Long: `Lists installed modules and looks up the latest published version of each
through the same provider that installed it. Nothing is changed.

Lookups run one module at a time. A module whose lookup fails is reported
and skipped; the rest of the scan continues.

Examples:
  # Everything, using PSResourceGet when available
  modsweep update-scan

  # Only per-user Az modules, including prereleases, via PowerShellGet
  modsweep update-scan --scope User --name 'Az.*' --include-prerelease --provider B`,
	RunE: runScan,
}

func init() {
	addPlanFlags(scanCmd, &scanFlags)
	RootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	out, err := e.buildPlan(commandContext(cmd), cmd, &scanFlags)
	if err != nil {
		return err
	}

	printPlan(out)
	if n := len(out.plan.Candidates); n > 0 {
		fmt.Printf("\n%d update(s) available. Run 'modsweep update-apply' to install them.\n", n)
	}
	return nil
}
