package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/inventory"
	"github.com/blackwell-systems/modsweep/internal/output"
)

var (
	inventoryFlagScope    string
	inventoryFlagProvider string
	inventoryFlagNames    []string
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List installed modules with their scope and provider",
	Long: `Lists the newest installed version of every module known to the selected
provider, with the scope inferred from its install path.

Scope is a heuristic: paths under Program Files, ProgramData or the shared
PowerShell directories are System, paths under a home directory are User,
anything else is Unknown. Add markers in config.yaml (system_markers,
user_markers) to teach it about other locations.`,
	RunE: runInventory,
}

func init() {
	inventoryCmd.Flags().StringVar(&inventoryFlagScope, "scope", "All", "only show modules in this scope: User, System, All, Unknown")
	inventoryCmd.Flags().StringVar(&inventoryFlagProvider, "provider", "Auto", "package provider: Auto, A (PSResourceGet), B (PowerShellGet)")
	inventoryCmd.Flags().StringSliceVar(&inventoryFlagNames, "name", nil, "only show modules matching these wildcard patterns")

	RootCmd.AddCommand(inventoryCmd)
}

func runInventory(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	kind, err := e.providerFlag(cmd, inventoryFlagProvider)
	if err != nil {
		return err
	}
	filter, err := e.scopeFlag(cmd, inventoryFlagScope)
	if err != nil {
		return err
	}

	resolver := inventory.New(e.providers, e.classifier, e.logger)
	res, err := resolver.ListInstalled(commandContext(cmd), kind, inventoryFlagNames)
	if err != nil {
		return err
	}

	records := inventory.FilterScope(res.Records, filter)
	fmt.Print(output.RenderInventoryTable(records))
	if len(records) > 0 {
		fmt.Printf("\n%d module(s) via %s\n", len(records), res.Provider.Kind())
	}
	return nil
}
