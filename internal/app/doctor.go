package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/output"
	"github.com/blackwell-systems/modsweep/internal/provider"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues with pwsh, providers and module paths",
	Long: `Runs diagnostic checks on the environment modsweep depends on.

Checks:
  • pwsh is on PATH (or at --pwsh)
  • PSResourceGet and PowerShellGet can be loaded
  • which provider --provider Auto resolves to
  • whether this session is elevated
  • module paths exist
  • the journal database can be opened

Exits 1 when a critical check fails and 2 when there are only warnings.`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running modsweep diagnostics...")
	fmt.Println()

	// Critical issues return an error (exit 1); warnings alone exit 2.
	criticalIssues := 0
	warningIssues := 0

	e, err := loadEnv()
	if err != nil {
		fmt.Println("✗ Configuration error:", err)
		fmt.Println("Found 1 critical issue.")
		return fmt.Errorf("diagnostics failed")
	}
	if e.cfg.File != "" {
		fmt.Println("✓ Config loaded:", e.cfg.File)
	} else {
		fmt.Println("✓ Using default configuration")
	}

	// Check 1: pwsh
	if !e.shell.Available() {
		fmt.Println("✗ pwsh not found:", e.shell.Executable)
		fmt.Println("  Action: Install PowerShell 7 or pass --pwsh with its path")
		criticalIssues++
	} else {
		fmt.Println("✓ pwsh found:", e.shell.Executable)

		// Checks 2-3: providers
		ctx := commandContext(cmd)
		spinner := output.NewSpinner("Loading " + string(provider.PSResourceGet))
		spinner.Start()
		aOK := e.providers.A.Available(ctx)
		spinner.UpdateMessage("Loading " + string(provider.PowerShellGet))
		bOK := e.providers.B.Available(ctx)
		spinner.Stop()

		for _, check := range []struct {
			kind   provider.Kind
			ok     bool
			module string
		}{
			{provider.PSResourceGet, aOK, provider.PSResourceGetModule},
			{provider.PowerShellGet, bOK, provider.PowerShellGetModule},
		} {
			if check.ok {
				fmt.Printf("✓ Provider %s (%s) available\n", check.kind.Short(), check.kind)
			} else {
				fmt.Printf("⚠ Provider %s (%s) not available\n", check.kind.Short(), check.kind)
				fmt.Printf("  Action: Install-Module %s\n", check.module)
				warningIssues++
			}
		}

		switch {
		case !aOK && !bOK:
			fmt.Println("✗ No package provider available; scans will find nothing")
			criticalIssues++
		case aOK:
			fmt.Println("✓ --provider Auto resolves to PSResourceGet")
		default:
			fmt.Println("✓ --provider Auto resolves to PowerShellGet")
		}
	}

	// Check 4: elevation (informational)
	if isElevated() {
		fmt.Println("✓ Running elevated: System-scope updates are allowed")
	} else {
		fmt.Println("• Not elevated: System-scope updates will be skipped")
	}

	// Check 5: module paths
	roots := e.finder.Roots()
	var present []string
	for _, r := range roots {
		if e.finder.Exists(r) {
			present = append(present, r)
		}
	}
	switch {
	case len(roots) == 0:
		fmt.Println("⚠ No module paths configured ($PSModulePath is empty)")
		fmt.Println("  Action: Set module_paths in config.yaml or run from a pwsh session")
		warningIssues++
	case len(present) == 0:
		fmt.Printf("⚠ None of the %d module path(s) exist\n", len(roots))
		warningIssues++
	default:
		fmt.Printf("✓ %d of %d module path(s) present\n", len(present), len(roots))
		if verbose {
			fmt.Println("  " + strings.Join(present, "\n  "))
		}
	}

	// Check 6: journal
	if st, err := e.openJournal(); err != nil {
		fmt.Println("⚠ Journal unavailable:", err)
		fmt.Println("  Runs will not be recorded; check --db or the db setting")
		warningIssues++
	} else {
		runs, _ := st.ListRuns(0)
		st.Close()
		fmt.Printf("✓ Journal ready: %s (%d run(s))\n", e.cfg.DB, len(runs))
	}

	fmt.Println()
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Println("✓ All checks passed!")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Printf("Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	// Warning-only path exits 2 directly so main does not print an error.
	fmt.Printf("Found %d warning(s). modsweep will work with reduced functionality.\n", warningIssues)
	exitFunc(2)
	return nil
}
