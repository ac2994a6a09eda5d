package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/output"
	"github.com/blackwell-systems/modsweep/internal/reconcile"
	"github.com/blackwell-systems/modsweep/internal/store"
)

var (
	cleanupFlagName   string
	cleanupFlagKeep   int
	cleanupFlagForce  bool
	cleanupFlagDryRun bool
	cleanupFlagYes    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "version-cleanup",
	Short: "Remove all but the newest versions of one module",
	Long: `Finds every version of a module, whether it is on disk under a module path
or known to PSResourceGet or PowerShellGet, keeps the newest --keep versions
and removes the rest.

Each old version is removed by the first method that applies and succeeds:
  1. Uninstall-PSResource, if PSResourceGet tracks that version
  2. Uninstall-Module, if PowerShellGet tracks that version
  3. deleting the version directory, if it is still on disk

A failed removal is reported and the remaining versions are still processed.
Afterwards the versions are listed again so you can confirm the result.

Examples:
  # See what would be removed
  modsweep version-cleanup --name Pester --dry-run

  # Keep the two newest versions, without prompting
  modsweep version-cleanup --name Az.Accounts --keep 2 --yes`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupFlagName, "name", "", "exact module name (required)")
	cleanupCmd.Flags().IntVar(&cleanupFlagKeep, "keep", 1, "number of newest versions to keep (at least 1)")
	cleanupCmd.Flags().BoolVar(&cleanupFlagForce, "force", false, "pass -Force/-SkipDependencyCheck to provider uninstalls")
	cleanupCmd.Flags().BoolVar(&cleanupFlagDryRun, "dry-run", false, "show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupFlagYes, "yes", false, "skip confirmation prompts")
	_ = cleanupCmd.MarkFlagRequired("name")

	RootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	keep := e.cfg.Keep
	if cmd.Flags().Changed("keep") {
		keep = cleanupFlagKeep
	}

	opts := reconcile.Options{
		Keep:   keep,
		Force:  cleanupFlagForce,
		DryRun: cleanupFlagDryRun,
		OnPlan: func(l *reconcile.Ledger, toKeep, toRemove []reconcile.Entry) {
			fmt.Printf("%s: %d version(s) found, keeping %d\n\n", l.Name, l.Len(), len(toKeep))
			fmt.Print(output.RenderLedgerTable(l, keep))
			fmt.Println()
		},
	}
	if !cleanupFlagYes && !cleanupFlagDryRun {
		opts.Confirm = func(entry reconcile.Entry, path string) bool {
			where := path
			if where == "" {
				where = "provider inventory"
			}
			return confirm(fmt.Sprintf("Remove %s %s (%s)?", cleanupFlagName, entry.Version.Original(), where))
		}
	}

	r := reconcile.New(e.providers, e.finder, e.logger)
	report, err := r.Reconcile(commandContext(cmd), cleanupFlagName, opts)
	if err != nil {
		return err
	}

	if report.NothingToRemove() {
		fmt.Printf("Nothing to remove: %d version(s) installed, keeping %d.\n", report.Ledger.Len(), keep)
		return nil
	}

	fmt.Print(output.RenderRemovalTable(report.Results))
	fmt.Println()
	printCleanupSummary(report)

	if report.After != nil {
		fmt.Println()
		fmt.Println("Versions now present:")
		fmt.Print(output.RenderLedgerTable(report.After, keep))
	}

	e.journalCleanup(report)
	return nil
}

func printCleanupSummary(report *reconcile.Report) {
	counts := report.Counts()
	var freed int64
	for _, res := range report.Results {
		if res.Status == reconcile.Removed || res.Status == reconcile.WouldRemove {
			freed += res.Bytes
		}
	}

	if cleanupFlagDryRun {
		fmt.Printf("Dry run: would remove %d version path(s), freeing %s. Nothing was changed.\n",
			counts[reconcile.WouldRemove], output.FormatSize(freed))
		return
	}
	fmt.Printf("Removed %d, skipped %d, failed %d. Freed %s.\n",
		counts[reconcile.Removed], counts[reconcile.Skipped], counts[reconcile.Failed], output.FormatSize(freed))
}

// journalCleanup records a version-cleanup run. Failures only warn.
func (e *env) journalCleanup(report *reconcile.Report) {
	st, err := e.openJournal()
	if err != nil {
		e.logger.Warn("journal unavailable; run not recorded", "err", err)
		return
	}
	defer st.Close()

	run, err := st.BeginRun("version-cleanup", report.Name, "", cleanupFlagDryRun)
	if err != nil {
		e.logger.Warn("could not record run", "err", err)
		return
	}

	for _, res := range report.Results {
		err := st.InsertResult(&store.Result{
			RunID:     run.ID,
			Name:      report.Name,
			Version:   res.Version.Original(),
			Path:      res.Path,
			Action:    string(res.Method),
			Status:    string(res.Status),
			Message:   res.Message,
			SizeBytes: res.Bytes,
		})
		if err != nil {
			e.logger.Warn("could not record result", "version", res.Version.Original(), "err", err)
		}
	}

	if err := st.FinishRun(run.ID); err != nil {
		e.logger.Warn("could not finish run", "err", err)
	}
}
