package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/output"
	"github.com/blackwell-systems/modsweep/internal/store"
)

var (
	historyFlagLimit int
	historyFlagPrune int
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past update and cleanup runs",
	Long: `Lists journaled update-apply and version-cleanup runs, newest first.
Pass a run ID (or a unique prefix of one) to see every install and removal
in that run.

Examples:
  modsweep history
  modsweep history 0f8e2a4c
  modsweep history --prune 90`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlagLimit, "limit", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().IntVar(&historyFlagPrune, "prune", 0, "delete runs older than this many days")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	st, err := e.openJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer st.Close()

	if historyFlagPrune > 0 {
		cutoff := time.Now().AddDate(0, 0, -historyFlagPrune)
		n, err := st.DeleteRunsBefore(cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d run(s) older than %d days.\n", n, historyFlagPrune)
		return nil
	}

	if len(args) == 1 {
		return showRun(st, args[0])
	}

	runs, err := st.ListRuns(historyFlagLimit)
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			fmt.Println("No runs recorded.")
			return nil
		}
		return err
	}
	fmt.Print(output.RenderRunTable(runs))

	if freed, err := st.BytesReclaimed(); err == nil && freed > 0 {
		fmt.Printf("\nTotal reclaimed by cleanups: %s\n", output.FormatSize(freed))
	}
	return nil
}

func showRun(st *store.Store, id string) error {
	run, err := st.GetRun(id)
	if err != nil {
		return err
	}
	results, err := st.GetResults(run.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %s", run.ID, run.Command)
	if run.Target != "" {
		fmt.Printf(" %s", run.Target)
	}
	if run.DryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println()
	fmt.Printf("Started %s", run.StartedAt.Local().Format(time.RFC1123))
	if run.FinishedAt != nil {
		fmt.Printf(", took %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	} else {
		fmt.Print(", did not finish")
	}
	fmt.Println()
	fmt.Println()
	fmt.Print(output.RenderResultTable(results))
	return nil
}
