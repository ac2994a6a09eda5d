package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/output"
	"github.com/blackwell-systems/modsweep/internal/planner"
	"github.com/blackwell-systems/modsweep/internal/store"
)

var (
	updateFlags       planFlags
	updateFlagPreview bool
	updateFlagCleanup bool
	updateFlagForce   bool
	updateFlagYes     bool
)

var updateCmd = &cobra.Command{
	Use:   "update-apply",
	Short: "Install newer versions of installed modules",
	Long: `Plans updates exactly like update-scan, then installs each update at its
exact latest version, into the scope the module is installed in.

System-scope (AllUsers) updates need an elevated process. When not elevated
they are skipped with a warning; if that leaves nothing to do, nothing is
changed.

A failed install is reported and the remaining updates still run.

Options:
  --preview       show the plan and stop; no provider is called to change anything
  --cleanup-old   after each successful update, uninstall older versions of that
                  module, keeping only the newest
  --yes           do not ask for confirmation

Examples:
  modsweep update-apply --preview
  modsweep update-apply --scope User --cleanup-old --yes`,
	RunE: runUpdate,
}

func init() {
	addPlanFlags(updateCmd, &updateFlags)
	updateCmd.Flags().BoolVar(&updateFlagPreview, "preview", false, "show the update plan without installing anything")
	updateCmd.Flags().BoolVar(&updateFlagCleanup, "cleanup-old", false, "remove superseded versions after each successful update")
	updateCmd.Flags().BoolVar(&updateFlagForce, "force", false, "pass -Force/-SkipDependencyCheck to uninstalls during cleanup")
	updateCmd.Flags().BoolVar(&updateFlagYes, "yes", false, "skip confirmation prompt")

	RootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	out, err := e.buildPlan(ctx, cmd, &updateFlags)
	if err != nil {
		return err
	}
	printPlan(out)

	cands := out.plan.Candidates
	if len(cands) == 0 {
		return nil
	}

	if updateFlagPreview {
		fmt.Println()
		fmt.Println("Preview only: nothing was installed.")
		p := planner.New(e.providers, e.logger)
		exec := p.Execute(ctx, cands, planner.ExecOptions{Preview: true})
		e.journalUpdates(out, exec)
		return nil
	}

	p := planner.New(e.providers, e.logger)
	elevated := isElevated()
	allowed, dropped := planner.GateByPrivilege(cands, elevated)
	if len(dropped) > 0 {
		fmt.Printf("\n%d System-scope update(s) need an elevated session and will be skipped.\n", len(dropped))
	}
	if len(allowed) == 0 {
		exec := p.Execute(ctx, cands, planner.ExecOptions{Elevated: elevated})
		fmt.Println("Nothing left to apply without elevation; no changes made.")
		e.journalUpdates(out, exec)
		return nil
	}

	if !updateFlagYes {
		fmt.Println()
		prompt := fmt.Sprintf("Install %d update(s)?", len(allowed))
		if updateFlagCleanup {
			prompt = fmt.Sprintf("Install %d update(s) and remove the versions they replace?", len(allowed))
		}
		if !confirm(prompt) {
			fmt.Println("Update cancelled.")
			return nil
		}
	}

	fmt.Println()
	exec := p.Execute(ctx, cands, planner.ExecOptions{
		Elevated:   elevated,
		CleanupOld: updateFlagCleanup,
		Force:      updateFlagForce,
	})

	fmt.Print(output.RenderUpdateResults(exec.Results))
	fmt.Println()
	fmt.Println(exec.Summary())

	e.journalUpdates(out, exec)
	return nil
}

// journalUpdates records an update-apply run. Failures only warn.
func (e *env) journalUpdates(out *planOutcome, exec *planner.Execution) {
	st, err := e.openJournal()
	if err != nil {
		e.logger.Warn("journal unavailable; run not recorded", "err", err)
		return
	}
	defer st.Close()

	target := strings.Join(updateFlags.names, ",")
	run, err := st.BeginRun("update-apply", target, string(out.provider), exec.Preview)
	if err != nil {
		e.logger.Warn("could not record run", "err", err)
		return
	}

	record := func(res *store.Result) {
		res.RunID = run.ID
		if err := st.InsertResult(res); err != nil {
			e.logger.Warn("could not record result", "name", res.Name, "err", err)
		}
	}

	for _, r := range exec.Results {
		c := r.Candidate
		record(&store.Result{
			Name:    c.Record.Name,
			Version: c.Latest.Original(),
			Path:    c.Record.Location,
			Action:  "install",
			Status:  string(r.Status),
			Message: r.Message,
		})
		for _, rm := range r.Cleanup {
			record(&store.Result{
				Name:    c.Record.Name,
				Version: rm.Version.Original(),
				Path:    rm.Path,
				Action:  string(rm.Method),
				Status:  string(rm.Status),
				Message: rm.Message,
			})
		}
	}
	for _, c := range exec.Dropped {
		record(&store.Result{
			Name:    c.Record.Name,
			Version: c.Latest.Original(),
			Path:    c.Record.Location,
			Action:  "install",
			Status:  "Skipped",
			Message: "requires elevation",
		})
	}

	if err := st.FinishRun(run.ID); err != nil {
		e.logger.Warn("could not finish run", "err", err)
	}
}
