package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/inventory"
	"github.com/blackwell-systems/modsweep/internal/output"
	"github.com/blackwell-systems/modsweep/internal/planner"
	"github.com/blackwell-systems/modsweep/internal/provider"
	"github.com/blackwell-systems/modsweep/internal/scope"
)

// planFlags are shared by update-scan and update-apply.
type planFlags struct {
	scope      string
	provider   string
	prerelease bool
	names      []string
}

func addPlanFlags(cmd *cobra.Command, f *planFlags) {
	cmd.Flags().StringVar(&f.scope, "scope", "All", "only consider modules in this scope: User, System, All, Unknown")
	cmd.Flags().StringVar(&f.provider, "provider", "Auto", "package provider: Auto, A (PSResourceGet), B (PowerShellGet)")
	cmd.Flags().BoolVar(&f.prerelease, "include-prerelease", false, "consider prerelease versions when looking for updates")
	cmd.Flags().StringSliceVar(&f.names, "name", nil, "only consider modules matching these wildcard patterns")
}

// planOutcome carries what a planning pass saw, for display and journaling.
type planOutcome struct {
	provider provider.Kind
	filter   scope.Scope
	records  []inventory.PackageRecord
	plan     *planner.Plan
}

// buildPlan lists installed modules and looks up their latest versions.
// An unavailable provider yields an empty plan, never an error.
func (e *env) buildPlan(ctx context.Context, cmd *cobra.Command, f *planFlags) (*planOutcome, error) {
	kind, err := e.providerFlag(cmd, f.provider)
	if err != nil {
		return nil, err
	}
	filter, err := e.scopeFlag(cmd, f.scope)
	if err != nil {
		return nil, err
	}

	resolver := inventory.New(e.providers, e.classifier, e.logger)
	spinner := output.NewSpinner("Listing installed modules")
	spinner.Start()
	res, err := resolver.ListInstalled(ctx, kind, f.names)
	if err != nil {
		spinner.Stop()
		return nil, err
	}
	spinner.StopWithMessage(fmt.Sprintf("Found %d installed module(s) via %s", len(res.Records), res.Provider.Kind()))

	out := &planOutcome{
		provider: res.Provider.Kind(),
		filter:   filter,
		records:  inventory.FilterScope(res.Records, filter),
	}
	if len(out.records) == 0 {
		out.plan = &planner.Plan{Provider: out.provider}
		return out, nil
	}

	progress := output.NewProgress(len(out.records), "Checking for updates")
	p := planner.New(e.providers, e.logger)
	out.plan, err = p.Plan(ctx, out.records, res.Provider, planner.Options{
		IncludePrerelease: f.prerelease,
		Scope:             filter,
		Progress: func(pr planner.Progress) {
			progress.Step(pr.Name)
		},
	})
	progress.Finish()
	if err != nil {
		return nil, fmt.Errorf("update check interrupted: %w", err)
	}
	return out, nil
}

// printPlan shows the candidates and any lookup failures.
func printPlan(out *planOutcome) {
	if len(out.records) == 0 {
		fmt.Printf("No installed modules found via %s", out.provider)
		if out.filter != scope.All {
			fmt.Printf(" in scope %s", out.filter)
		}
		fmt.Println(".")
		return
	}

	fmt.Printf("Checked %d module(s) via %s.\n\n", out.plan.Checked, out.provider)
	fmt.Print(output.RenderCandidateTable(out.plan.Candidates))
	if failures := output.RenderLookupFailures(out.plan.Failures); failures != "" {
		fmt.Println()
		fmt.Print(failures)
	}
}
