// Package planner finds newer versions of installed modules and applies
// them, optionally pruning the versions they supersede.
package planner

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/inventory"
	"github.com/blackwell-systems/modsweep/internal/provider"
	"github.com/blackwell-systems/modsweep/internal/scope"
)

// UpdateCandidate is an installed module with a strictly newer version
// available from the same provider.
type UpdateCandidate struct {
	Record      inventory.PackageRecord
	Latest      *version.Version
	Provider    provider.Kind
	TargetScope string
}

// LookupFailure records a "find latest" call that failed for one module.
type LookupFailure struct {
	Record inventory.PackageRecord
	Err    error
}

// Plan is the outcome of one planning pass.
type Plan struct {
	Provider   provider.Kind
	Candidates []UpdateCandidate
	Failures   []LookupFailure
	// Checked counts records that were looked up.
	Checked int
}

// Progress is emitted once per record, after its lookup.
type Progress struct {
	Done  int
	Total int
	Name  string
}

// Percent returns the running completion percentage.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Done * 100 / p.Total
}

// Options controls planning.
type Options struct {
	IncludePrerelease bool
	Scope             scope.Scope
	Progress          func(Progress)
}

// Planner builds and executes update plans.
type Planner struct {
	providers *provider.Set
	logger    *log.Logger
}

// New creates a Planner.
func New(providers *provider.Set, logger *log.Logger) *Planner {
	return &Planner{providers: providers, logger: logger}
}

// Plan looks up the latest version of every record through prov, one at a
// time. Records are only ever compared against the provider that reported
// them. A failed lookup is recorded and warned, and planning moves on.
// The only error returned is context cancellation.
func (p *Planner) Plan(ctx context.Context, records []inventory.PackageRecord, prov provider.Provider, opts Options) (*Plan, error) {
	filter := opts.Scope
	if filter == "" {
		filter = scope.All
	}

	plan := &Plan{Provider: prov.Kind()}
	total := len(records)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return plan, err
		}

		p.consider(ctx, plan, rec, prov, filter, opts.IncludePrerelease)

		if opts.Progress != nil {
			opts.Progress(Progress{Done: i + 1, Total: total, Name: rec.Name})
		}
	}

	p.logger.Debug("plan complete", "provider", plan.Provider, "checked", plan.Checked,
		"candidates", len(plan.Candidates), "failures", len(plan.Failures))
	return plan, nil
}

func (p *Planner) consider(ctx context.Context, plan *Plan, rec inventory.PackageRecord, prov provider.Provider, filter scope.Scope, prerelease bool) {
	if rec.Provider != "" && rec.Provider != prov.Kind() {
		p.logger.Debug("skipping record from another provider", "name", rec.Name, "record", rec.Provider, "provider", prov.Kind())
		return
	}
	if !rec.Scope.Matches(filter) {
		return
	}

	plan.Checked++
	latest, err := prov.FindLatest(ctx, rec.Name, prerelease)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			p.logger.Warn("module not found in any repository", "name", rec.Name)
		} else {
			p.logger.Warn("failed to look up latest version", "name", rec.Name, "err", err)
		}
		plan.Failures = append(plan.Failures, LookupFailure{Record: rec, Err: err})
		return
	}

	if !latest.GreaterThan(rec.Version) {
		return
	}

	plan.Candidates = append(plan.Candidates, UpdateCandidate{
		Record:      rec,
		Latest:      latest,
		Provider:    prov.Kind(),
		TargetScope: rec.Scope.InstallScope(),
	})
}

// GateByPrivilege splits candidates into those the process may install and
// the System-scope ones it may not. Everything is allowed when elevated.
func GateByPrivilege(cands []UpdateCandidate, elevated bool) (allowed, dropped []UpdateCandidate) {
	if elevated {
		return cands, nil
	}
	for _, c := range cands {
		if c.Record.Scope == scope.System {
			dropped = append(dropped, c)
			continue
		}
		allowed = append(allowed, c)
	}
	return allowed, dropped
}
