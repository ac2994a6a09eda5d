package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/provider"
	"github.com/blackwell-systems/modsweep/internal/reconcile"
)

// UpdateStatus is the outcome of one candidate in an execution.
type UpdateStatus string

const (
	Updated   UpdateStatus = "Updated"
	Failed    UpdateStatus = "Failed"
	Previewed UpdateStatus = "Previewed"
	Declined  UpdateStatus = "Declined"
)

// UpdateResult is the outcome for one candidate.
type UpdateResult struct {
	Candidate UpdateCandidate
	Status    UpdateStatus
	Message   string
	// Cleanup holds the post-update removals, when requested.
	Cleanup []reconcile.RemovalResult
}

// ExecOptions controls execution.
type ExecOptions struct {
	// Elevated is whether the process may write to machine-wide locations.
	Elevated   bool
	Preview    bool
	CleanupOld bool
	Force      bool
	// Confirm gates each install; nil approves everything.
	Confirm func(UpdateCandidate) bool
}

// Execution is the outcome of applying a plan.
type Execution struct {
	Preview bool
	Results []UpdateResult
	// Dropped are System-scope candidates skipped for lack of privilege.
	Dropped []UpdateCandidate
}

// Executed returns the candidates that were actually installed.
func (e *Execution) Executed() []UpdateResult {
	var out []UpdateResult
	for _, r := range e.Results {
		if r.Status == Updated {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of results with status s.
func (e *Execution) Count(s UpdateStatus) int {
	n := 0
	for _, r := range e.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Execute applies cands. In preview mode no provider is called at all.
// Otherwise System-scope candidates are dropped unless opts.Elevated, and
// each remaining candidate is installed at its exact latest version. A
// failure is recorded on that candidate and the batch continues.
func (p *Planner) Execute(ctx context.Context, cands []UpdateCandidate, opts ExecOptions) *Execution {
	exec := &Execution{Preview: opts.Preview}

	if opts.Preview {
		for _, c := range cands {
			exec.Results = append(exec.Results, UpdateResult{Candidate: c, Status: Previewed})
		}
		return exec
	}

	allowed, dropped := GateByPrivilege(cands, opts.Elevated)
	exec.Dropped = dropped
	for _, c := range dropped {
		p.logger.Warn("skipping System-scope update: not running elevated", "name", c.Record.Name, "version", c.Latest.Original())
	}
	if len(allowed) == 0 {
		if len(dropped) > 0 {
			p.logger.Warn("no updates left to apply without elevation; nothing changed")
		}
		return exec
	}

	for _, c := range allowed {
		if ctx.Err() != nil {
			exec.Results = append(exec.Results, UpdateResult{Candidate: c, Status: Failed, Message: ctx.Err().Error()})
			continue
		}
		exec.Results = append(exec.Results, p.apply(ctx, c, opts))
	}
	return exec
}

func (p *Planner) apply(ctx context.Context, c UpdateCandidate, opts ExecOptions) UpdateResult {
	res := UpdateResult{Candidate: c}

	if opts.Confirm != nil && !opts.Confirm(c) {
		res.Status = Declined
		return res
	}

	prov, err := p.providers.Get(c.Provider)
	if err != nil {
		res.Status = Failed
		res.Message = err.Error()
		return res
	}

	name := c.Record.Name
	if err := prov.Install(ctx, name, c.Latest, c.TargetScope); err != nil {
		p.logger.Warn("update failed", "name", name, "version", c.Latest.Original(), "err", err)
		res.Status = Failed
		res.Message = err.Error()
		return res
	}
	res.Status = Updated
	p.logger.Info("updated", "name", name, "from", c.Record.Version.Original(), "to", c.Latest.Original(), "scope", c.TargetScope)

	if opts.CleanupOld {
		res.Cleanup = p.cleanup(ctx, prov, name, opts.Force)
	}
	return res
}

// cleanup keeps only the newest version of name as reported by prov and
// uninstalls the rest, falling back to the other provider per version. A
// version listed at several paths is uninstalled once and reported once
// per path.
func (p *Planner) cleanup(ctx context.Context, prov provider.Provider, name string, force bool) []reconcile.RemovalResult {
	items, err := prov.ListVersions(ctx, name)
	if err != nil {
		p.logger.Warn("could not list versions for cleanup", "name", name, "err", err)
		return nil
	}
	groups := groupByVersion(items)
	if len(groups) < 2 {
		return nil
	}

	var results []reconcile.RemovalResult
	for _, g := range groups[:len(groups)-1] {
		v := g[0].Version
		method, status, msg := p.uninstallVersion(ctx, prov, name, v, force)
		for _, it := range g {
			results = append(results, reconcile.RemovalResult{
				Version: it.Version,
				Path:    it.Location,
				Method:  method,
				Status:  status,
				Message: msg,
			})
		}
	}
	return results
}

// uninstallVersion removes one version through prov, then the other
// provider if prov fails.
func (p *Planner) uninstallVersion(ctx context.Context, prov provider.Provider, name string, v *version.Version, force bool) (reconcile.Method, reconcile.Status, string) {
	firstErr := prov.Uninstall(ctx, name, v, force)
	if firstErr == nil {
		return reconcile.MethodFor(prov.Kind()), reconcile.Removed, ""
	}

	method := reconcile.MethodFor(prov.Kind())
	msgs := []string{firstErr.Error()}
	if other := p.providers.Other(prov.Kind()); other != nil {
		method = reconcile.MethodFor(other.Kind())
		err := other.Uninstall(ctx, name, v, force)
		if err == nil {
			return method, reconcile.Removed, firstErr.Error()
		}
		msgs = append(msgs, err.Error())
	}

	msg := strings.Join(msgs, "; ")
	p.logger.Warn("could not remove old version", "name", name, "version", v.Original(), "err", msg)
	return method, reconcile.Failed, msg
}

// groupByVersion sorts items and collects the entries of each distinct
// version, ascending.
func groupByVersion(items []provider.Installed) [][]provider.Installed {
	provider.SortInstalled(items)
	var groups [][]provider.Installed
	for _, it := range items {
		if n := len(groups); n > 0 && groups[n-1][0].Version.Equal(it.Version) {
			groups[n-1] = append(groups[n-1], it)
			continue
		}
		groups = append(groups, []provider.Installed{it})
	}
	return groups
}

// Summary returns a one-line description of an execution.
func (e *Execution) Summary() string {
	if e.Preview {
		return fmt.Sprintf("%d update(s) available (preview, nothing changed)", len(e.Results))
	}
	return fmt.Sprintf("%d updated, %d failed, %d declined, %d skipped (not elevated)",
		e.Count(Updated), e.Count(Failed), e.Count(Declined), len(e.Dropped))
}
