package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/modpath"
	"github.com/blackwell-systems/modsweep/internal/provider"
)

var (
	// ErrNameRequired is returned when no exact module name is given.
	ErrNameRequired = errors.New("an exact module name is required")
	// ErrInvalidKeep is returned when keep is below 1.
	ErrInvalidKeep = errors.New("keep must be at least 1")
	// ErrPackageNotFound is returned when no version of the module exists
	// on disk or in either provider inventory.
	ErrPackageNotFound = errors.New("module not found")
)

// Method is how a version was (or would be) removed.
type Method string

const (
	MethodProviderA  Method = "ProviderA-uninstall"
	MethodProviderB  Method = "ProviderB-uninstall"
	MethodFilesystem Method = "filesystem-delete"
)

// MethodFor maps a provider kind to its uninstall method.
func MethodFor(kind provider.Kind) Method {
	if kind == provider.PSResourceGet {
		return MethodProviderA
	}
	return MethodProviderB
}

// Status is the outcome of one removal attempt.
type Status string

const (
	Removed     Status = "Removed"
	Skipped     Status = "Skipped"
	Failed      Status = "Failed"
	WouldRemove Status = "WouldRemove"
)

// RemovalResult is the outcome for one (version, path) pair.
type RemovalResult struct {
	Version *version.Version
	Path    string
	Method  Method
	Status  Status
	Message string
	// Bytes is the size of the version directory before removal, when known.
	Bytes int64
}

// Options controls a reconcile run.
type Options struct {
	Keep   int
	Force  bool
	DryRun bool
	// Confirm gates each individual removal; nil approves everything.
	Confirm func(e Entry, path string) bool
	// OnPlan, when set, sees the ledger split before anything is removed.
	OnPlan func(l *Ledger, toKeep, toRemove []Entry)
}

// Report is the full outcome of a reconcile run.
type Report struct {
	Name     string
	Ledger   *Ledger
	ToKeep   []Entry
	ToRemove []Entry
	Results  []RemovalResult
	// After is the re-queried ledger; nil for dry runs or if the re-query failed.
	After *Ledger
}

// NothingToRemove reports whether the run had no removal candidates.
func (r *Report) NothingToRemove() bool {
	return len(r.ToRemove) == 0
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Reconciler removes superseded module versions.
type Reconciler struct {
	providers *provider.Set
	finder    *modpath.Finder
	logger    *log.Logger
}

// New creates a Reconciler.
func New(providers *provider.Set, finder *modpath.Finder, logger *log.Logger) *Reconciler {
	return &Reconciler{providers: providers, finder: finder, logger: logger}
}

// Ledger builds the current ledger for name.
func (r *Reconciler) Ledger(ctx context.Context, name string) (*Ledger, error) {
	return BuildLedger(ctx, name, r.finder, r.providers, r.logger)
}

// Reconcile keeps the newest opts.Keep versions of name and removes the
// rest. Invalid input fails before anything is touched; individual removal
// failures are recorded in the report and never abort the run.
func (r *Reconciler) Reconcile(ctx context.Context, name string, opts Options) (*Report, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if strings.ContainsAny(name, "*?[") {
		return nil, fmt.Errorf("%w: %q contains wildcards", ErrNameRequired, name)
	}
	if opts.Keep < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidKeep, opts.Keep)
	}

	ledger, err := r.Ledger(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to build version ledger for %s: %w", name, err)
	}
	if ledger.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}

	report := &Report{Name: name, Ledger: ledger}
	report.ToKeep, report.ToRemove = ledger.Split(opts.Keep)
	if opts.OnPlan != nil {
		opts.OnPlan(ledger, report.ToKeep, report.ToRemove)
	}
	if report.NothingToRemove() {
		r.logger.Info("nothing to remove", "name", name, "versions", ledger.Len(), "keep", opts.Keep)
		return report, nil
	}

	// A provider that has uninstalled a version no longer tracks it, so
	// later paths of the same version fall through to the filesystem.
	untracked := map[Method]map[string]bool{
		MethodProviderA: {},
		MethodProviderB: {},
	}

	for _, entry := range report.ToRemove {
		paths := entry.Paths
		if len(paths) == 0 {
			paths = []string{""}
		}
		for _, path := range paths {
			res := r.removeOne(ctx, name, entry, path, opts, untracked)
			switch res.Status {
			case Failed:
				r.logger.Warn("removal failed", "name", name, "version", entry.Version.Original(), "path", path, "err", res.Message)
			case Removed:
				r.logger.Debug("removed", "name", name, "version", entry.Version.Original(), "path", path, "method", res.Method)
			}
			report.Results = append(report.Results, res)
		}
	}

	if !opts.DryRun {
		after, err := r.Ledger(ctx, name)
		if err != nil {
			r.logger.Warn("could not re-query versions after removal", "name", name, "err", err)
		} else {
			report.After = after
		}
	}

	return report, nil
}

type attempt struct {
	method Method
	run    func() error
}

// removeOne tries provider A, provider B, then the filesystem, stopping at
// the first success.
func (r *Reconciler) removeOne(ctx context.Context, name string, entry Entry, path string, opts Options, untracked map[Method]map[string]bool) RemovalResult {
	key := entry.Version.String()
	res := RemovalResult{Version: entry.Version, Path: path}
	exists := path != "" && r.finder.Exists(path)
	if exists {
		res.Bytes = r.finder.Size(path)
	}

	var attempts []attempt
	if entry.TrackedByA && !untracked[MethodProviderA][key] {
		attempts = append(attempts, attempt{MethodProviderA, func() error {
			return r.providers.A.Uninstall(ctx, name, entry.Version, opts.Force)
		}})
	}
	if entry.TrackedByB && !untracked[MethodProviderB][key] {
		attempts = append(attempts, attempt{MethodProviderB, func() error {
			return r.providers.B.Uninstall(ctx, name, entry.Version, opts.Force)
		}})
	}
	if exists {
		attempts = append(attempts, attempt{MethodFilesystem, func() error {
			return r.finder.Remove(path)
		}})
	}

	if len(attempts) == 0 {
		res.Method = MethodFilesystem
		res.Status = Skipped
		res.Message = "path no longer exists"
		return res
	}

	if opts.DryRun {
		res.Method = attempts[0].method
		res.Status = WouldRemove
		return res
	}

	if opts.Confirm != nil && !opts.Confirm(entry, path) {
		res.Method = attempts[0].method
		res.Status = Skipped
		res.Message = "declined"
		return res
	}

	var errs []string
	for _, a := range attempts {
		res.Method = a.method
		err := a.run()
		if err == nil {
			if a.method != MethodFilesystem {
				untracked[a.method][key] = true
			}
			res.Status = Removed
			res.Message = strings.Join(errs, "; ")
			return res
		}
		errs = append(errs, err.Error())
	}

	res.Status = Failed
	res.Message = strings.Join(errs, "; ")
	return res
}
