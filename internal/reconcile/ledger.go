// Package reconcile prunes superseded versions of one module, keeping the
// newest N and removing the rest through the providers or the filesystem.
package reconcile

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/modpath"
	"github.com/blackwell-systems/modsweep/internal/provider"
)

// Entry is one distinct version of a module and where it lives.
type Entry struct {
	Version    *version.Version
	Paths      []string
	TrackedByA bool
	TrackedByB bool
}

// Ledger is every known version of one module, ascending.
type Ledger struct {
	Name    string
	Entries []Entry
}

// Len returns the number of distinct versions.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// Split returns the newest keep entries and everything older. keep at or
// above the ledger size leaves nothing to remove.
func (l *Ledger) Split(keep int) (toKeep, toRemove []Entry) {
	n := len(l.Entries)
	if keep >= n {
		return l.Entries, nil
	}
	cut := n - keep
	return l.Entries[cut:], l.Entries[:cut]
}

// Versions returns the version strings in ledger order.
func (l *Ledger) Versions() []string {
	out := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Version.Original())
	}
	return out
}

// ledgerBuilder merges disk and provider views keyed by normalized version.
type ledgerBuilder struct {
	name    string
	entries map[string]*Entry
}

func newLedgerBuilder(name string) *ledgerBuilder {
	return &ledgerBuilder{name: name, entries: make(map[string]*Entry)}
}

func (b *ledgerBuilder) entry(v *version.Version) *Entry {
	key := v.String()
	e, ok := b.entries[key]
	if !ok {
		e = &Entry{Version: v}
		b.entries[key] = e
	}
	return e
}

func (b *ledgerBuilder) addPath(e *Entry, path string) {
	if path == "" {
		return
	}
	path = filepath.Clean(path)
	for _, p := range e.Paths {
		if strings.EqualFold(p, path) {
			return
		}
	}
	e.Paths = append(e.Paths, path)
}

func (b *ledgerBuilder) build() *Ledger {
	// Prerelease folders are named by the numeric version only, so a disk
	// entry can shadow a tracked prerelease living at the same path.
	claimed := make(map[string]bool)
	for _, e := range b.entries {
		if e.TrackedByA || e.TrackedByB {
			for _, p := range e.Paths {
				claimed[strings.ToLower(p)] = true
			}
		}
	}

	l := &Ledger{Name: b.name}
	for _, e := range b.entries {
		if !e.TrackedByA && !e.TrackedByB && len(e.Paths) > 0 && allClaimed(e.Paths, claimed) {
			continue
		}
		sort.Strings(e.Paths)
		l.Entries = append(l.Entries, *e)
	}
	sort.Slice(l.Entries, func(i, j int) bool {
		return l.Entries[i].Version.LessThan(l.Entries[j].Version)
	})
	return l
}

// BuildLedger unions the on-disk versions of name with each provider's
// own inventory. A provider that is unavailable or fails to answer tracks
// nothing.
func BuildLedger(ctx context.Context, name string, finder *modpath.Finder, providers *provider.Set, logger *log.Logger) (*Ledger, error) {
	b := newLedgerBuilder(name)

	found, err := finder.Versions(name)
	if err != nil {
		return nil, err
	}
	for _, f := range found {
		b.addPath(b.entry(f.Version), f.Path)
	}

	track := func(p provider.Provider, mark func(*Entry)) {
		if p == nil || !p.Available(ctx) {
			logger.Debug("provider inventory unavailable; treating as tracking nothing", "name", name)
			return
		}
		items, err := p.ListVersions(ctx, name)
		if err != nil {
			logger.Debug("provider inventory failed; treating as tracking nothing", "provider", p.Kind(), "name", name, "err", err)
			return
		}
		for _, it := range items {
			if !strings.EqualFold(it.Name, name) {
				continue
			}
			e := b.entry(it.Version)
			mark(e)
			b.addPath(e, it.Location)
		}
	}
	track(providers.A, func(e *Entry) { e.TrackedByA = true })
	track(providers.B, func(e *Entry) { e.TrackedByB = true })

	return b.build(), nil
}

func allClaimed(paths []string, claimed map[string]bool) bool {
	for _, p := range paths {
		if !claimed[strings.ToLower(p)] {
			return false
		}
	}
	return true
}
