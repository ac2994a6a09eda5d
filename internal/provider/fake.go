package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
)

// Call records one invocation against a Fake.
type Call struct {
	Provider Kind
	Op       string
	Name     string
	Version  string
	Scope    string
	Force    bool
}

func (c Call) String() string {
	return fmt.Sprintf("%s:%s:%s@%s", c.Provider.Short(), c.Op, c.Name, c.Version)
}

// Fake is an in-memory Provider for tests. Uninstall removes the version
// from its inventory, Install adds it.
type Fake struct {
	mu sync.Mutex

	KindValue  Kind
	Down       bool
	Packages   []Installed
	Latest     map[string]string
	FindErr    map[string]error
	InstallErr map[string]error
	RemoveErr  map[string]error
	// OnUninstall runs after a successful uninstall, e.g. to drop the
	// version directory from a test filesystem.
	OnUninstall func(it Installed)

	Calls []Call
	// Checks counts Available calls.
	Checks int
	// Trace, when set, receives calls from several fakes in order.
	Trace *[]Call
}

// NewFake returns an available fake of the given kind.
func NewFake(kind Kind, pkgs ...Installed) *Fake {
	return &Fake{
		KindValue:  kind,
		Packages:   pkgs,
		Latest:     map[string]string{},
		FindErr:    map[string]error{},
		InstallErr: map[string]error{},
		RemoveErr:  map[string]error{},
	}
}

// MustInstalled builds an Installed, panicking on a bad version.
func MustInstalled(name, ver, location string) Installed {
	return Installed{Name: name, Version: version.Must(version.NewVersion(ver)), Location: location}
}

func (f *Fake) record(c Call) {
	c.Provider = f.KindValue
	f.Calls = append(f.Calls, c)
	if f.Trace != nil {
		*f.Trace = append(*f.Trace, c)
	}
}

// Ops returns the recorded operations filtered by op ("" for all).
func (f *Fake) Ops(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Kind implements Provider.
func (f *Fake) Kind() Kind { return f.KindValue }

// Available implements Provider.
func (f *Fake) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Checks++
	return !f.Down
}

// ListInstalled implements Provider.
func (f *Fake) ListInstalled(context.Context) ([]Installed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return nil, ErrUnavailable
	}
	f.record(Call{Op: "list"})
	return latestPerName(append([]Installed{}, f.Packages...)), nil
}

// ListVersions implements Provider.
func (f *Fake) ListVersions(_ context.Context, name string) ([]Installed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return nil, ErrUnavailable
	}
	f.record(Call{Op: "versions", Name: name})
	var out []Installed
	for _, p := range f.Packages {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	SortInstalled(out)
	return out, nil
}

// FindLatest implements Provider.
func (f *Fake) FindLatest(_ context.Context, name string, prerelease bool) (*version.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: "find", Name: name})
	if err := f.FindErr[name]; err != nil {
		return nil, err
	}
	raw, ok := f.Latest[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ParseVersion(raw)
}

// Install implements Provider.
func (f *Fake) Install(_ context.Context, name string, v *version.Version, installScope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: "install", Name: name, Version: v.Original(), Scope: installScope})
	if err := f.InstallErr[name]; err != nil {
		return err
	}
	f.Packages = append(f.Packages, Installed{Name: name, Version: v})
	return nil
}

// Uninstall implements Provider.
func (f *Fake) Uninstall(_ context.Context, name string, v *version.Version, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Op: "uninstall", Name: name, Version: v.Original(), Force: force})
	if err := f.RemoveErr[name+"@"+v.Original()]; err != nil {
		return err
	}
	kept := f.Packages[:0]
	var removed []Installed
	for _, p := range f.Packages {
		if strings.EqualFold(p.Name, name) && p.Version.Equal(v) {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	f.Packages = kept
	if len(removed) == 0 {
		return fmt.Errorf("%s %s is not installed", name, v.Original())
	}
	if f.OnUninstall != nil {
		for _, it := range removed {
			f.OnUninstall(it)
		}
	}
	return nil
}
