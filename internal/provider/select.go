package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/pwsh"
)

// Set holds one instance of each backend.
type Set struct {
	A Provider
	B Provider
}

// NewSet builds both backends on a shared runner.
func NewSet(a, b Provider) *Set {
	return &Set{A: a, B: b}
}

// Get returns the backend for a concrete kind.
func (s *Set) Get(kind Kind) (Provider, error) {
	switch kind {
	case PSResourceGet:
		return s.A, nil
	case PowerShellGet:
		return s.B, nil
	default:
		return nil, fmt.Errorf("no backend for provider %q", kind)
	}
}

// Other returns the backend that is not kind.
func (s *Set) Other(kind Kind) Provider {
	if kind == PSResourceGet {
		return s.B
	}
	return s.A
}

// Resolve turns Auto into a concrete backend: PSResourceGet when its
// module is present on the host, PowerShellGet otherwise. Availability is
// checked on every call. available is true only when Resolve has already
// confirmed the returned backend is present; otherwise the caller must ask.
func (s *Set) Resolve(ctx context.Context, kind Kind) (p Provider, available bool, err error) {
	if kind != Auto {
		p, err = s.Get(kind)
		return p, false, err
	}
	if s.A.Available(ctx) {
		return s.A, true, nil
	}
	return s.B, false, nil
}

func moduleAvailable(ctx context.Context, r pwsh.Runner, module string) bool {
	script := pwsh.ToJSON(pwsh.Command("Get-Module", "-ListAvailable", "-Name "+pwsh.Quote(module)) + " | Select-Object -First 1 Name")

	var found []struct {
		Name string `json:"Name"`
	}
	if err := pwsh.RunJSON(ctx, r, script, &found); err != nil {
		return false
	}
	return len(found) > 0
}

// latestPerName collapses a listing to the newest version of each name.
func latestPerName(items []Installed) []Installed {
	index := make(map[string]int, len(items))
	var out []Installed
	for _, it := range items {
		key := strings.ToLower(it.Name)
		if i, ok := index[key]; ok {
			if it.Version.GreaterThan(out[i].Version) {
				out[i] = it
			}
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	SortInstalled(out)
	return out
}

func newestOf(name string, items []Installed) (*version.Version, error) {
	vs := make([]*version.Version, 0, len(items))
	for _, it := range items {
		if strings.EqualFold(it.Name, name) {
			vs = append(vs, it.Version)
		}
	}
	if v := Newest(vs); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// baseVersion strips a prerelease label; module folders on disk are
// named by the numeric part only.
func baseVersion(raw string) string {
	if i := strings.IndexByte(raw, '-'); i >= 0 {
		return raw[:i]
	}
	return raw
}
