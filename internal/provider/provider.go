// Package provider normalizes the two PowerShell package providers,
// PSResourceGet and PowerShellGet, behind one interface.
package provider

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
)

// Kind identifies a provider backend.
type Kind string

const (
	// Auto picks PSResourceGet when present, PowerShellGet otherwise.
	Auto Kind = "Auto"
	// PSResourceGet is provider A.
	PSResourceGet Kind = "PSResourceGet"
	// PowerShellGet is provider B.
	PowerShellGet Kind = "PowerShellGet"
)

// ErrUnavailable marks a backend that is not installed or cannot be queried.
var ErrUnavailable = errors.New("provider unavailable")

// ErrNotFound is returned by FindLatest when the repository has no match.
var ErrNotFound = errors.New("package not found in repository")

// ErrInvalidProvider is returned by ParseKind for an unrecognized provider.
var ErrInvalidProvider = errors.New("invalid provider")

// ParseKind accepts Auto, A, B or the full provider names.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "a", "psresourceget", "microsoft.powershell.psresourceget":
		return PSResourceGet, nil
	case "b", "powershellget":
		return PowerShellGet, nil
	default:
		return "", fmt.Errorf("%w %q: must be one of: Auto, A, B", ErrInvalidProvider, s)
	}
}

// Short returns the single-letter label used in tables.
func (k Kind) Short() string {
	switch k {
	case PSResourceGet:
		return "A"
	case PowerShellGet:
		return "B"
	default:
		return string(k)
	}
}

// Installed is one installed version as reported by a provider.
type Installed struct {
	Name     string
	Version  *version.Version
	Location string
}

// Provider is the capability set shared by both backends.
type Provider interface {
	Kind() Kind
	// Available reports whether the backend module can be loaded.
	Available(ctx context.Context) bool
	// ListInstalled returns the latest installed version of every package.
	ListInstalled(ctx context.Context) ([]Installed, error)
	// ListVersions returns every installed version of name.
	ListVersions(ctx context.Context, name string) ([]Installed, error)
	// FindLatest returns the newest version published for name.
	FindLatest(ctx context.Context, name string, prerelease bool) (*version.Version, error)
	// Install installs exactly v into the given -Scope (CurrentUser or AllUsers).
	Install(ctx context.Context, name string, v *version.Version, installScope string) error
	// Uninstall removes exactly v.
	Uninstall(ctx context.Context, name string, v *version.Version, force bool) error
}

// ParseVersion parses a module version. Four-part .NET versions and
// semver prereleases are both accepted.
func ParseVersion(raw string) (*version.Version, error) {
	v, err := version.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed version %q: %w", raw, err)
	}
	return v, nil
}

// Newest returns the highest version in vs, or nil for an empty slice.
func Newest(vs []*version.Version) *version.Version {
	var best *version.Version
	for _, v := range vs {
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// SortInstalled orders records by name, then ascending version.
func SortInstalled(items []Installed) {
	sort.SliceStable(items, func(i, j int) bool {
		ni, nj := strings.ToLower(items[i].Name), strings.ToLower(items[j].Name)
		if ni != nj {
			return ni < nj
		}
		return items[i].Version.LessThan(items[j].Version)
	})
}

// versionDir returns the directory that holds one module version. Some
// providers report the module root instead, so the name/version suffix is
// appended when missing.
func versionDir(location, name, ver string) string {
	if location == "" {
		return ""
	}
	clean := filepath.Clean(location)
	if strings.EqualFold(filepath.Base(clean), ver) {
		return clean
	}
	if strings.EqualFold(filepath.Base(clean), name) {
		return filepath.Join(clean, ver)
	}
	return filepath.Join(clean, name, ver)
}
