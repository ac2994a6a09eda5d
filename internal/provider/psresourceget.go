package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/pwsh"
)

// PSResourceGetModule is the module that ships provider A's cmdlets.
const PSResourceGetModule = "Microsoft.PowerShell.PSResourceGet"

// psResource is the projection of a PSResourceInfo emitted as JSON.
// Version and Prerelease are reported separately by PSResourceGet.
type psResource struct {
	Name              string `json:"Name"`
	Version           string `json:"Version"`
	Prerelease        string `json:"Prerelease"`
	InstalledLocation string `json:"InstalledLocation"`
}

func (r psResource) fullVersion() string {
	if r.Prerelease == "" {
		return r.Version
	}
	return r.Version + "-" + r.Prerelease
}

const psResourceSelect = "Select-Object Name, @{n='Version';e={[string]$_.Version}}, Prerelease, InstalledLocation"

// ResourceGet drives PSResourceGet (provider A).
type ResourceGet struct {
	runner pwsh.Runner
	logger *log.Logger
}

// NewResourceGet returns provider A backed by runner.
func NewResourceGet(runner pwsh.Runner, logger *log.Logger) *ResourceGet {
	return &ResourceGet{runner: runner, logger: logger}
}

// Kind implements Provider.
func (p *ResourceGet) Kind() Kind { return PSResourceGet }

// Available implements Provider.
func (p *ResourceGet) Available(ctx context.Context) bool {
	return moduleAvailable(ctx, p.runner, PSResourceGetModule)
}

// ListInstalled implements Provider.
func (p *ResourceGet) ListInstalled(ctx context.Context) ([]Installed, error) {
	script := pwsh.ToJSON(pwsh.Command("Get-InstalledPSResource") + " | " + psResourceSelect)
	items, err := p.query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("Get-InstalledPSResource failed: %w", err)
	}
	return latestPerName(items), nil
}

// ListVersions implements Provider.
func (p *ResourceGet) ListVersions(ctx context.Context, name string) ([]Installed, error) {
	script := pwsh.ToJSON(pwsh.Command("Get-InstalledPSResource", "-Name "+pwsh.Quote(name)) + " | " + psResourceSelect)
	items, err := p.query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("Get-InstalledPSResource %s failed: %w", name, err)
	}
	SortInstalled(items)
	return items, nil
}

// FindLatest implements Provider.
func (p *ResourceGet) FindLatest(ctx context.Context, name string, prerelease bool) (*version.Version, error) {
	script := pwsh.ToJSON(pwsh.Command("Find-PSResource",
		"-Name "+pwsh.Quote(name),
		"-Type Module",
		pwsh.Switch("Prerelease", prerelease),
	) + " | " + psResourceSelect)

	items, err := p.query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("Find-PSResource %s failed: %w", name, err)
	}
	return newestOf(name, items)
}

// Install implements Provider.
func (p *ResourceGet) Install(ctx context.Context, name string, v *version.Version, installScope string) error {
	script := pwsh.Command("Install-PSResource",
		"-Name "+pwsh.Quote(name),
		"-Version "+pwsh.Quote(v.Original()),
		pwsh.Switch("Prerelease", v.Prerelease() != ""),
		"-Scope "+installScope,
		"-TrustRepository",
		"-AcceptLicense",
		"-Reinstall",
	)
	if _, err := p.runner.Run(ctx, script); err != nil {
		return fmt.Errorf("Install-PSResource %s %s failed: %w", name, v.Original(), err)
	}
	return nil
}

// Uninstall implements Provider. PSResourceGet has no -Force; force skips
// the dependency check instead.
func (p *ResourceGet) Uninstall(ctx context.Context, name string, v *version.Version, force bool) error {
	script := pwsh.Command("Uninstall-PSResource",
		"-Name "+pwsh.Quote(name),
		"-Version "+pwsh.Quote(v.Original()),
		pwsh.Switch("Prerelease", v.Prerelease() != ""),
		pwsh.Switch("SkipDependencyCheck", force),
	)
	if _, err := p.runner.Run(ctx, script); err != nil {
		return fmt.Errorf("Uninstall-PSResource %s %s failed: %w", name, v.Original(), err)
	}
	return nil
}

func (p *ResourceGet) query(ctx context.Context, script string) ([]Installed, error) {
	var raw []psResource
	if err := pwsh.RunJSON(ctx, p.runner, script, &raw); err != nil {
		if errors.Is(err, pwsh.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	items := make([]Installed, 0, len(raw))
	for _, r := range raw {
		ver := r.fullVersion()
		v, err := ParseVersion(ver)
		if err != nil {
			p.logger.Warn("skipping package with unparseable version", "provider", PSResourceGet, "name", r.Name, "version", ver)
			continue
		}
		items = append(items, Installed{
			Name:     r.Name,
			Version:  v,
			Location: versionDir(r.InstalledLocation, r.Name, r.Version),
		})
	}
	return items, nil
}
