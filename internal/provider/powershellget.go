package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/pwsh"
)

// PowerShellGetModule is the module that ships provider B's cmdlets.
const PowerShellGetModule = "PowerShellGet"

// psModule is the projection of a PSRepositoryItemInfo emitted as JSON.
// Prerelease versions are already folded into Version.
type psModule struct {
	Name              string `json:"Name"`
	Version           string `json:"Version"`
	InstalledLocation string `json:"InstalledLocation"`
}

const psModuleSelect = "Select-Object Name, @{n='Version';e={[string]$_.Version}}, InstalledLocation"

// PowerShellGetProvider drives PowerShellGet (provider B).
type PowerShellGetProvider struct {
	runner pwsh.Runner
	logger *log.Logger
}

// NewPowerShellGet returns provider B backed by runner.
func NewPowerShellGet(runner pwsh.Runner, logger *log.Logger) *PowerShellGetProvider {
	return &PowerShellGetProvider{runner: runner, logger: logger}
}

// Kind implements Provider.
func (p *PowerShellGetProvider) Kind() Kind { return PowerShellGet }

// Available implements Provider.
func (p *PowerShellGetProvider) Available(ctx context.Context) bool {
	return moduleAvailable(ctx, p.runner, PowerShellGetModule)
}

// ListInstalled implements Provider.
func (p *PowerShellGetProvider) ListInstalled(ctx context.Context) ([]Installed, error) {
	script := pwsh.ToJSON(pwsh.Command("Get-InstalledModule") + " | " + psModuleSelect)
	items, err := p.query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("Get-InstalledModule failed: %w", err)
	}
	return latestPerName(items), nil
}

// ListVersions implements Provider.
func (p *PowerShellGetProvider) ListVersions(ctx context.Context, name string) ([]Installed, error) {
	script := pwsh.ToJSON(pwsh.Command("Get-InstalledModule", "-Name "+pwsh.Quote(name), "-AllVersions") + " | " + psModuleSelect)
	items, err := p.query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("Get-InstalledModule %s failed: %w", name, err)
	}
	SortInstalled(items)
	return items, nil
}

// FindLatest implements Provider.
func (p *PowerShellGetProvider) FindLatest(ctx context.Context, name string, prerelease bool) (*version.Version, error) {
	script := pwsh.ToJSON(pwsh.Command("Find-Module",
		"-Name "+pwsh.Quote(name),
		pwsh.Switch("AllowPrerelease", prerelease),
	) + " | " + psModuleSelect)

	items, err := p.query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("Find-Module %s failed: %w", name, err)
	}
	return newestOf(name, items)
}

// Install implements Provider.
func (p *PowerShellGetProvider) Install(ctx context.Context, name string, v *version.Version, installScope string) error {
	script := pwsh.Command("Install-Module",
		"-Name "+pwsh.Quote(name),
		"-RequiredVersion "+pwsh.Quote(v.Original()),
		pwsh.Switch("AllowPrerelease", v.Prerelease() != ""),
		"-Scope "+installScope,
		"-Force",
		"-AllowClobber",
	)
	if _, err := p.runner.Run(ctx, script); err != nil {
		return fmt.Errorf("Install-Module %s %s failed: %w", name, v.Original(), err)
	}
	return nil
}

// Uninstall implements Provider.
func (p *PowerShellGetProvider) Uninstall(ctx context.Context, name string, v *version.Version, force bool) error {
	script := pwsh.Command("Uninstall-Module",
		"-Name "+pwsh.Quote(name),
		"-RequiredVersion "+pwsh.Quote(v.Original()),
		pwsh.Switch("AllowPrerelease", v.Prerelease() != ""),
		pwsh.Switch("Force", force),
	)
	if _, err := p.runner.Run(ctx, script); err != nil {
		return fmt.Errorf("Uninstall-Module %s %s failed: %w", name, v.Original(), err)
	}
	return nil
}

func (p *PowerShellGetProvider) query(ctx context.Context, script string) ([]Installed, error) {
	var raw []psModule
	if err := pwsh.RunJSON(ctx, p.runner, script, &raw); err != nil {
		if errors.Is(err, pwsh.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	items := make([]Installed, 0, len(raw))
	for _, r := range raw {
		v, err := ParseVersion(r.Version)
		if err != nil {
			p.logger.Warn("skipping package with unparseable version", "provider", PowerShellGet, "name", r.Name, "version", r.Version)
			continue
		}
		items = append(items, Installed{
			Name:     r.Name,
			Version:  v,
			Location: versionDir(r.InstalledLocation, r.Name, baseVersion(r.Version)),
		})
	}
	return items, nil
}
