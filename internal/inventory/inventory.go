// Package inventory enumerates installed modules from whichever provider
// is selected and normalizes them into PackageRecords.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-version"

	"github.com/blackwell-systems/modsweep/internal/provider"
	"github.com/blackwell-systems/modsweep/internal/scope"
)

// ErrInvalidPattern is returned for a malformed --name wildcard.
var ErrInvalidPattern = errors.New("invalid name pattern")

// PackageRecord is one installed module, newest version only.
type PackageRecord struct {
	Name     string
	Version  *version.Version
	Location string
	Scope    scope.Scope
	Provider provider.Kind
}

// Resolver lists installed packages.
type Resolver struct {
	providers  *provider.Set
	classifier scope.Classifier
	logger     *log.Logger
}

// New creates a Resolver.
func New(providers *provider.Set, classifier scope.Classifier, logger *log.Logger) *Resolver {
	return &Resolver{providers: providers, classifier: classifier, logger: logger}
}

// Result is the outcome of one inventory scan.
type Result struct {
	// Provider is the backend that was actually queried.
	Provider provider.Provider
	Records  []PackageRecord
}

// ListInstalled resolves kind (Auto is resolved now, not cached) and lists
// its installed packages whose names match any of patterns. Each backend's
// availability is checked at most once. An unavailable backend yields an
// empty result and a warning.
func (r *Resolver) ListInstalled(ctx context.Context, kind provider.Kind, patterns []string) (*Result, error) {
	matcher, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}

	p, available, err := r.providers.Resolve(ctx, kind)
	if err != nil {
		return nil, err
	}
	res := &Result{Provider: p}

	if !available && !p.Available(ctx) {
		r.logger.Warn("provider is not available on this host; nothing to do", "provider", p.Kind())
		return res, nil
	}

	installed, err := p.ListInstalled(ctx)
	if err != nil {
		r.logger.Warn("could not list installed packages", "provider", p.Kind(), "err", err)
		return res, nil
	}

	for _, it := range installed {
		if !matcher.Match(it.Name) {
			continue
		}
		res.Records = append(res.Records, PackageRecord{
			Name:     it.Name,
			Version:  it.Version,
			Location: it.Location,
			Scope:    r.classifier.Classify(it.Location),
			Provider: p.Kind(),
		})
	}

	r.logger.Debug("inventory complete", "provider", p.Kind(), "installed", len(installed), "matched", len(res.Records))
	return res, nil
}

// FilterScope keeps the records whose scope passes filter.
func FilterScope(records []PackageRecord, filter scope.Scope) []PackageRecord {
	if filter == scope.All {
		return records
	}
	var out []PackageRecord
	for _, rec := range records {
		if rec.Scope.Matches(filter) {
			out = append(out, rec)
		}
	}
	return out
}

// Matcher applies case-insensitive wildcard patterns to module names.
// An empty pattern list matches everything.
type Matcher struct {
	patterns []string
}

// NewMatcher validates patterns. Commas inside a single argument are
// treated as separators so "Az.*,Pester" works from the command line.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, raw := range patterns {
		for _, p := range strings.Split(raw, ",") {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
			}
			m.patterns = append(m.patterns, p)
		}
	}
	return m, nil
}

// Match reports whether name matches any pattern.
func (m *Matcher) Match(name string) bool {
	if len(m.patterns) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, lower); ok {
			return true
		}
	}
	return false
}
