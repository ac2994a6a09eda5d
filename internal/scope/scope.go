// Package scope infers whether a module installation is per-user or
// machine-wide from its installation path.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// Scope is the visibility of an installed module.
type Scope string

const (
	User    Scope = "User"
	System  Scope = "System"
	Unknown Scope = "Unknown"
	// All is only meaningful as a filter.
	All Scope = "All"
)

// ErrInvalidScope is returned by Parse for an unrecognized scope name.
var ErrInvalidScope = errors.New("invalid scope")

// Parse validates a scope name, case-insensitively.
func Parse(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "currentuser":
		return User, nil
	case "system", "allusers":
		return System, nil
	case "unknown":
		return Unknown, nil
	case "all", "":
		return All, nil
	default:
		return "", fmt.Errorf("%w %q: must be one of: User, System, All, Unknown", ErrInvalidScope, s)
	}
}

// Matches reports whether s passes the filter.
func (s Scope) Matches(filter Scope) bool {
	return filter == All || filter == s
}

// InstallScope maps a scope to the -Scope argument understood by the
// PowerShell installers. Unknown installs go to the current user.
func (s Scope) InstallScope() string {
	if s == System {
		return "AllUsers"
	}
	return "CurrentUser"
}

// Classifier derives a Scope from an installation path.
type Classifier interface {
	Classify(path string) Scope
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(path string) Scope

// Classify implements Classifier.
func (f ClassifierFunc) Classify(path string) Scope { return f(path) }

// Default system-wide module locations on Windows, Linux and macOS.
var DefaultSystemMarkers = []string{
	`program files`,
	`programdata`,
	`\windows\system32\windowspowershell`,
	`/usr/local/share/powershell`,
	`/usr/share/powershell`,
	`/opt/microsoft/powershell`,
	`/usr/local/microsoft/powershell`,
}

// Default per-user module locations.
var DefaultUserMarkers = []string{
	`\users\`,
	`\documents\`,
	`/users/`,
	`/home/`,
	`/.local/share/powershell`,
}

// PathClassifier matches lower-cased path fragments. System markers are
// checked first so "C:\Users\...\Program Files" style oddities stay System.
type PathClassifier struct {
	SystemMarkers []string
	UserMarkers   []string
}

// NewPathClassifier returns a classifier with the default markers plus any
// extras supplied by configuration.
func NewPathClassifier(extraSystem, extraUser []string) *PathClassifier {
	c := &PathClassifier{
		SystemMarkers: append([]string{}, DefaultSystemMarkers...),
		UserMarkers:   append([]string{}, DefaultUserMarkers...),
	}
	for _, m := range extraSystem {
		c.SystemMarkers = append(c.SystemMarkers, strings.ToLower(m))
	}
	for _, m := range extraUser {
		c.UserMarkers = append(c.UserMarkers, strings.ToLower(m))
	}
	return c
}

// Classify implements Classifier.
func (c *PathClassifier) Classify(path string) Scope {
	if path == "" {
		return Unknown
	}
	p := strings.ToLower(path)

	for _, m := range c.SystemMarkers {
		if strings.Contains(p, m) {
			return System
		}
	}
	for _, m := range c.UserMarkers {
		if strings.Contains(p, m) {
			return User
		}
	}
	return Unknown
}

// Strict wraps a classifier so Unknown results are treated as System.
func Strict(c Classifier) Classifier {
	return ClassifierFunc(func(path string) Scope {
		if s := c.Classify(path); s != Unknown {
			return s
		}
		return System
	})
}
