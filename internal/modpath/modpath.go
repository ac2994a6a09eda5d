// Package modpath discovers module versions physically present under the
// PowerShell module roots.
package modpath

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"
)

// EnvModulePath is the environment variable PowerShell reads module roots from.
const EnvModulePath = "PSModulePath"

// Found is one version directory on disk.
type Found struct {
	Version *version.Version
	Path    string
}

// Finder scans module roots on a filesystem.
type Finder struct {
	fs    afero.Fs
	roots []string
}

// New returns a Finder over roots. Duplicate and empty roots are dropped.
func New(fs afero.Fs, roots []string) *Finder {
	seen := make(map[string]bool, len(roots))
	var clean []string
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		r = filepath.Clean(r)
		key := strings.ToLower(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		clean = append(clean, r)
	}
	return &Finder{fs: fs, roots: clean}
}

// RootsFromEnv splits $PSModulePath.
func RootsFromEnv() []string {
	return filepath.SplitList(os.Getenv(EnvModulePath))
}

// Roots returns the module roots being scanned.
func (f *Finder) Roots() []string {
	return f.roots
}

// Fs returns the underlying filesystem.
func (f *Finder) Fs() afero.Fs {
	return f.fs
}

// Versions lists every version directory of name across all roots,
// ascending by version. Missing roots are ignored.
func (f *Finder) Versions(name string) ([]Found, error) {
	var found []Found

	for _, root := range f.roots {
		moduleDir, ok, err := f.moduleDir(root, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		entries, err := afero.ReadDir(f.fs, moduleDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read module directory %s: %w", moduleDir, err)
		}

		versioned := false
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			v, err := version.NewVersion(entry.Name())
			if err != nil {
				continue
			}
			versioned = true
			found = append(found, Found{Version: v, Path: filepath.Join(moduleDir, entry.Name())})
		}

		// Legacy layout: manifest directly under the module folder.
		if !versioned {
			if v := f.manifestVersion(moduleDir, name); v != nil {
				found = append(found, Found{Version: v, Path: moduleDir})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Version.LessThan(found[j].Version)
	})
	return found, nil
}

// Exists reports whether path is present.
func (f *Finder) Exists(path string) bool {
	ok, err := afero.Exists(f.fs, path)
	return err == nil && ok
}

// Remove deletes a version directory tree.
func (f *Finder) Remove(path string) error {
	if err := f.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Size returns the total size in bytes of regular files under path.
func (f *Finder) Size(path string) int64 {
	var total int64
	_ = afero.Walk(f.fs, path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// moduleDir finds root/name with a case-insensitive match, since module
// names are case-insensitive on every platform.
func (f *Finder) moduleDir(root, name string) (string, bool, error) {
	entries, err := afero.ReadDir(f.fs, root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read module root %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), name) {
			return filepath.Join(root, entry.Name()), true, nil
		}
	}
	return "", false, nil
}

var moduleVersionRe = regexp.MustCompile(`(?i)^\s*ModuleVersion\s*=\s*['"]([^'"]+)['"]`)

func (f *Finder) manifestVersion(moduleDir, name string) *version.Version {
	file, err := f.fs.Open(filepath.Join(moduleDir, name+".psd1"))
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if m := moduleVersionRe.FindStringSubmatch(scanner.Text()); m != nil {
			v, err := version.NewVersion(m[1])
			if err != nil {
				return nil
			}
			return v
		}
	}
	return nil
}
