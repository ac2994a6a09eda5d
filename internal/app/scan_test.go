package app

import (
	"errors"
	"strings"
	"testing"
)

func TestScanCommandFlags(t *testing.T) {
	tests := []struct {
		name     string
		defValue string
	}{
		{"scope", "All"},
		{"provider", "Auto"},
		{"include-prerelease", "false"},
		{"name", "[]"},
	}

	for _, cmd := range []string{"update-scan", "update-apply"} {
		c, _, err := RootCmd.Find([]string{cmd})
		if err != nil {
			t.Fatalf("Find(%s): %v", cmd, err)
		}
		for _, tt := range tests {
			f := c.Flags().Lookup(tt.name)
			if f == nil {
				t.Errorf("%s: expected --%s flag", cmd, tt.name)
				continue
			}
			if f.DefValue != tt.defValue {
				t.Errorf("%s: --%s default = %q, want %q", cmd, tt.name, f.DefValue, tt.defValue)
			}
		}
	}
}

func TestRunScanListsCandidates(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Foo", "1.0.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Current", "3.1.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, systemRoot, "Gone", "0.9.0")...)
	te.a.Latest["Foo"] = "1.2.0"
	te.a.Latest["Current"] = "3.1.0"

	out := captureStdout(t, func() {
		if err := runScan(scanCmd, nil); err != nil {
			t.Fatalf("runScan: %v", err)
		}
	})

	if !strings.Contains(out, "Checked 3 module(s) via PSResourceGet") {
		t.Errorf("expected checked count, got:\n%s", out)
	}
	if !strings.Contains(out, "1.2.0") {
		t.Errorf("expected Foo's latest version in output, got:\n%s", out)
	}
	if !strings.Contains(out, "Could not check 1 module(s)") || !strings.Contains(out, "Gone") {
		t.Errorf("expected lookup failure for Gone, got:\n%s", out)
	}
	if !strings.Contains(out, "1 update(s) available") {
		t.Errorf("expected one update, got:\n%s", out)
	}
	if n := len(te.a.Ops("install")); n != 0 {
		t.Errorf("update-scan must not install, got %d install calls", n)
	}
	if n := len(te.b.Ops("")); n != 0 {
		t.Errorf("expected PowerShellGet untouched when PSResourceGet is available, got %v", te.b.Ops(""))
	}
}

func TestRunScanAutoFallsBackToPowerShellGet(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Down = true
	te.b.Packages = te.installVersions(t, userRoot, "Legacy", "1.0.0")
	te.b.Latest["Legacy"] = "1.1.0"

	out := captureStdout(t, func() {
		if err := runScan(scanCmd, nil); err != nil {
			t.Fatalf("runScan: %v", err)
		}
	})

	if !strings.Contains(out, "via PowerShellGet") {
		t.Errorf("expected Auto to resolve to PowerShellGet, got:\n%s", out)
	}
	if len(te.b.Ops("find")) != 1 {
		t.Errorf("expected one lookup via PowerShellGet, got %v", te.b.Ops("find"))
	}
}

func TestRunScanScopeFlagSkipsLookups(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Mine", "1.0.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, systemRoot, "Shared", "1.0.0")...)
	te.a.Latest["Mine"] = "2.0.0"
	te.a.Latest["Shared"] = "2.0.0"
	setFlag(t, scanCmd, "scope", "User")

	out := captureStdout(t, func() {
		if err := runScan(scanCmd, nil); err != nil {
			t.Fatalf("runScan: %v", err)
		}
	})

	finds := te.a.Ops("find")
	if len(finds) != 1 || finds[0].Name != "Mine" {
		t.Errorf("expected only the User module to be looked up, got %v", finds)
	}
	if strings.Contains(out, "Shared") {
		t.Errorf("System module should be filtered out, got:\n%s", out)
	}
}

func TestRunScanNameFilter(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Az.Accounts", "2.0.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Pester", "5.0.0")...)
	te.a.Latest["Az.Accounts"] = "2.1.0"
	scanFlags.names = []string{"az.*"}

	captureStdout(t, func() {
		if err := runScan(scanCmd, nil); err != nil {
			t.Fatalf("runScan: %v", err)
		}
	})

	finds := te.a.Ops("find")
	if len(finds) != 1 || finds[0].Name != "Az.Accounts" {
		t.Errorf("expected only Az.Accounts to be looked up, got %v", finds)
	}
}

func TestRunScanNoModules(t *testing.T) {
	setupTestEnv(t)
	setFlag(t, scanCmd, "scope", "System")

	out := captureStdout(t, func() {
		if err := runScan(scanCmd, nil); err != nil {
			t.Fatalf("runScan: %v", err)
		}
	})

	if !strings.Contains(out, "No installed modules found via PSResourceGet in scope System.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunScanInvalidFlags(t *testing.T) {
	setupTestEnv(t)
	setFlag(t, scanCmd, "provider", "C")

	if err := runScan(scanCmd, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRunScanLookupErrorIsIsolated(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Broken", "1.0.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Fine", "1.0.0")...)
	te.a.FindErr["Broken"] = errors.New("repository timed out")
	te.a.Latest["Fine"] = "1.0.1"

	out := captureStdout(t, func() {
		if err := runScan(scanCmd, nil); err != nil {
			t.Fatalf("runScan: %v", err)
		}
	})

	if !strings.Contains(out, "repository timed out") {
		t.Errorf("expected lookup error to be reported, got:\n%s", out)
	}
	if !strings.Contains(out, "1 update(s) available") {
		t.Errorf("expected Fine to still be planned, got:\n%s", out)
	}
}
