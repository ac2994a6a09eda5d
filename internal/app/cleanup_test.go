package app

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/reconcile"
)

func TestCleanupCommandFlags(t *testing.T) {
	f := cleanupCmd.Flags().Lookup("keep")
	if f == nil || f.DefValue != "1" {
		t.Errorf("expected --keep to default to 1, got %+v", f)
	}

	name := cleanupCmd.Flags().Lookup("name")
	if name == nil {
		t.Fatal("expected --name flag")
	}
	if ann := name.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) == 0 {
		t.Error("expected --name to be marked required")
	}

	for _, flag := range []string{"force", "dry-run", "yes"} {
		if cleanupCmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag", flag)
		}
	}
}

func TestRunCleanupRemovesOlderVersions(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Bar", "1.0.0", "1.1.0", "1.2.0")
	te.removeOnUninstall(te.a)
	cleanupFlagName = "Bar"
	cleanupFlagYes = true

	out := captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, "Bar: 3 version(s) found, keeping 1") {
		t.Errorf("expected ledger header, got:\n%s", out)
	}
	if !strings.Contains(out, "Removed 2, skipped 0, failed 0.") {
		t.Errorf("expected two removals, got:\n%s", out)
	}
	if !strings.Contains(out, "Versions now present:") {
		t.Errorf("expected re-queried ledger, got:\n%s", out)
	}

	for _, v := range []string{"1.0.0", "1.1.0"} {
		if ok, _ := afero.DirExists(te.fs, filepath.Join(userRoot, "Bar", v)); ok {
			t.Errorf("expected %s to be removed from disk", v)
		}
	}
	if ok, _ := afero.DirExists(te.fs, filepath.Join(userRoot, "Bar", "1.2.0")); !ok {
		t.Error("newest version must be kept")
	}

	st := openTestJournal(t, te)
	runs, err := st.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	if runs[0].Command != "version-cleanup" || runs[0].Target != "Bar" || runs[0].DryRun {
		t.Errorf("unexpected run: %+v", runs[0])
	}
	results, _ := st.GetResults(runs[0].ID)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Action != string(reconcile.MethodProviderA) || r.Status != string(reconcile.Removed) {
			t.Errorf("expected provider A removal, got %+v", r)
		}
	}
}

func TestRunCleanupDryRun(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Bar", "1.0.0", "1.1.0")
	cleanupFlagName = "Bar"
	cleanupFlagDryRun = true

	out := captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, "Dry run: would remove 1 version path(s)") {
		t.Errorf("expected dry-run summary, got:\n%s", out)
	}
	if n := len(te.a.Ops("uninstall")); n != 0 {
		t.Errorf("dry run made %d uninstall call(s)", n)
	}
	if ok, _ := afero.DirExists(te.fs, filepath.Join(userRoot, "Bar", "1.0.0")); !ok {
		t.Error("dry run must not touch the filesystem")
	}

	st := openTestJournal(t, te)
	runs, _ := st.ListRuns(0)
	if len(runs) != 1 || !runs[0].DryRun {
		t.Errorf("expected one dry-run journal entry, got %+v", runs)
	}
}

func TestRunCleanupUntrackedVersionDeletedFromDisk(t *testing.T) {
	te := setupTestEnv(t)
	te.installVersions(t, systemRoot, "Orphan", "0.1.0", "0.2.0")
	cleanupFlagName = "Orphan"
	cleanupFlagYes = true

	out := captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, string(reconcile.MethodFilesystem)) {
		t.Errorf("expected filesystem removal, got:\n%s", out)
	}
	if ok, _ := afero.DirExists(te.fs, filepath.Join(systemRoot, "Orphan", "0.1.0")); ok {
		t.Error("expected 0.1.0 to be deleted")
	}
}

func TestRunCleanupKeepFromConfig(t *testing.T) {
	te := setupTestEnv(t)
	t.Setenv("MODSWEEP_KEEP", "2")
	te.a.Packages = te.installVersions(t, userRoot, "Bar", "1.0.0", "1.1.0", "1.2.0")
	te.removeOnUninstall(te.a)
	cleanupFlagName = "Bar"
	cleanupFlagYes = true

	out := captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, "Removed 1,") {
		t.Errorf("expected configured keep=2 to remove one version, got:\n%s", out)
	}

	// An explicit flag wins over config.
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Bar", "1.3.0")...)
	setFlag(t, cleanupCmd, "keep", "1")

	out = captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, "Removed 2,") {
		t.Errorf("expected --keep 1 to override config, got:\n%s", out)
	}
}

func TestRunCleanupPromptsPerVersion(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Bar", "1.0.0", "1.1.0", "1.2.0")
	te.removeOnUninstall(te.a)
	cleanupFlagName = "Bar"
	answer("n", "y")

	out := captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, "Remove Bar 1.0.0") || !strings.Contains(out, "Remove Bar 1.1.0") {
		t.Errorf("expected a prompt per version, got:\n%s", out)
	}
	if !strings.Contains(out, "Removed 1, skipped 1, failed 0.") {
		t.Errorf("expected one removal and one declined, got:\n%s", out)
	}
	uninstalls := te.a.Ops("uninstall")
	if len(uninstalls) != 1 || uninstalls[0].Version != "1.1.0" {
		t.Errorf("expected only 1.1.0 uninstalled, got %v", uninstalls)
	}
}

func TestRunCleanupNothingToRemove(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Solo", "1.0.0")
	cleanupFlagName = "Solo"
	cleanupFlagYes = true

	out := captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	if !strings.Contains(out, "Nothing to remove: 1 version(s) installed, keeping 1.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunCleanupErrors(t *testing.T) {
	tests := []struct {
		name    string
		module  string
		wantErr error
	}{
		{"missing name", "", reconcile.ErrNameRequired},
		{"wildcard name", "Az.*", reconcile.ErrNameRequired},
		{"unknown module", "NoSuchModule", reconcile.ErrPackageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestEnv(t)
			cleanupFlagName = tt.module
			cleanupFlagYes = true

			var err error
			captureStdout(t, func() { err = runCleanup(cleanupCmd, nil) })
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRunCleanupInvalidKeep(t *testing.T) {
	setupTestEnv(t)
	cleanupFlagName = "Bar"
	setFlag(t, cleanupCmd, "keep", "0")

	var err error
	captureStdout(t, func() { err = runCleanup(cleanupCmd, nil) })
	if !errors.Is(err, reconcile.ErrInvalidKeep) {
		t.Errorf("expected ErrInvalidKeep, got %v", err)
	}
}
