package app

import (
	"strings"
	"testing"

	"github.com/blackwell-systems/modsweep/internal/store"
)

// openTestJournal opens the journal written by the command under test.
func openTestJournal(t *testing.T, te *testEnv) *store.Store {
	t.Helper()
	st, err := store.New(te.db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpdateCommandFlags(t *testing.T) {
	for _, name := range []string{"preview", "cleanup-old", "force", "yes"} {
		f := updateCmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("expected --%s flag", name)
			continue
		}
		if f.DefValue != "false" {
			t.Errorf("--%s default = %q, want false", name, f.DefValue)
		}
	}
}

func TestRunUpdatePreviewMakesNoChanges(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Foo", "1.0.0")
	te.a.Latest["Foo"] = "1.2.0"
	updateFlagPreview = true

	out := captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	if !strings.Contains(out, "Preview only") {
		t.Errorf("expected preview notice, got:\n%s", out)
	}
	for _, op := range []string{"install", "uninstall"} {
		if n := len(te.a.Ops(op)) + len(te.b.Ops(op)); n != 0 {
			t.Errorf("preview made %d %s call(s)", n, op)
		}
	}

	st := openTestJournal(t, te)
	runs, err := st.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || !runs[0].DryRun {
		t.Fatalf("expected one dry-run journal entry, got %+v", runs)
	}
	results, err := st.GetResults(runs[0].ID)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 1 || results[0].Status != "Previewed" {
		t.Errorf("expected one Previewed result, got %+v", results)
	}
}

func TestRunUpdateSystemOnlyWithoutElevation(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, systemRoot, "Shared", "1.0.0")
	te.a.Latest["Shared"] = "2.0.0"
	updateFlagYes = true

	out := captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	if !strings.Contains(out, "need an elevated session") {
		t.Errorf("expected elevation notice, got:\n%s", out)
	}
	if !strings.Contains(out, "no changes made") {
		t.Errorf("expected no-op message, got:\n%s", out)
	}
	if n := len(te.a.Ops("install")); n != 0 {
		t.Errorf("expected no installs without elevation, got %d", n)
	}

	st := openTestJournal(t, te)
	runs, _ := st.ListRuns(0)
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	results, _ := st.GetResults(runs[0].ID)
	if len(results) != 1 || results[0].Status != "Skipped" || results[0].Message != "requires elevation" {
		t.Errorf("expected skipped result, got %+v", results)
	}
}

func TestRunUpdateElevatedInstallsSystemScope(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, systemRoot, "Shared", "1.0.0")
	te.a.Latest["Shared"] = "2.0.0"
	isElevated = func() bool { return true }
	updateFlagYes = true

	captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	installs := te.a.Ops("install")
	if len(installs) != 1 {
		t.Fatalf("expected one install, got %v", installs)
	}
	if installs[0].Version != "2.0.0" || installs[0].Scope != "AllUsers" {
		t.Errorf("expected exact version into AllUsers, got %+v", installs[0])
	}
}

func TestRunUpdateMixedScopesNotElevated(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Mine", "1.0.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, systemRoot, "Shared", "1.0.0")...)
	te.a.Latest["Mine"] = "1.1.0"
	te.a.Latest["Shared"] = "1.1.0"
	updateFlagYes = true

	out := captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	installs := te.a.Ops("install")
	if len(installs) != 1 || installs[0].Name != "Mine" || installs[0].Scope != "CurrentUser" {
		t.Errorf("expected only Mine installed for CurrentUser, got %v", installs)
	}
	if !strings.Contains(out, "1 updated, 0 failed, 0 declined, 1 skipped (not elevated)") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestRunUpdatePromptDeclined(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Foo", "1.0.0")
	te.a.Latest["Foo"] = "1.2.0"
	answer("n")

	out := captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	if !strings.Contains(out, "Update cancelled.") {
		t.Errorf("expected cancellation, got:\n%s", out)
	}
	if n := len(te.a.Ops("install")); n != 0 {
		t.Errorf("expected no installs after declining, got %d", n)
	}
}

func TestRunUpdateCleanupOld(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Foo", "1.0.0", "1.1.0")
	te.a.Latest["Foo"] = "1.2.0"
	answer("y")
	updateFlagCleanup = true

	out := captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	if !strings.Contains(out, "remove the versions they replace") {
		t.Errorf("expected cleanup to be mentioned in the prompt, got:\n%s", out)
	}
	uninstalls := te.a.Ops("uninstall")
	if len(uninstalls) != 2 {
		t.Fatalf("expected 1.0.0 and 1.1.0 uninstalled, got %v", uninstalls)
	}
	for _, c := range uninstalls {
		if c.Version == "1.2.0" {
			t.Errorf("newest version must be kept, got %v", uninstalls)
		}
	}

	st := openTestJournal(t, te)
	runs, _ := st.ListRuns(0)
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	if runs[0].ResultCount != 3 || runs[0].FailedCount != 0 {
		t.Errorf("expected 1 install and 2 removals journaled, got %d results (%d failed)",
			runs[0].ResultCount, runs[0].FailedCount)
	}
}

func TestRunUpdateNothingToDo(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Foo", "1.2.0")
	te.a.Latest["Foo"] = "1.2.0"

	out := captureStdout(t, func() {
		if err := runUpdate(updateCmd, nil); err != nil {
			t.Fatalf("runUpdate: %v", err)
		}
	})

	if !strings.Contains(out, "All modules are up to date.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	st := openTestJournal(t, te)
	if runs, err := st.ListRuns(0); err == nil && len(runs) != 0 {
		t.Errorf("expected no run journaled when nothing was planned, got %d", len(runs))
	}
}
