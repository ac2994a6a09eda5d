package app

import (
	"strings"
	"testing"
	"time"
)

func TestHistoryCommandFlags(t *testing.T) {
	if f := historyCmd.Flags().Lookup("limit"); f == nil || f.DefValue != "20" {
		t.Errorf("expected --limit to default to 20, got %+v", f)
	}
	if f := historyCmd.Flags().Lookup("prune"); f == nil || f.DefValue != "0" {
		t.Errorf("expected --prune to default to 0, got %+v", f)
	}
	if err := historyCmd.Args(historyCmd, []string{"a", "b"}); err == nil {
		t.Error("expected at most one run ID argument")
	}
}

func TestRunHistoryEmpty(t *testing.T) {
	setupTestEnv(t)

	out := captureStdout(t, func() {
		if err := runHistory(historyCmd, nil); err != nil {
			t.Fatalf("runHistory: %v", err)
		}
	})

	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunHistoryAfterCleanup(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "Bar", "1.0.0", "1.1.0")
	te.removeOnUninstall(te.a)
	cleanupFlagName = "Bar"
	cleanupFlagYes = true

	captureStdout(t, func() {
		if err := runCleanup(cleanupCmd, nil); err != nil {
			t.Fatalf("runCleanup: %v", err)
		}
	})

	out := captureStdout(t, func() {
		if err := runHistory(historyCmd, nil); err != nil {
			t.Fatalf("runHistory: %v", err)
		}
	})
	if !strings.Contains(out, "version-cleanup") || !strings.Contains(out, "Bar") {
		t.Errorf("expected the cleanup run to be listed, got:\n%s", out)
	}

	st := openTestJournal(t, te)
	runs, err := st.ListRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v (%d runs)", err, len(runs))
	}

	// Show a single run by ID prefix.
	out = captureStdout(t, func() {
		if err := runHistory(historyCmd, []string{runs[0].ID[:8]}); err != nil {
			t.Fatalf("runHistory(id): %v", err)
		}
	})
	if !strings.Contains(out, "Run "+runs[0].ID+": version-cleanup Bar") {
		t.Errorf("expected run header, got:\n%s", out)
	}
	if !strings.Contains(out, "1.0.0") || !strings.Contains(out, "Removed") {
		t.Errorf("expected the removal to be listed, got:\n%s", out)
	}
}

func TestRunHistoryUnknownRun(t *testing.T) {
	te := setupTestEnv(t)
	st := openTestJournal(t, te)
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	var err error
	captureStdout(t, func() { err = runHistory(historyCmd, []string{"deadbeef"}) })
	if err == nil {
		t.Error("expected error for unknown run ID")
	}
}

func TestRunHistoryPrune(t *testing.T) {
	te := setupTestEnv(t)
	st := openTestJournal(t, te)
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	run, err := st.BeginRun("version-cleanup", "Old", "", false)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	old := time.Now().AddDate(0, 0, -120).UTC().Format("2006-01-02T15:04:05.000000000Z")
	if _, err := st.DB().Exec("UPDATE runs SET started_at = ? WHERE id = ?", old, run.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := st.BeginRun("version-cleanup", "New", "", false); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	historyFlagPrune = 90

	out := captureStdout(t, func() {
		if err := runHistory(historyCmd, nil); err != nil {
			t.Fatalf("runHistory: %v", err)
		}
	})

	if !strings.Contains(out, "Pruned 1 run(s) older than 90 days.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	runs, _ := st.ListRuns(0)
	if len(runs) != 1 || runs[0].Target != "New" {
		t.Errorf("expected only the recent run to remain, got %+v", runs)
	}
}
