package app

import (
	"strings"
	"testing"
)

func TestRunInventory(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Pester", "5.4.0", "5.5.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, systemRoot, "PSReadLine", "2.3.4")...)

	out := captureStdout(t, func() {
		if err := runInventory(inventoryCmd, nil); err != nil {
			t.Fatalf("runInventory: %v", err)
		}
	})

	if !strings.Contains(out, "5.5.0") || strings.Contains(out, "5.4.0") {
		t.Errorf("expected only the newest Pester version, got:\n%s", out)
	}
	if !strings.Contains(out, "PSReadLine") || !strings.Contains(out, "System") {
		t.Errorf("expected PSReadLine as System, got:\n%s", out)
	}
	if !strings.Contains(out, "2 module(s) via PSResourceGet") {
		t.Errorf("expected footer, got:\n%s", out)
	}
}

func TestRunInventoryScopeFilter(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, userRoot, "Pester", "5.5.0")...)
	te.a.Packages = append(te.a.Packages, te.installVersions(t, systemRoot, "PSReadLine", "2.3.4")...)
	setFlag(t, inventoryCmd, "scope", "User")

	out := captureStdout(t, func() {
		if err := runInventory(inventoryCmd, nil); err != nil {
			t.Fatalf("runInventory: %v", err)
		}
	})

	if strings.Contains(out, "PSReadLine") {
		t.Errorf("System module should be filtered out, got:\n%s", out)
	}
	if !strings.Contains(out, "1 module(s)") {
		t.Errorf("expected one module, got:\n%s", out)
	}
}

func TestRunInventoryExplicitProvider(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Packages = te.installVersions(t, userRoot, "FromA", "1.0.0")
	te.b.Packages = te.installVersions(t, userRoot, "FromB", "1.0.0")
	setFlag(t, inventoryCmd, "provider", "B")

	out := captureStdout(t, func() {
		if err := runInventory(inventoryCmd, nil); err != nil {
			t.Fatalf("runInventory: %v", err)
		}
	})

	if !strings.Contains(out, "FromB") || strings.Contains(out, "FromA") {
		t.Errorf("expected only PowerShellGet modules, got:\n%s", out)
	}
}

func TestRunInventoryProviderUnavailable(t *testing.T) {
	te := setupTestEnv(t)
	te.a.Down = true
	te.b.Down = true

	out := captureStdout(t, func() {
		if err := runInventory(inventoryCmd, nil); err != nil {
			t.Fatalf("unavailable provider should not be an error, got %v", err)
		}
	})

	if !strings.Contains(out, "No installed modules found.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
