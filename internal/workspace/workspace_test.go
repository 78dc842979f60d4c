package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveDeterministic(t *testing.T) {
	a := Resolve("/tmp/ws", "juice-shop", "CVE-2024-0001", "lodash", "alice@example.com")
	b := Resolve("/tmp/ws", "juice-shop", "CVE-2024-0001", "lodash", "alice@example.com")
	if a != b {
		t.Fatalf("same inputs produced different paths: %q vs %q", a, b)
	}
	if !strings.HasPrefix(filepath.Base(a), "juice-shop-") {
		t.Errorf("path %q does not start with repo name", a)
	}
	if filepath.Dir(a) != filepath.Join("/tmp/ws", "remediation") {
		t.Errorf("path %q not under remediation subdir", a)
	}
}

func TestResolveDistinguishesParts(t *testing.T) {
	a := Resolve("/tmp/ws", "juice-shop", "CVE-2024-0001", "lodash")
	b := Resolve("/tmp/ws", "juice-shop", "CVE-2024-0002", "lodash")
	if a == b {
		t.Fatalf("different vulnerabilities mapped to the same workspace: %q", a)
	}

	// Joining with a separator must not let adjacent fields bleed into
	// each other ("ab"+"c" vs "a"+"bc").
	c := Resolve("/tmp/ws", "r", "ab", "c")
	d := Resolve("/tmp/ws", "r", "a", "bc")
	if c == d {
		t.Fatal("field boundaries are ambiguous in workspace hash")
	}
}

func TestSweepExpired(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)

	stale := filepath.Join(root, "remediation", "repo-aaaa")
	fresh := filepath.Join(root, "remediation", "repo-bbbb")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := SweepExpired(root, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if Exists(stale) {
		t.Error("stale workspace survived the sweep")
	}
	if !Exists(fresh) {
		t.Error("fresh workspace was swept")
	}
}

func TestSweepExpiredMissingRoot(t *testing.T) {
	removed, err := SweepExpired(filepath.Join(t.TempDir(), "nope"), time.Hour)
	if err != nil {
		t.Fatalf("SweepExpired on missing root: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestTouchProtectsFromSweep(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "remediation", "repo-cccc")
	if err := os.MkdirAll(ws, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(ws, old, old); err != nil {
		t.Fatal(err)
	}

	if err := Touch(ws); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	removed, err := SweepExpired(root, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 0 || !Exists(ws) {
		t.Error("touched workspace was swept")
	}
}
