package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// newTestRepo initialises a working repo with one commit on master and
// a local bare repo wired up as origin.
func newTestRepo(t *testing.T) (m *Manager, barePath string) {
	t.Helper()

	barePath = t.TempDir()
	if _, err := gogit.PlainInit(barePath, true); err != nil {
		t.Fatalf("init bare origin: %v", err)
	}

	workPath := filepath.Join(t.TempDir(), "work")
	repo, err := gogit.PlainInit(workPath, false)
	if err != nil {
		t.Fatalf("init work repo: %v", err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{barePath},
	}); err != nil {
		t.Fatalf("adding origin: %v", err)
	}

	writeFile(t, workPath, "app.js", "const x = require('lodash@3');\n")
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("app.js"); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}
	if _, err := wt.Commit("initial", &gogit.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("initial commit: %v", err)
	}

	return New(barePath, "master", "", workPath), barePath
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCurrentBranch(t *testing.T) {
	m, _ := newTestRepo(t)
	branch, err := m.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "master" {
		t.Errorf("branch = %q, want master", branch)
	}
}

func TestDiffReflectsWorktreeEdits(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	m, _ := newTestRepo(t)
	ctx := context.Background()

	diff, err := m.Diff(ctx)
	if err != nil {
		t.Fatalf("Diff on clean tree: %v", err)
	}
	if diff != "" {
		t.Errorf("clean tree produced diff: %q", diff)
	}

	writeFile(t, m.Path(), "app.js", "const x = require('lodash@4');\n")

	diff, err = m.Diff(ctx)
	if err != nil {
		t.Fatalf("Diff after edit: %v", err)
	}
	if !strings.Contains(diff, "lodash@4") {
		t.Errorf("diff missing edit, got: %q", diff)
	}
}

func TestDiffAfterDefaultBranchFallback(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	src, _ := newTestRepo(t)
	ctx := context.Background()

	// Clone without a branch; the manager must adopt the checked-out
	// branch so a later Diff has something to diff against.
	m := New(src.Path(), "", "", filepath.Join(t.TempDir(), "ws"))
	if err := m.Clone(ctx); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if m.Branch() == "" {
		t.Fatal("branch not adopted from HEAD after clone")
	}

	writeFile(t, m.Path(), "app.js", "const x = require('lodash@4');\n")

	diff, err := m.Diff(ctx)
	if err != nil {
		t.Fatalf("Diff with fallback branch: %v", err)
	}
	if !strings.Contains(diff, "lodash@4") {
		t.Errorf("diff missing edit, got: %q", diff)
	}
}

func TestCommitAndPushPublishesFixBranch(t *testing.T) {
	m, barePath := newTestRepo(t)
	ctx := context.Background()

	writeFile(t, m.Path(), "app.js", "const x = require('lodash@4');\n")

	branch := "fix/CVE-2024-0001-lodash-abcde12345"
	if err := m.CommitAndPush(ctx, branch, "Fix CVE-2024-0001 in lodash"); err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}

	current, err := m.CurrentBranch()
	if err != nil {
		t.Fatal(err)
	}
	if current != branch {
		t.Errorf("workspace on %q, want %q", current, branch)
	}

	origin, err := gogit.PlainOpen(barePath)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := origin.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("fix branch not pushed to origin: %v", err)
	}
	commit, err := origin.CommitObject(ref.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if commit.Message != "Fix CVE-2024-0001 in lodash" {
		t.Errorf("pushed commit message = %q", commit.Message)
	}
}

func TestCloneDestroysStaleWorkspace(t *testing.T) {
	// Clone into a path that already holds leftovers from a previous
	// run; the old content must not survive.
	src, _ := newTestRepo(t)

	dest := filepath.Join(t.TempDir(), "ws")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dest, "stale.txt", "leftover")

	m := New(src.Path(), "master", "", dest)
	if err := m.Clone(context.Background()); err != nil {
		t.Fatalf("Clone: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "stale.txt")); !os.IsNotExist(err) {
		t.Error("stale file survived reclone")
	}
	if _, err := os.Stat(filepath.Join(dest, "app.js")); err != nil {
		t.Errorf("cloned file missing: %v", err)
	}
}

func TestResolveDefaultBranch(t *testing.T) {
	src, _ := newTestRepo(t)

	m := New(src.Path(), "", "", filepath.Join(t.TempDir(), "unused"))
	branch, err := m.ResolveDefaultBranch(context.Background())
	if err != nil {
		t.Fatalf("ResolveDefaultBranch: %v", err)
	}
	if branch != "master" {
		t.Errorf("default branch = %q, want master", branch)
	}
}

func TestFixBranchName(t *testing.T) {
	name := FixBranchName("CVE-2024-0001-lodash")
	pattern := regexp.MustCompile(`^fix/CVE-2024-0001-lodash-[a-z0-9]{10}$`)
	if !pattern.MatchString(name) {
		t.Errorf("branch name %q does not match expected shape", name)
	}
	if name == FixBranchName("CVE-2024-0001-lodash") {
		t.Error("two fix branch names collided")
	}
}
