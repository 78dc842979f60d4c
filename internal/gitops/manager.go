// Package gitops drives the git workflow for a single remediation:
// clone into a deterministic workspace, diff the agent's edits against
// the target branch, and publish a fix branch for the pull request.
package gitops

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

const (
	authUser    = "remediator"
	commitName  = "AI Guardian"
	commitEmail = "remediator@aiguardian.dev"
)

// Manager performs git operations for one workspace. The remote URL is
// always credential-free; the token travels via transport auth only and
// is never written to the on-disk git config.
type Manager struct {
	remoteURL string
	branch    string
	token     string
	path      string
}

// New returns a Manager for the given remote and workspace path.
// Branch may be empty until ResolveDefaultBranch fills it in.
func New(remoteURL, branch, token, path string) *Manager {
	return &Manager{remoteURL: remoteURL, branch: branch, token: token, path: path}
}

// Path returns the workspace directory this manager operates on.
func (m *Manager) Path() string { return m.path }

// Branch returns the target branch the manager diffs and raises PRs against.
func (m *Manager) Branch() string { return m.branch }

// SetBranch overrides the target branch after default-branch resolution.
func (m *Manager) SetBranch(branch string) { m.branch = branch }

func (m *Manager) auth() *githttp.BasicAuth {
	if m.token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: authUser, Password: m.token}
}

// ResolveDefaultBranch asks the remote which branch HEAD points at,
// without cloning. Failure here is not fatal to a remediation; callers
// fall back to the remote's conventional default.
func (m *Manager) ResolveDefaultBranch(ctx context.Context) (string, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{m.remoteURL},
	})

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: m.auth()})
	if err != nil {
		return "", fmt.Errorf("listing remote refs: %w", err)
	}

	for _, ref := range refs {
		if ref.Name() == plumbing.HEAD && ref.Type() == plumbing.SymbolicReference {
			return ref.Target().Short(), nil
		}
	}
	return "", fmt.Errorf("remote HEAD is not symbolic")
}

// Clone materialises the workspace with a shallow single-branch clone
// of the target branch. An existing workspace is destroyed first so a
// regenerate always starts from the branch tip.
func (m *Manager) Clone(ctx context.Context) error {
	if _, err := os.Stat(m.path); err == nil {
		slog.Debug("Removing stale workspace before clone", "path", m.path)
		if err := os.RemoveAll(m.path); err != nil {
			return fmt.Errorf("removing stale workspace: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating workspace parent: %w", err)
	}

	opts := &gogit.CloneOptions{
		URL:   m.remoteURL,
		Depth: 1, // shallow clone for speed
		Auth:  m.auth(),
	}
	if m.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(m.branch)
		opts.SingleBranch = true
	}

	slog.Debug("Cloning repository", "url", m.remoteURL, "branch", m.branch, "dest", m.path)

	repo, err := gogit.PlainCloneContext(ctx, m.path, false, opts)
	if err != nil {
		os.RemoveAll(m.path)
		return fmt.Errorf("cloning %s: %w", m.remoteURL, err)
	}

	if m.branch == "" {
		head, err := repo.Head()
		if err != nil {
			return fmt.Errorf("resolving HEAD after clone: %w", err)
		}
		m.branch = head.Name().Short()
	}
	return nil
}

// CurrentBranch returns the checked-out branch name, or the commit hash
// when HEAD is detached.
func (m *Manager) CurrentBranch() (string, error) {
	repo, err := gogit.PlainOpen(m.path)
	if err != nil {
		return "", fmt.Errorf("opening workspace repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String(), nil
}

// Diff returns the unified diff of the working tree against the target
// branch tip. An empty string means the agent changed nothing.
func (m *Manager) Diff(ctx context.Context) (string, error) {
	return m.runGit(ctx, "diff", m.branch)
}

// CommitAndPush creates branchName at HEAD keeping working-tree edits,
// stages everything, commits, and pushes the branch to origin.
func (m *Manager) CommitAndPush(ctx context.Context, branchName, message string) error {
	repo, err := gogit.PlainOpen(m.path)
	if err != nil {
		return fmt.Errorf("opening workspace repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branchName),
		Create: true,
		Keep:   true, // carry the uncommitted fix onto the new branch
	})
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", branchName, err)
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	_, err = wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  commitName,
			Email: commitEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing fix: %w", err)
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branchName, branchName))
	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Auth:       m.auth(),
	})
	if err != nil {
		return fmt.Errorf("pushing branch %s: %w", branchName, err)
	}

	slog.Info("Pushed fix branch", "branch", branchName)
	return nil
}

// Cleanup removes the workspace. Safe to call on an already-removed path.
func (m *Manager) Cleanup() {
	if err := os.RemoveAll(m.path); err != nil {
		slog.Warn("Failed to clean up workspace", "path", m.path, "error", err)
	}
}

// FixBranchName builds a branch name like "fix/CVE-2024-0001-lodash-x7k2mqp9ab".
func FixBranchName(slug string) string {
	return "fix/" + slug + "-" + randomSuffix(10)
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process is in a bad state.
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out)
}

// runGit executes a git subcommand inside the workspace. Only used for
// operations go-git cannot express, currently worktree-vs-branch diffs.
func (m *Manager) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
