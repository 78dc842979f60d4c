// Package engine orchestrates remediation runs: it owns the order of
// clone, agent conversation, diff detection, commit, and PR creation,
// and records lifecycle transitions in the ledger. The agent never
// touches version control; every git operation happens here.
package engine

import (
	"context"
	"fmt"

	"github.com/aiguardian/remediator/internal/bridge"
	"github.com/aiguardian/remediator/internal/config"
	"github.com/aiguardian/remediator/internal/gitops"
	"github.com/aiguardian/remediator/internal/ledger"
	"github.com/aiguardian/remediator/internal/notify"
	"github.com/aiguardian/remediator/internal/scm"
	"github.com/aiguardian/remediator/internal/workspace"
	"github.com/aiguardian/remediator/models"
)

// GitManager is the slice of gitops.Manager the engine drives.
type GitManager interface {
	Path() string
	Branch() string
	SetBranch(branch string)
	ResolveDefaultBranch(ctx context.Context) (string, error)
	Clone(ctx context.Context) error
	CurrentBranch() (string, error)
	Diff(ctx context.Context) (string, error)
	CommitAndPush(ctx context.Context, branchName, message string) error
	Cleanup()
}

// ProviderResolver yields an SCM provider for a platform and host.
// Satisfied by scm.Registry.
type ProviderResolver interface {
	For(platform, host, token string) (scm.Provider, error)
}

// Notifier delivers best-effort milestone notifications.
// Satisfied by notify.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, evt notify.Event)
}

// Engine runs remediations. Safe for concurrent use; each run carries
// its own state.
type Engine struct {
	cfg       *config.Config
	ledger    *ledger.Ledger
	providers ProviderResolver
	agent     bridge.Solutionizer
	notifier  Notifier

	// newGit is swappable for tests.
	newGit func(remoteURL, branch, token, path string) GitManager
}

// New assembles an Engine from its collaborators.
func New(cfg *config.Config, lg *ledger.Ledger, providers ProviderResolver, agent bridge.Solutionizer, notifier Notifier) *Engine {
	return &Engine{
		cfg:       cfg,
		ledger:    lg,
		providers: providers,
		agent:     agent,
		notifier:  notifier,
		newGit: func(remoteURL, branch, token, path string) GitManager {
			return gitops.New(remoteURL, branch, token, path)
		},
	}
}

// run holds the per-request state shared by the flow methods.
type run struct {
	kind     models.TargetKind
	req      models.FixRequest
	target   models.Target
	cloneURL string
	host     string
	git      GitManager
}

// newRun resolves the request into a workspace and git manager.
// The workspace path is derived only from request fields so generate,
// followup, and apply for the same remediation land in the same clone.
func (e *Engine) newRun(kind models.TargetKind, req models.FixRequest) (*run, error) {
	if err := req.Validate(kind); err != nil {
		return nil, err
	}

	cloneURL, err := req.Repo().CloneURL()
	if err != nil {
		return nil, err
	}
	_, host, err := scm.DetectPlatform(cloneURL)
	if err != nil {
		return nil, err
	}

	target := req.Target(kind)
	ws := workspace.Resolve(e.cfg.Workspace.Root, models.RepoName(cloneURL),
		cloneURL, req.VulnerabilityID, req.Repository, req.Branch, target.Slug(), req.UserEmail)

	return &run{
		kind:     kind,
		req:      req,
		target:   target,
		cloneURL: cloneURL,
		host:     host,
		git:      e.newGit(cloneURL, req.Branch, req.Token, ws),
	}, nil
}

// eventPayload reshapes an agent event into the streamed wire form.
func eventPayload(ev bridge.Event) map[string]interface{} {
	switch ev.Type {
	case "content":
		return map[string]interface{}{"type": "content", "content": ev.Content}
	case "system":
		return map[string]interface{}{"type": "system", "subtype": ev.Subtype, "data": ev.Data}
	case "result":
		return map[string]interface{}{
			"type":        "result",
			"cost_usd":    ev.CostUSD,
			"duration_ms": ev.DurationMS,
			"num_turns":   ev.NumTurns,
			"session_id":  ev.SessionID,
			"is_error":    ev.IsError,
		}
	default:
		return map[string]interface{}{"type": ev.Type}
	}
}

func prTitle(t models.Target) string {
	return fmt.Sprintf("fix: %s", t.Slug())
}

func prBody(t models.Target) string {
	if t.Kind == models.TargetSAST {
		return fmt.Sprintf(`### Pull Request - SAST Fix

- Rule: %s
- File: %s
- Line: %d
`, t.Rule, t.FilePath, t.LineNumber)
	}
	return fmt.Sprintf(`### Pull Request - CVE Fix

- CVE ID: %s
- Package: %s
`, t.CVEID, t.Package)
}
