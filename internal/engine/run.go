package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aiguardian/remediator/internal/bridge"
	"github.com/aiguardian/remediator/internal/gitops"
	"github.com/aiguardian/remediator/internal/ledger"
	"github.com/aiguardian/remediator/internal/notify"
	"github.com/aiguardian/remediator/internal/scm"
	"github.com/aiguardian/remediator/internal/stream"
	"github.com/aiguardian/remediator/internal/workspace"
	"github.com/aiguardian/remediator/models"
)

// Fix executes one remediation request, emitting each SSE frame
// through emit as it happens. Failures are reported on the stream as
// error events; the done event is always the last frame, and the full
// transcript is persisted even when the run fails or the client
// disconnects.
func (e *Engine) Fix(ctx context.Context, kind models.TargetKind, mode models.FixMode, req models.FixRequest, emit func(frame string)) {
	s := stream.New()

	r, err := e.newRun(kind, req)
	if err != nil {
		emit(s.Emit("error", err.Error()))
		emit(s.Emit("done", ""))
		return
	}

	switch mode {
	case models.ModeApply:
		err = e.apply(ctx, r, s, emit)
	default:
		err = e.generate(ctx, r, s, emit)
	}
	if err != nil {
		slog.Error("Remediation run failed",
			"kind", kind, "mode", mode, "repo", r.cloneURL, "error", err)
		emit(s.Emit("error", err.Error()))
	}

	emit(s.Emit("done", ""))

	// The transcript must survive client disconnects.
	saveCtx := context.WithoutCancel(ctx)
	err = e.ledger.Save(saveCtx, req.ID, req.VulnerabilityID, nil, ledger.Fields{Transcript: s.All()})
	if err != nil {
		slog.Error("Failed to persist transcript", "id", req.ID, "error", err)
	}
}

// generate clones (on start_generate), runs one agent turn, and
// records whether the turn produced a diff.
func (e *Engine) generate(ctx context.Context, r *run, s *stream.Streamer, emit func(string)) error {
	if r.req.MessageType == models.MessageStartGenerate {
		emit(s.Emit("debug", fmt.Sprintf("The repo %s is about to be cloned", r.cloneURL)))

		if r.req.Branch == "" {
			branch, err := r.git.ResolveDefaultBranch(ctx)
			if err != nil {
				// The clone falls back to the remote's HEAD on its own.
				slog.Warn("Could not resolve default branch", "repo", r.cloneURL, "error", err)
			} else {
				r.git.SetBranch(branch)
			}
		}

		if err := r.git.Clone(ctx); err != nil {
			return fmt.Errorf("the repository could not be cloned, try checking whether the token entered has the right permissions: %w", err)
		}
		emit(s.Emit("debug", fmt.Sprintf("The repo %s has been cloned", r.cloneURL)))

		// The record exists only once a workspace does; a failed clone
		// leaves no trace in the ledger.
		status := models.StatusStarted
		err := e.ledger.Save(ctx, r.req.ID, r.req.VulnerabilityID, &status, ledger.Fields{
			PRLink:    ledger.Ptr(""),
			FixBranch: ledger.Ptr(""),
		})
		if err != nil {
			return err
		}
	}

	if !workspace.Exists(r.git.Path()) {
		return fmt.Errorf("the cloned directory could not be found for repository %s", r.cloneURL)
	}
	if err := workspace.Touch(r.git.Path()); err != nil {
		slog.Warn("Could not touch workspace", "path", r.git.Path(), "error", err)
	}

	// Follow-up requests may omit the branch; the clone is checked out
	// on whatever branch the first run resolved, so diff against that.
	if r.req.Branch == "" && r.req.MessageType != models.MessageStartGenerate {
		current, err := r.git.CurrentBranch()
		if err != nil {
			return fmt.Errorf("resolving diff branch: %w", err)
		}
		r.git.SetBranch(current)
	}

	prompt := r.req.UserMessage
	if r.req.MessageType == models.MessageStartGenerate {
		prompt = bridge.InitialPrompt(r.target)
	}

	events, errs := e.agent.Solutionize(ctx, bridge.Request{
		Workspace:    r.git.Path(),
		Prompt:       prompt,
		SystemPrompt: bridge.SystemPrompt(r.target),
		SessionID:    r.req.SessionID,
	})
	for ev := range events {
		emit(s.EmitRaw(eventPayload(ev)))
	}
	if err := <-errs; err != nil {
		return err
	}

	diff, err := r.git.Diff(ctx)
	if err != nil {
		return fmt.Errorf("calculating diff: %w", err)
	}
	if diff != "" {
		emit(s.Emit("diff", diff))
	}

	status := models.StatusFixPending
	if diff != "" {
		status = models.StatusFixGenerated
	}
	return e.ledger.Save(ctx, r.req.ID, r.req.VulnerabilityID, &status, ledger.Fields{})
}

// apply publishes the generated fix: commit to a fresh fix branch,
// push, raise the PR, and record PR_RAISED. The workspace is removed
// afterwards regardless of outcome.
func (e *Engine) apply(ctx context.Context, r *run, s *stream.Streamer, emit func(string)) error {
	defer r.git.Cleanup()

	emit(s.Emit("debug", "Starting the process of creating a PR"))

	if !workspace.Exists(r.git.Path()) {
		return fmt.Errorf("the cloned directory could not be found for repository %s", r.cloneURL)
	}
	if err := workspace.Touch(r.git.Path()); err != nil {
		slog.Warn("Could not touch workspace", "path", r.git.Path(), "error", err)
	}

	baseBranch := r.req.Branch
	if baseBranch == "" {
		current, err := r.git.CurrentBranch()
		if err != nil {
			return fmt.Errorf("resolving base branch: %w", err)
		}
		baseBranch = current
	}

	fixBranch := gitops.FixBranchName(r.target.Slug())
	if err := r.git.CommitAndPush(ctx, fixBranch, "fix: "+r.target.Slug()); err != nil {
		return err
	}

	provider, err := e.providers.For(r.req.Platform, r.host, r.req.Token)
	if err != nil {
		return err
	}

	owner, repo := models.OwnerRepo(r.cloneURL)
	pr, err := provider.CreatePullRequest(ctx, scm.PROptions{
		Owner:      owner,
		Repo:       repo,
		Title:      prTitle(r.target),
		Body:       prBody(r.target),
		HeadBranch: fixBranch,
		BaseBranch: baseBranch,
	})
	if err != nil {
		return err
	}

	emit(s.Emit("debug", fmt.Sprintf("PR %s has been created.", pr.URL)))

	status := models.StatusPRRaised
	err = e.ledger.Save(ctx, r.req.ID, r.req.VulnerabilityID, &status, ledger.Fields{
		PRLink:    ledger.Ptr(pr.URL),
		FixBranch: ledger.Ptr(fixBranch),
	})
	if err != nil {
		return err
	}

	if e.notifier != nil {
		e.notifier.Notify(ctx, notify.Event{
			Type:          "pr_opened",
			RemediationID: r.req.ID,
			Title:         prTitle(r.target),
			Body:          fmt.Sprintf("A fix for %s is ready for review.", r.target.Slug()),
			URL:           pr.URL,
			Recipient:     r.req.UserEmail,
		})
	}
	return nil
}
