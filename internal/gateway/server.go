package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aiguardian/remediator/internal/config"
	"github.com/aiguardian/remediator/internal/ledger"
	"github.com/aiguardian/remediator/internal/workspace"
	"github.com/aiguardian/remediator/models"
)

// Fixer runs a single remediation request, emitting SSE frames through
// emit. Satisfied by engine.Engine.
type Fixer interface {
	Fix(ctx context.Context, kind models.TargetKind, mode models.FixMode, req models.FixRequest, emit func(frame string))
}

// Gateway is the long-running daemon that combines:
//   - the remediation engine (driving fix runs)
//   - a cron sweeper (reclaiming expired clone workspaces)
//   - a REST + SSE HTTP server
type Gateway struct {
	cfg         *config.Config
	ledger      *ledger.Ledger
	fixer       Fixer
	broadcaster *Broadcaster
	cron        *cron.Cron
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, lg *ledger.Ledger, fixer Fixer) *Gateway {
	return &Gateway{
		cfg:         cfg,
		ledger:      lg,
		fixer:       fixer,
		broadcaster: newBroadcaster(),
		cron:        cron.New(),
	}
}

// Start runs the gateway until ctx is cancelled. It:
//  1. Starts the workspace sweeper on its cron schedule
//  2. Binds the HTTP server (blocks until shutdown)
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Server.Port
	if port == 0 {
		port = 6090
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	spec := gw.cfg.Workspace.SweepInterval
	if spec == "" {
		spec = "@every 1h"
	}
	if _, err := gw.cron.AddFunc(spec, gw.sweepWorkspaces); err != nil {
		return fmt.Errorf("scheduling workspace sweeper: %w", err)
	}
	gw.cron.Start()

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(gw),
	}

	go func() {
		<-ctx.Done()
		stopCtx := gw.cron.Stop()
		<-stopCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{
		Type:    "gateway.started",
		Payload: map[string]string{"addr": "http://" + addr},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// sweepWorkspaces removes clone workspaces that have gone untouched for
// longer than the configured TTL. Runs on the cron schedule; active runs
// refresh their workspace mtime so they are never swept.
func (gw *Gateway) sweepWorkspaces() {
	ttlHours := gw.cfg.Workspace.TTLHours
	if ttlHours <= 0 {
		ttlHours = 72
	}
	ttl := time.Duration(ttlHours) * time.Hour

	removed, err := workspace.SweepExpired(gw.cfg.Workspace.Root, ttl)
	if err != nil {
		slog.Warn("gateway: workspace sweep failed", "root", gw.cfg.Workspace.Root, "error", err)
		return
	}
	if removed > 0 {
		slog.Info("gateway: swept expired workspaces", "removed", removed, "ttl", ttl)
		gw.broadcaster.send(SSEEvent{
			Type:    "workspace.swept",
			Payload: map[string]int{"removed": removed},
		})
	}
}
