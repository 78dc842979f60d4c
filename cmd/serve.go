package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiguardian/remediator/internal/bridge"
	"github.com/aiguardian/remediator/internal/config"
	"github.com/aiguardian/remediator/internal/database"
	"github.com/aiguardian/remediator/internal/engine"
	"github.com/aiguardian/remediator/internal/gateway"
	"github.com/aiguardian/remediator/internal/ledger"
	"github.com/aiguardian/remediator/internal/notify"
	"github.com/aiguardian/remediator/internal/scm"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the remediator daemon",
	Long: `Starts the remediator daemon: a long-running HTTP server that accepts
remediation requests and streams fix generation live over SSE.

Quick API reference:
  GET  /health                               liveness check
  POST /api/remediation/cve/fix?mode=...     remediate a CVE finding
  POST /api/remediation/sast/fix?mode=...    remediate a SAST finding
  GET  /api/remediations                     list remediation records
  GET  /api/remediations/:id                 fetch one record
  GET  /api/remediations/:id/transcript      fetch the stored event stream
  POST /api/remediations/:id/complete        mark a raised PR as merged
  GET  /events                               SSE stream of live events

The fix endpoints take mode=generate (clone and converse with the agent)
or mode=apply (commit the generated fix and raise a PR).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 6090, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	lg := ledger.New(db)
	agent := bridge.NewClaudeCLI(cfg.Agent.Command, cfg.Agent.Model,
		time.Duration(cfg.Agent.TimeoutMinutes)*time.Minute)
	eng := engine.New(cfg, lg,
		scm.NewRegistry(cfg.Git),
		agent,
		notify.NewDispatcher(cfg.Notifications))

	fmt.Printf("remediator daemon starting\n")
	fmt.Printf("  API       : http://127.0.0.1:%d\n", cfg.Server.Port)
	fmt.Printf("  Events    : http://127.0.0.1:%d/events\n", cfg.Server.Port)
	fmt.Printf("  Database  : %s\n", cfg.Database.Driver)
	fmt.Printf("  Workspace : %s\n\n", cfg.Workspace.Root)
	fmt.Println("Press Ctrl+C to stop gracefully.")

	return gateway.New(cfg, lg, eng).Start(ctx)
}
