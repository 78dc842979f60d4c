package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// agent tool allowlist. Deliberately excludes anything that could
// reach version control; the engine owns all git operations.
var allowedTools = []string{"Read", "Write", "Edit", "Bash", "WebSearch", "WebFetch"}

// ClaudeCLI runs the claude command-line agent in stream-json mode.
type ClaudeCLI struct {
	command string
	model   string
	timeout time.Duration
}

// NewClaudeCLI builds a ClaudeCLI. command defaults to "claude" and
// timeout bounds one full agent turn.
func NewClaudeCLI(command, model string, timeout time.Duration) *ClaudeCLI {
	if command == "" {
		command = "claude"
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &ClaudeCLI{command: command, model: model, timeout: timeout}
}

// Solutionize starts one agent turn in req.Workspace and streams its
// events. The subprocess is killed when ctx is cancelled or the turn
// exceeds the configured timeout.
func (c *ClaudeCLI) Solutionize(ctx context.Context, req Request) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		errs <- c.run(ctx, req, events)
	}()

	return events, errs
}

func (c *ClaudeCLI) run(ctx context.Context, req Request, events chan<- Event) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"-p", req.Prompt,
		"--verbose",
		"--output-format", "stream-json",
		"--allowedTools", strings.Join(allowedTools, ","),
		"--permission-mode", "acceptEdits",
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Dir = req.Workspace

	if devNull, err := os.Open(os.DevNull); err == nil {
		cmd.Stdin = devNull
		defer devNull.Close()
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	slog.Debug("Starting agent turn",
		"command", c.command,
		"workspace", req.Workspace,
		"resume", req.SessionID != "",
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting agent %s: %w", c.command, err)
	}

	scanner := bufio.NewScanner(stdout)
	// Agent turns can emit very large single lines (full file contents
	// inside tool results).
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lines := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines++
		for _, ev := range parseStreamLine(line) {
			select {
			case events <- ev:
			case <-ctx.Done():
				cmd.Process.Kill()
				cmd.Wait()
				return fmt.Errorf("agent turn cancelled: %w", ctx.Err())
			}
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("agent turn exceeded %s timeout", c.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("agent %s failed: %w: %s", c.command, err, msg)
		}
		return fmt.Errorf("agent %s failed: %w", c.command, err)
	}
	if scanErr != nil {
		return fmt.Errorf("reading agent output: %w", scanErr)
	}

	slog.Debug("Agent turn finished", "lines", lines)
	return nil
}

// streamLine is the subset of the agent's stream-json protocol the
// engine cares about.
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`

	Message *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
			Name string `json:"name"`
		} `json:"content"`
	} `json:"message"`

	Data map[string]interface{} `json:"data"`

	TotalCostUSD float64 `json:"total_cost_usd"`
	DurationMS   int64   `json:"duration_ms"`
	NumTurns     int     `json:"num_turns"`
	SessionID    string  `json:"session_id"`
	IsError      bool    `json:"is_error"`
}

// parseStreamLine converts one stream-json line into zero or more
// events. Unknown or malformed lines are dropped.
func parseStreamLine(line string) []Event {
	var sl streamLine
	if err := json.Unmarshal([]byte(line), &sl); err != nil {
		return nil
	}

	switch sl.Type {
	case "assistant":
		if sl.Message == nil {
			return nil
		}
		var out []Event
		for _, block := range sl.Message.Content {
			if block.Type == "text" && block.Text != "" {
				out = append(out, Event{Type: "content", Content: block.Text})
			}
		}
		return out

	case "system":
		data := sl.Data
		if data == nil {
			data = map[string]interface{}{}
		}
		return []Event{{Type: "system", Subtype: sl.Subtype, Data: data}}

	case "result":
		return []Event{{
			Type:       "result",
			CostUSD:    sl.TotalCostUSD,
			DurationMS: sl.DurationMS,
			NumTurns:   sl.NumTurns,
			SessionID:  sl.SessionID,
			IsError:    sl.IsError,
		}}
	}
	return nil
}
