// Package bridge drives the external fix-generating agent as a
// subprocess and turns its streamed output into typed events.
package bridge

import "context"

// Event is one message from the agent stream. Type selects which
// fields are meaningful.
type Event struct {
	// Type is "content", "system", or "result".
	Type string

	// Content carries assistant text (Type == "content").
	Content string

	// Subtype and Data carry agent lifecycle messages (Type == "system").
	Subtype string
	Data    map[string]interface{}

	// Result fields (Type == "result"). SessionID lets a follow-up
	// request resume the same conversation.
	CostUSD    float64
	DurationMS int64
	NumTurns   int
	SessionID  string
	IsError    bool
}

// Request describes one agent turn.
type Request struct {
	// Workspace is the repository clone the agent operates in.
	Workspace string

	// Prompt is the user-level message for this turn.
	Prompt string

	// SystemPrompt frames the agent's role. Ignored on resumed turns
	// by some agents but always passed for consistency.
	SystemPrompt string

	// SessionID resumes an earlier conversation when non-empty.
	SessionID string
}

// Solutionizer runs one agent turn and streams its events. The event
// channel is closed when the turn ends; the error channel then yields
// exactly one value (nil on success).
type Solutionizer interface {
	Solutionize(ctx context.Context, req Request) (<-chan Event, <-chan error)
}
