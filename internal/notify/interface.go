package notify

import "context"

// Event represents a notification about a remediation milestone.
type Event struct {
	Type          string // "pr_opened"
	RemediationID string
	Title         string
	Body          string
	URL           string // deep link, e.g. the PR URL
	Recipient     string // requester's email when supplied with the request
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
