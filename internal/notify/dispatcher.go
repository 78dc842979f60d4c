package notify

import (
	"context"
	"log/slog"

	"github.com/aiguardian/remediator/internal/config"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	enabled  bool
	channels []Channel
}

// NewDispatcher creates a Dispatcher from the given config.
// Only channels with IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{enabled: cfg.Enabled}

	channels := []Channel{
		NewEmail(cfg.Email),
	}
	for _, ch := range channels {
		if ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// Notify sends evt to all configured channels. Notification delivery
// never fails a remediation; errors are logged and dropped.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	if !d.enabled {
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			slog.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
		}
	}
}
