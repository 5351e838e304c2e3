package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher writes outbound messages to the structured log instead of a
// real gateway. It is the default in development and always succeeds.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, channel Channel, recipient, message string) error {
	d.logger.InfoContext(ctx, "outbound notification",
		"channel", string(channel),
		"recipient", recipient,
		"message", message,
	)
	return nil
}
