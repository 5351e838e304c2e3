// Package notify decouples state transitions from outbound delivery. A
// transition enqueues an intent on the outbox and commits immediately; the
// worker drains the outbox and reports delivery back through a callback.
package notify

import "context"

// Channel selects a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Dispatcher is the external delivery collaborator. Implementations may fail;
// the core treats delivery as best-effort and never rolls back state on error.
type Dispatcher interface {
	Send(ctx context.Context, channel Channel, recipient, message string) error
}
