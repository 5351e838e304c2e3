package notify

import "context"

// Intent is one pending outbound message. OnDelivered runs only after the
// dispatcher confirms success, which is how "sent" flags on domain records get
// flipped without delivery gating the originating transition.
type Intent struct {
	Channel   Channel
	Recipient string
	Message   string

	// OnDelivered, if set, is invoked by the worker after a successful send.
	// It must be safe to call from the worker goroutine.
	OnDelivered func(ctx context.Context)
}

// Outbox is a bounded queue of intents. Enqueue never blocks the caller: when
// the buffer is full the intent is dropped and reported, because a slow
// notifier must not stall check-in processing.
type Outbox struct {
	queue   chan Intent
	dropped func(Intent)
}

// NewOutbox creates an outbox with the given buffer size. dropped may be nil.
func NewOutbox(size int, dropped func(Intent)) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{queue: make(chan Intent, size), dropped: dropped}
}

// Enqueue adds an intent for asynchronous delivery.
func (o *Outbox) Enqueue(intent Intent) {
	select {
	case o.queue <- intent:
	default:
		if o.dropped != nil {
			o.dropped(intent)
		}
	}
}

// Drain exposes the receive side to the worker.
func (o *Outbox) Drain() <-chan Intent { return o.queue }
