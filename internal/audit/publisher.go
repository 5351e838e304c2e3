package audit

import (
	"context"

	"github.com/google/uuid"

	"securevms/pkg/requestcontext"
)

// Store is the persistence boundary for the trail. Implementations must be
// append-only: nothing ever mutates or removes an entry.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}

// Publisher captures structured audit entries. It assigns identity and
// timestamp so emitters only describe what happened.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit appends one entry to the trail. The timestamp comes from the
// request-scoped clock so a batched multi-field update carries one instant.
// Category is derived from the action when the emitter leaves it empty.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.Category == "" {
		entry.Category = CategoryOf(entry.Action)
	}
	if entry.Severity == "" {
		entry.Severity = SeverityLow
	}
	if entry.IPAddress == "" {
		entry.IPAddress = requestcontext.ClientIP(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, entry)
}

// List returns the trail most-recent-first. The sort is presentational; the
// store keeps insertion order.
func (p *Publisher) List(ctx context.Context) ([]Entry, error) {
	entries, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	reverse(entries)
	return entries, nil
}

// Query filters the trail without mutating it, most-recent-first.
func (p *Publisher) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := p.store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	reverse(entries)
	return entries, nil
}

func reverse(entries []Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
