package audit

import (
	"context"
	"log/slog"
)

// Archiver is a secondary append-only sink, typically the Postgres archive.
type Archiver interface {
	Append(ctx context.Context, entry Entry) error
}

// Tee writes every entry to the primary store and mirrors it to an archive.
// Reads come from the primary only. An archive failure is logged and never
// fails the append: the in-process log is the source of truth for the
// running system, the archive is durable history.
type Tee struct {
	primary Store
	archive Archiver
	logger  *slog.Logger
}

func NewTee(primary Store, archive Archiver, logger *slog.Logger) *Tee {
	return &Tee{primary: primary, archive: archive, logger: logger}
}

func (t *Tee) Append(ctx context.Context, entry Entry) error {
	if err := t.primary.Append(ctx, entry); err != nil {
		return err
	}
	if err := t.archive.Append(ctx, entry); err != nil && t.logger != nil {
		t.logger.ErrorContext(ctx, "audit archive append failed",
			"entry_id", entry.ID,
			"action", string(entry.Action),
			"error", err,
		)
	}
	return nil
}

func (t *Tee) List(ctx context.Context) ([]Entry, error) {
	return t.primary.List(ctx)
}

func (t *Tee) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return t.primary.Query(ctx, filter)
}
