// Package postgres provides a durable archive for the audit trail. The
// in-memory store stays authoritative for a process run; this store exists so
// the trail survives restarts when a DSN is configured.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"securevms/internal/audit"
	"securevms/pkg/domain"
)

type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and ensures the audit_log table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The caller owns the connection lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the audit_log table if missing. Exported for the
// integration tests, which manage their own connections.
func (s *Store) EnsureSchema(ctx context.Context) error { return s.ensureSchema(ctx) }

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_log (
			id          UUID PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			action      TEXT NOT NULL,
			actor_id    TEXT NOT NULL,
			actor_name  TEXT NOT NULL,
			actor_role  TEXT NOT NULL,
			target_id   TEXT NOT NULL DEFAULT '',
			target_name TEXT NOT NULL DEFAULT '',
			details     TEXT NOT NULL,
			ip_address  TEXT NOT NULL DEFAULT '',
			severity    TEXT NOT NULL,
			category    TEXT NOT NULL,
			request_id  TEXT NOT NULL DEFAULT '',
			seq         BIGSERIAL
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit_log schema: %w", err)
	}
	return nil
}

// Append inserts one entry. The table carries no UPDATE or DELETE path.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	const query = `
		INSERT INTO audit_log
			(id, ts, action, actor_id, actor_name, actor_role, target_id,
			 target_name, details, ip_address, severity, category, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		string(entry.Action),
		entry.ActorID,
		entry.ActorName,
		string(entry.ActorRole),
		entry.TargetID,
		entry.TargetName,
		entry.Details,
		entry.IPAddress,
		string(entry.Severity),
		string(entry.Category),
		entry.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]audit.Entry, error) {
	return s.query(ctx, audit.Filter{})
}

func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	return s.query(ctx, filter)
}

func (s *Store) query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Action != "" {
		conds = append(conds, "action = "+arg(string(filter.Action)))
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = "+arg(string(filter.Severity)))
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(string(filter.Category)))
	}
	if filter.Text != "" {
		p := arg("%" + strings.ToLower(filter.Text) + "%")
		conds = append(conds, fmt.Sprintf(
			"(lower(actor_name) LIKE %s OR lower(target_name) LIKE %s OR lower(details) LIKE %s)", p, p, p))
	}

	query := `
		SELECT id, ts, action, actor_id, actor_name, actor_role, target_id,
		       target_name, details, ip_address, severity, category, request_id
		FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_log: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e                audit.Entry
			action, sev, cat string
			role             string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.ActorID, &e.ActorName,
			&role, &e.TargetID, &e.TargetName, &e.Details, &e.IPAddress,
			&sev, &cat, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.ActorRole = domain.Role(role)
		e.Severity = audit.Severity(sev)
		e.Category = audit.Category(cat)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
