// Package handler exposes the audit trail, read-only by construction.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"securevms/internal/audit"
	"securevms/internal/http/shared"
)

// Reader defines the query surface over the audit log. There is no write
// path through this handler.
type Reader interface {
	List(ctx context.Context) ([]audit.Entry, error)
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

type Handler struct {
	logger    *slog.Logger
	trail     Reader
	adminAuth func(http.Handler) http.Handler
}

func New(trail Reader, logger *slog.Logger, adminAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, trail: trail, adminAuth: adminAuth}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Get("/audit", h.handleQuery)
	})
}

// handleQuery returns entries most recent first. Filters come from query
// parameters; all are optional and combine as AND.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Text:     q.Get("q"),
		Action:   audit.Action(q.Get("action")),
		Severity: audit.Severity(q.Get("severity")),
		Category: audit.Category(q.Get("category")),
	}
	var (
		entries []audit.Entry
		err     error
	)
	if filter == (audit.Filter{}) {
		entries, err = h.trail.List(r.Context())
	} else {
		entries, err = h.trail.Query(r.Context(), filter)
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}
