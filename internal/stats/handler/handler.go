// Package handler exposes the dashboard statistics and activity reports.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"securevms/internal/http/shared"
	"securevms/internal/stats"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/requestcontext"
)

// Aggregator defines the read views the transport needs.
type Aggregator interface {
	Snapshot(ctx context.Context) (stats.Snapshot, error)
	Report(ctx context.Context, start, end time.Time) (stats.Report, error)
}

type Handler struct {
	logger   *slog.Logger
	stats    Aggregator
	hostAuth func(http.Handler) http.Handler
}

func New(stats Aggregator, logger *slog.Logger, hostAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, stats: stats, hostAuth: hostAuth}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.hostAuth)
		r.Get("/stats", h.handleSnapshot)
		r.Get("/reports", h.handleReport)
	})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.stats.Snapshot(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

// handleReport accepts start and end as RFC 3339 or YYYY-MM-DD query
// parameters. A missing range defaults to the last 7 days.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	start := now.AddDate(0, 0, -7)
	end := now

	var err error
	if raw := r.URL.Query().Get("start"); raw != "" {
		if start, err = parseDay(raw); err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if end, err = parseDay(raw); err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	rep, err := h.stats.Report(r.Context(), start, end)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rep)
}

func parseDay(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "invalid date "+raw)
}
