// Package handler exposes the system policy endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"securevms/internal/http/shared"
	"securevms/internal/rules"
	"securevms/pkg/requestcontext"
)

// Service defines the policy operations the transport needs.
type Service interface {
	Current() rules.Rules
	Update(ctx context.Context, patch rules.Patch) (rules.Rules, error)
}

type Handler struct {
	logger    *slog.Logger
	policy    Service
	adminAuth func(http.Handler) http.Handler
}

func New(policy Service, logger *slog.Logger, adminAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, policy: policy, adminAuth: adminAuth}
}

// Register wires the policy routes. Reads are open so the kiosk can adapt
// its form; updates are admin-only.
func (h *Handler) Register(r chi.Router) {
	r.Get("/rules", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Patch("/rules", h.handleUpdate)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.policy.Current())
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch rules.Patch
	if err := shared.Decode(r, &patch); err != nil {
		shared.WriteError(w, err)
		return
	}
	updated, err := h.policy.Update(ctx, patch)
	if err != nil {
		h.logger.WarnContext(ctx, "rules update rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}
