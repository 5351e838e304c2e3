// Package handler exposes host registration, approval, and session
// endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	hostservice "securevms/internal/host/service"

	"securevms/internal/host/models"
	"securevms/internal/http/shared"
	"securevms/internal/token"
	"securevms/internal/token/revocation"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/requestcontext"
)

// Service defines the host operations the transport needs.
type Service interface {
	Register(ctx context.Context, in hostservice.RegisterInput) (*models.Host, error)
	Approve(ctx context.Context, hostID domain.HostID, approvedBy, credential string) (*models.Host, error)
	Deny(ctx context.Context, hostID domain.HostID) error
	Deactivate(ctx context.Context, hostID domain.HostID) (*models.Host, error)
	Reactivate(ctx context.Context, hostID domain.HostID) (*models.Host, error)
	Authenticate(ctx context.Context, email, credential string) (*models.Host, string, error)
	Get(ctx context.Context, hostID domain.HostID) (*models.Host, error)
	List(ctx context.Context) ([]*models.Host, error)
	ListPending(ctx context.Context) ([]*models.Host, error)
}

// TokenValidator parses a session token so logout can revoke its jti.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

type Handler struct {
	logger    *slog.Logger
	hosts     Service
	validator TokenValidator
	revoked   revocation.List
	hostAuth  func(http.Handler) http.Handler
	adminAuth func(http.Handler) http.Handler
}

func New(hosts Service, logger *slog.Logger, validator TokenValidator, revoked revocation.List,
	hostAuth, adminAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:    logger,
		hosts:     hosts,
		validator: validator,
		revoked:   revoked,
		hostAuth:  hostAuth,
		adminAuth: adminAuth,
	}
}

// Register wires the host routes. Registration and login are public; the
// approval workflow is admin-only.
func (h *Handler) Register(r chi.Router) {
	r.Post("/hosts/register", h.handleRegister)
	r.Post("/hosts/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.hostAuth)
		r.Post("/hosts/logout", h.handleLogout)
		r.Get("/hosts", h.handleList)
		r.Get("/hosts/{hostID}", h.handleGet)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Get("/hosts/pending", h.handleListPending)
		r.Post("/hosts/{hostID}/approve", h.handleApprove)
		r.Post("/hosts/{hostID}/deny", h.handleDeny)
		r.Post("/hosts/{hostID}/deactivate", h.handleDeactivate)
		r.Post("/hosts/{hostID}/reactivate", h.handleReactivate)
	})
}

type registerRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Department        string `json:"department"`
	MaxVisitorsPerDay int    `json:"max_visitors_per_day"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	host, err := h.hosts.Register(ctx, hostservice.RegisterInput{
		Name:              req.Name,
		Email:             req.Email,
		Department:        req.Department,
		MaxVisitorsPerDay: req.MaxVisitorsPerDay,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "host registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, host)
}

type loginRequest struct {
	Email      string `json:"email"`
	Credential string `json:"credential"`
}

type loginResponse struct {
	Host  *models.Host `json:"host"`
	Token string       `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	host, tok, err := h.hosts.Authenticate(r.Context(), req.Email, req.Credential)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, loginResponse{Host: host, Token: tok})
}

// handleLogout revokes the presented token's jti until its natural expiry.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}
	claims, err := h.validator.Validate(raw)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if until := time.Until(claims.ExpiresAt.Time); until > 0 {
			ttl = until
		}
	}
	if err := h.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		h.logger.ErrorContext(ctx, "token revocation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type approveRequest struct {
	Credential string `json:"credential"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostID, err := domain.ParseHostID(chi.URLParam(r, "hostID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req approveRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := requestcontext.Actor(ctx)
	host, err := h.hosts.Approve(ctx, hostID, actor.Name, req.Credential)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, host)
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	hostID, err := domain.ParseHostID(chi.URLParam(r, "hostID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.hosts.Deny(r.Context(), hostID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.hosts.Deactivate)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.hosts.Reactivate)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request,
	op func(context.Context, domain.HostID) (*models.Host, error)) {
	hostID, err := domain.ParseHostID(chi.URLParam(r, "hostID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	host, err := op(r.Context(), hostID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, host)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	hostID, err := domain.ParseHostID(chi.URLParam(r, "hostID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	host, err := h.hosts.Get(r.Context(), hostID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, host)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.hosts.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, hosts)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.hosts.ListPending(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, hosts)
}
