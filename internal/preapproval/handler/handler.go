// Package handler exposes the pre-approval lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"securevms/internal/http/shared"
	"securevms/internal/platform/metrics"
	"securevms/internal/preapproval/models"
	"securevms/internal/preapproval/service"
	"securevms/pkg/domain"
	"securevms/pkg/requestcontext"
)

// Service defines the pre-approval operations the transport needs.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*models.PreApproval, error)
	Cancel(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error)
	Redeem(ctx context.Context, accessCode string) (*models.PreApproval, error)
	SendReminder(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error)
	Get(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error)
	List(ctx context.Context) ([]*models.PreApproval, error)
}

type Handler struct {
	logger       *slog.Logger
	preApprovals Service
	metrics      *metrics.Metrics
	hostAuth     func(http.Handler) http.Handler
}

func New(preApprovals Service, logger *slog.Logger, m *metrics.Metrics,
	hostAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:       logger,
		preApprovals: preApprovals,
		metrics:      m,
		hostAuth:     hostAuth,
	}
}

// Register wires the pre-approval routes. Redemption is open for the kiosk;
// everything else needs a host session.
func (h *Handler) Register(r chi.Router) {
	r.Post("/preapprovals/redeem", h.handleRedeem)

	r.Group(func(r chi.Router) {
		r.Use(h.hostAuth)
		r.Post("/preapprovals", h.handleCreate)
		r.Get("/preapprovals", h.handleList)
		r.Get("/preapprovals/{preApprovalID}", h.handleGet)
		r.Post("/preapprovals/{preApprovalID}/cancel", h.handleCancel)
		r.Post("/preapprovals/{preApprovalID}/remind", h.handleReminder)
	})
}

type createRequest struct {
	HostID        string    `json:"host_id"`
	VisitorName   string    `json:"visitor_name"`
	VisitorPhone  string    `json:"visitor_phone"`
	VisitorEmail  string    `json:"visitor_email"`
	Company       string    `json:"company"`
	Purpose       string    `json:"purpose"`
	ScheduledDate time.Time `json:"scheduled_date"`
	DurationMins  int       `json:"duration_mins"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	hostID, err := domain.ParseHostID(req.HostID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.preApprovals.Create(ctx, service.CreateInput{
		HostID:        hostID,
		VisitorName:   req.VisitorName,
		VisitorPhone:  req.VisitorPhone,
		VisitorEmail:  req.VisitorEmail,
		Company:       req.Company,
		Purpose:       req.Purpose,
		ScheduledDate: req.ScheduledDate,
		Duration:      time.Duration(req.DurationMins) * time.Minute,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "pre-approval rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PreApprovalsCreated.Inc()
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

type redeemRequest struct {
	AccessCode string `json:"access_code"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.preApprovals.Redeem(r.Context(), req.AccessCode)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePreApprovalID(chi.URLParam(r, "preApprovalID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.preApprovals.Cancel(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleReminder(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePreApprovalID(chi.URLParam(r, "preApprovalID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.preApprovals.SendReminder(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParsePreApprovalID(chi.URLParam(r, "preApprovalID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.preApprovals.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.preApprovals.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, all)
}
