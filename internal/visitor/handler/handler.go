// Package handler exposes the check-in lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"securevms/internal/http/shared"
	"securevms/internal/platform/metrics"
	"securevms/internal/visitor/models"
	"securevms/internal/visitor/service"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/requestcontext"
)

// Service defines the check-in operations the transport needs.
type Service interface {
	CreateCheckIn(ctx context.Context, in service.CreateCheckInInput) (*models.Visitor, *models.CheckIn, error)
	Transition(ctx context.Context, visitorID domain.VisitorID, checkInID domain.CheckInID, tr models.Transition) (*models.Visitor, *models.CheckIn, error)
	Blacklist(ctx context.Context, visitorID domain.VisitorID, reason string) (*models.Visitor, error)
	Unblacklist(ctx context.Context, visitorID domain.VisitorID) (*models.Visitor, error)
	Get(ctx context.Context, visitorID domain.VisitorID) (*models.Visitor, error)
	ListVisitors(ctx context.Context) ([]*models.Visitor, error)
	PendingQueue(ctx context.Context) ([]service.QueueEntry, error)
	PriorityQueue(ctx context.Context) ([]service.QueueEntry, error)
	ActiveVisitors(ctx context.Context) ([]service.BadgeRecord, error)
	History(ctx context.Context) ([]service.BadgeRecord, error)
	FindByBadge(ctx context.Context, badgeNumber string) (*service.BadgeRecord, error)
	Badge(ctx context.Context, visitorID domain.VisitorID, checkInID domain.CheckInID) (*service.BadgeRecord, error)
}

type Handler struct {
	logger    *slog.Logger
	visits    Service
	metrics   *metrics.Metrics
	hostAuth  func(http.Handler) http.Handler
	adminAuth func(http.Handler) http.Handler
}

func New(visits Service, logger *slog.Logger, m *metrics.Metrics,
	hostAuth, adminAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:    logger,
		visits:    visits,
		metrics:   m,
		hostAuth:  hostAuth,
		adminAuth: adminAuth,
	}
}

// Register wires the check-in routes. Creation and badge lookup run
// unauthenticated for the kiosk; transitions need a host session; blacklist
// management needs the admin token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/checkins", h.handleCreate)
	r.Get("/badges/{badge}", h.handleBadgeLookup)

	r.Group(func(r chi.Router) {
		r.Use(h.hostAuth)
		r.Post("/visitors/{visitorID}/checkins/{checkInID}/approve", h.handleApprove)
		r.Post("/visitors/{visitorID}/checkins/{checkInID}/deny", h.handleDeny)
		r.Post("/visitors/{visitorID}/checkins/{checkInID}/cancel", h.handleCancel)
		r.Post("/visitors/{visitorID}/checkins/{checkInID}/checkout", h.handleCheckOut)
		r.Get("/visitors/{visitorID}/checkins/{checkInID}/badge", h.handleBadge)
		r.Get("/visitors", h.handleList)
		r.Get("/visitors/{visitorID}", h.handleGet)
		r.Get("/checkins/pending", h.handlePendingQueue)
		r.Get("/checkins/priority", h.handlePriorityQueue)
		r.Get("/checkins/active", h.handleActive)
		r.Get("/checkins/history", h.handleHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Post("/visitors/{visitorID}/blacklist", h.handleBlacklist)
		r.Post("/visitors/{visitorID}/unblacklist", h.handleUnblacklist)
	})
}

type createCheckInRequest struct {
	Name              string               `json:"name"`
	Phone             string               `json:"phone"`
	Email             string               `json:"email"`
	Company           string               `json:"company"`
	PhotoURL          string               `json:"photo_url"`
	GovernmentID      *models.GovernmentID `json:"government_id"`
	HostID            string               `json:"host_id"`
	Purpose           string               `json:"purpose"`
	EstimatedWaitTime int                  `json:"estimated_wait_time"`
	OfficerID         string               `json:"security_officer_id"`
	OfficerName       string               `json:"security_officer_name"`
	PreApprovalID     string               `json:"pre_approval_id"`
}

type checkInResponse struct {
	Visitor *models.Visitor `json:"visitor"`
	CheckIn *models.CheckIn `json:"check_in"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createCheckInRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	hostID, err := domain.ParseHostID(req.HostID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	in := service.CreateCheckInInput{
		Name:                req.Name,
		Phone:               req.Phone,
		Email:               req.Email,
		Company:             req.Company,
		PhotoURL:            req.PhotoURL,
		GovernmentID:        req.GovernmentID,
		HostID:              hostID,
		Purpose:             req.Purpose,
		EstimatedWaitTime:   req.EstimatedWaitTime,
		SecurityOfficerID:   req.OfficerID,
		SecurityOfficerName: req.OfficerName,
	}
	if req.PreApprovalID != "" {
		paID, err := domain.ParsePreApprovalID(req.PreApprovalID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		in.PreApprovalID = &paID
	}
	v, ci, err := h.visits.CreateCheckIn(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "check-in rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CheckInsCreated.Inc()
	}
	shared.WriteJSON(w, http.StatusCreated, checkInResponse{Visitor: v, CheckIn: ci})
}

type denyRequest struct {
	Reason string `json:"reason"`
}

type blacklistRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Actor(r.Context())
	h.transition(w, r, models.Approve{By: actor.Name})
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	var req denyRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := requestcontext.Actor(r.Context())
	h.transition(w, r, models.Deny{By: actor.Name, Reason: req.Reason})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.Cancel{})
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.CheckOut{})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, tr models.Transition) {
	ctx := r.Context()
	visitorID, err := domain.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	checkInID, err := domain.ParseCheckInID(chi.URLParam(r, "checkInID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	v, ci, err := h.visits.Transition(ctx, visitorID, checkInID, tr)
	if err != nil {
		h.logger.WarnContext(ctx, "transition rejected",
			"request_id", requestcontext.RequestID(ctx),
			"target", string(tr.Target()),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		switch tr.(type) {
		case models.Approve:
			h.metrics.CheckInsApproved.Inc()
		case models.Deny:
			h.metrics.CheckInsDenied.Inc()
		}
	}
	shared.WriteJSON(w, http.StatusOK, checkInResponse{Visitor: v, CheckIn: ci})
}

func (h *Handler) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitorID, err := domain.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req blacklistRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	v, err := h.visits.Blacklist(ctx, visitorID, req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUnblacklist(w http.ResponseWriter, r *http.Request) {
	visitorID, err := domain.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	v, err := h.visits.Unblacklist(r.Context(), visitorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	visitorID, err := domain.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	v, err := h.visits.Get(r.Context(), visitorID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.visits.ListVisitors(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, visitors)
}

type queueEntryResponse struct {
	Visitor     *models.Visitor `json:"visitor"`
	CheckIn     *models.CheckIn `json:"check_in"`
	WaitMinutes int             `json:"wait_minutes"`
	Priority    string          `json:"priority"`
	OverdueWait bool            `json:"overdue_wait"`
}

func (h *Handler) handlePendingQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.visits.PendingQueue(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toQueueResponse(entries))
}

func (h *Handler) handlePriorityQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.visits.PriorityQueue(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toQueueResponse(entries))
}

func toQueueResponse(entries []service.QueueEntry) []queueEntryResponse {
	out := make([]queueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, queueEntryResponse{
			Visitor:     e.Visitor,
			CheckIn:     e.CheckIn,
			WaitMinutes: int(e.WaitTime.Minutes()),
			Priority:    e.Priority,
			OverdueWait: e.OverdueWait,
		})
	}
	return out
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	records, err := h.visits.ActiveVisitors(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toBadgeResponse(records))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.visits.History(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toBadgeResponse(records))
}

type badgeResponse struct {
	Visitor *models.Visitor `json:"visitor"`
	CheckIn *models.CheckIn `json:"check_in"`
}

func toBadgeResponse(records []service.BadgeRecord) []badgeResponse {
	out := make([]badgeResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, badgeResponse{Visitor: rec.Visitor, CheckIn: rec.CheckIn})
	}
	return out
}

func (h *Handler) handleBadge(w http.ResponseWriter, r *http.Request) {
	visitorID, err := domain.ParseVisitorID(chi.URLParam(r, "visitorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	checkInID, err := domain.ParseCheckInID(chi.URLParam(r, "checkInID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	rec, err := h.visits.Badge(r.Context(), visitorID, checkInID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, badgeResponse{Visitor: rec.Visitor, CheckIn: rec.CheckIn})
}

func (h *Handler) handleBadgeLookup(w http.ResponseWriter, r *http.Request) {
	badge := chi.URLParam(r, "badge")
	if badge == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "badge number is required"))
		return
	}
	rec, err := h.visits.FindByBadge(r.Context(), badge)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, badgeResponse{Visitor: rec.Visitor, CheckIn: rec.CheckIn})
}
