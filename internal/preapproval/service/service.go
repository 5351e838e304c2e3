// Package service implements the pre-approval lifecycle: creation with a
// policy-snapshotted expiry, access-code redemption, consumption during
// check-in approval, cancellation, and lazy expiry reconciliation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"securevms/internal/audit"
	hostmodels "securevms/internal/host/models"
	"securevms/internal/notify"
	"securevms/internal/preapproval/models"
	"securevms/internal/rules"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/platform/sentinel"
	"securevms/pkg/requestcontext"
)

// Store is the persistence boundary for pre-approvals.
type Store interface {
	Create(ctx context.Context, p *models.PreApproval) error
	FindByID(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error)
	FindByAccessCode(ctx context.Context, code string) (*models.PreApproval, error)
	List(ctx context.Context) ([]*models.PreApproval, error)
	Execute(ctx context.Context, id domain.PreApprovalID,
		validate func(*models.PreApproval) error, mutate func(*models.PreApproval)) (*models.PreApproval, error)
	ExpireBefore(ctx context.Context, now time.Time) ([]*models.PreApproval, error)
}

type HostDirectory interface {
	FindByID(ctx context.Context, id domain.HostID) (*hostmodels.Host, error)
}

type RulesSource interface {
	Current() rules.Rules
}

type Notifier interface {
	Enqueue(intent notify.Intent)
}

type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

type Service struct {
	store    Store
	hosts    HostDirectory
	policy   RulesSource
	notifier Notifier
	auditor  AuditPublisher
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func New(store Store, hosts HostDirectory, policy RulesSource, opts ...Option) *Service {
	s := &Service{store: store, hosts: hosts, policy: policy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	HostID        domain.HostID
	VisitorName   string
	VisitorPhone  string
	VisitorEmail  string
	Company       string
	Purpose       string
	ScheduledDate time.Time
	Duration      time.Duration
}

// Create issues a new pre-approval. The expiry is the scheduled date plus
// the auto-expire window in force right now; later policy changes never
// revisit already-issued records. The visitor is notified by email and SMS
// with the access code, and each sent flag flips only after its channel
// confirms delivery.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PreApproval, error) {
	now := requestcontext.Now(ctx)
	policy := s.policy.Current()

	host, err := s.hosts.FindByID(ctx, in.HostID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "host not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load host")
	}
	if !host.Visitable() {
		return nil, dErrors.New(dErrors.CodePolicyViolation,
			"host "+host.Name+" cannot issue pre-approvals")
	}

	id := domain.NewPreApprovalID()
	p, err := models.New(id, host.ID, host.Name, in.VisitorName, in.VisitorPhone, in.VisitorEmail, in.Purpose,
		in.ScheduledDate, time.Duration(policy.AutoExpirePreApprovalsAfter)*time.Hour, now)
	if err != nil {
		return nil, err
	}
	p.Company = strings.TrimSpace(in.Company)
	p.Duration = in.Duration
	p.AccessCode = AccessCode(id)
	p.QRCode = QRPayload(p.AccessCode)

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "access code collision, retry the request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pre-approval")
	}

	actor := requestcontext.Actor(ctx)
	if actor.Name == "" {
		actor = domain.Actor{ID: host.ID.String(), Name: host.Name, Role: domain.RoleHost}
	}
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionPreApprovalCreated,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   p.ID.String(),
		TargetName: p.VisitorName,
		Details: fmt.Sprintf("Pre-approval %s created for %s, scheduled %s",
			p.AccessCode, p.VisitorName, p.ScheduledDate.Format("2006-01-02 15:04")),
		Severity: audit.SeverityLow,
	})

	s.sendInvitations(ctx, p)
	return p, nil
}

// Consume redeems a pre-approval as part of a check-in approval. Legal only
// while active and before expiry; otherwise the caller's approval must not
// proceed.
func (s *Service) Consume(ctx context.Context, id domain.PreApprovalID, visitorID domain.VisitorID, badgeNumber string, now time.Time) error {
	p, err := s.store.Execute(ctx, id,
		func(p *models.PreApproval) error { return p.CanConsume(now) },
		func(p *models.PreApproval) { p.ApplyConsume(visitorID, badgeNumber, now) },
	)
	if err != nil {
		return s.wrapLookup(err)
	}
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionPreApprovalUsed,
		ActorID:    domain.SystemActor.ID,
		ActorName:  domain.SystemActor.Name,
		ActorRole:  domain.RoleSystem,
		TargetID:   p.ID.String(),
		TargetName: p.VisitorName,
		Details:    fmt.Sprintf("Pre-approval %s redeemed, badge %s", p.AccessCode, badgeNumber),
		Severity:   audit.SeverityLow,
	})
	return nil
}

// Cancel voids an active pre-approval.
func (s *Service) Cancel(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error) {
	p, err := s.store.Execute(ctx, id,
		func(p *models.PreApproval) error { return p.CanCancel() },
		func(p *models.PreApproval) { p.ApplyCancel() },
	)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	actor := requestcontext.Actor(ctx)
	if actor.Name == "" {
		actor = domain.SystemActor
	}
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionPreApprovalCancelled,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   p.ID.String(),
		TargetName: p.VisitorName,
		Details:    "Pre-approval " + p.AccessCode + " cancelled",
		Severity:   audit.SeverityLow,
	})
	return p, nil
}

// Redeem resolves an access code presented at the checkpoint. Returns the
// record only while it is still redeemable.
func (s *Service) Redeem(ctx context.Context, accessCode string) (*models.PreApproval, error) {
	code := strings.TrimSpace(accessCode)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "access code is required")
	}
	p, err := s.store.FindByAccessCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active pre-approval for that code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up access code")
	}
	now := requestcontext.Now(ctx)
	if !p.Redeemable(now) {
		return nil, dErrors.New(dErrors.CodeExpired, "pre-approval "+p.AccessCode+" has expired")
	}
	return p, nil
}

// SendReminder re-sends the invitation for a still-redeemable record.
func (s *Service) SendReminder(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	now := requestcontext.Now(ctx)
	if !p.Redeemable(now) {
		return nil, dErrors.New(dErrors.CodeExpired,
			"cannot send a reminder for a pre-approval in status "+string(p.EffectiveStatus(now)))
	}
	p, err = s.store.Execute(ctx, id,
		func(rec *models.PreApproval) error { return nil },
		func(rec *models.PreApproval) { rec.RemindersSent = append(rec.RemindersSent, now) })
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	s.sendInvitations(ctx, p)
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionPreApprovalReminder,
		ActorID:    domain.SystemActor.ID,
		ActorName:  domain.SystemActor.Name,
		ActorRole:  domain.RoleSystem,
		TargetID:   p.ID.String(),
		TargetName: p.VisitorName,
		Details:    "Reminder sent for pre-approval " + p.AccessCode,
		Severity:   audit.SeverityLow,
	})
	return p, nil
}

// Get returns one pre-approval with lazy expiry resolved.
func (s *Service) Get(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	p.Status = p.EffectiveStatus(requestcontext.Now(ctx))
	return p, nil
}

// List returns every pre-approval with lazy expiry resolved for display.
func (s *Service) List(ctx context.Context) ([]*models.PreApproval, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pre-approvals")
	}
	now := requestcontext.Now(ctx)
	for _, p := range all {
		p.Status = p.EffectiveStatus(now)
	}
	return all, nil
}

// ReconcileExpired flips visibly-expired records and audits each flip. Run
// periodically; redemption never depends on it.
func (s *Service) ReconcileExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	flipped, err := s.store.ExpireBefore(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "expiry reconciliation failed")
	}
	for _, p := range flipped {
		s.emit(ctx, audit.Entry{
			Action:     audit.ActionPreApprovalExpired,
			ActorID:    domain.SystemActor.ID,
			ActorName:  domain.SystemActor.Name,
			ActorRole:  domain.RoleSystem,
			TargetID:   p.ID.String(),
			TargetName: p.VisitorName,
			Details:    "Pre-approval " + p.AccessCode + " expired",
			Severity:   audit.SeverityLow,
		})
	}
	return len(flipped), nil
}

// sendInvitations enqueues the email and SMS carrying the access code. Each
// channel's sent flag flips only from its delivery confirmation; the store
// update runs on the worker goroutine via Execute.
func (s *Service) sendInvitations(ctx context.Context, p *models.PreApproval) {
	if s.notifier == nil {
		return
	}
	id := p.ID
	markSent := func(mutate func(*models.PreApproval)) func(context.Context) {
		return func(cbCtx context.Context) {
			if _, err := s.store.Execute(cbCtx, id, func(*models.PreApproval) error { return nil }, mutate); err != nil && s.logger != nil {
				s.logger.ErrorContext(cbCtx, "failed to record delivery flag", "pre_approval_id", id.String(), "error", err)
			}
		}
	}
	body := fmt.Sprintf("You are pre-approved to visit %s on %s. Access code: %s. Valid until %s.",
		p.HostName, p.ScheduledDate.Format("Mon, 02 Jan 2006 15:04"), p.AccessCode,
		p.ExpiresAt.Format("Mon, 02 Jan 2006 15:04"))
	if p.VisitorEmail != "" {
		s.notifier.Enqueue(notify.Intent{
			Channel:     notify.ChannelEmail,
			Recipient:   p.VisitorEmail,
			Message:     body,
			OnDelivered: markSent(func(p *models.PreApproval) { p.EmailSent = true }),
		})
	}
	if p.VisitorPhone != "" {
		s.notifier.Enqueue(notify.Intent{
			Channel:     notify.ChannelSMS,
			Recipient:   p.VisitorPhone,
			Message:     fmt.Sprintf("VMS: access code %s for your visit on %s.", p.AccessCode, p.ScheduledDate.Format("Jan 2 15:04")),
			OnDelivered: markSent(func(p *models.PreApproval) { p.SmsSent = true }),
		})
	}
}

func (s *Service) emit(ctx context.Context, entry audit.Entry) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(entry.Action),
			"target", entry.TargetName, "log_type", "audit")
	}
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, entry); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", string(entry.Action), "error", err)
	}
}

func (s *Service) wrapLookup(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "pre-approval not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "pre-approval store failure")
}
