// Package service implements the check-in lifecycle: policy-gated creation,
// tagged state transitions with badge issuance, pre-approval redemption, and
// the host- and security-facing queue views.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"securevms/internal/audit"
	hostmodels "securevms/internal/host/models"
	"securevms/internal/notify"
	"securevms/internal/rules"
	"securevms/internal/visitor/models"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/platform/sentinel"
	"securevms/pkg/requestcontext"
)

// VisitorStore is the persistence boundary for visitor records.
type VisitorStore interface {
	Create(ctx context.Context, v *models.Visitor) error
	FindByID(ctx context.Context, id domain.VisitorID) (*models.Visitor, error)
	FindByPhone(ctx context.Context, phone string) (*models.Visitor, error)
	List(ctx context.Context) ([]*models.Visitor, error)
	AppendCheckIn(ctx context.Context, visitorID domain.VisitorID, checkIn models.CheckIn, now time.Time) (*models.Visitor, error)
	ExecuteCheckIn(ctx context.Context, visitorID domain.VisitorID, checkInID domain.CheckInID,
		validate func(*models.CheckIn) error, mutate func(*models.CheckIn)) (*models.Visitor, *models.CheckIn, error)
	ExecuteVisitor(ctx context.Context, visitorID domain.VisitorID,
		validate func(*models.Visitor) error, mutate func(*models.Visitor)) (*models.Visitor, error)
}

// HostDirectory resolves hosts for the visitable predicate and notification
// addressing.
type HostDirectory interface {
	FindByID(ctx context.Context, id domain.HostID) (*hostmodels.Host, error)
}

// RulesSource supplies the policy in force at decision time.
type RulesSource interface {
	Current() rules.Rules
}

// PreApprovalConsumer redeems a pre-approval as part of an approval. The
// check-in transition and the consumption commit as one logical unit: the
// service consumes first and only then applies the already-validated check-in
// mutation, so a consumption failure leaves the check-in pending.
type PreApprovalConsumer interface {
	Consume(ctx context.Context, id domain.PreApprovalID, visitorID domain.VisitorID, badgeNumber string, now time.Time) error
}

// Notifier accepts fire-and-forget delivery intents.
type Notifier interface {
	Enqueue(intent notify.Intent)
}

// AuditPublisher records check-in lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service orchestrates the check-in lifecycle.
type Service struct {
	visitors     VisitorStore
	hosts        HostDirectory
	policy       RulesSource
	preApprovals PreApprovalConsumer
	badges       *BadgeIssuer
	notifier     Notifier
	auditor      AuditPublisher
	logger       *slog.Logger
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

func WithPreApprovalConsumer(c PreApprovalConsumer) Option {
	return func(s *Service) { s.preApprovals = c }
}

func New(visitors VisitorStore, hosts HostDirectory, policy RulesSource, opts ...Option) *Service {
	s := &Service{
		visitors: visitors,
		hosts:    hosts,
		policy:   policy,
		badges:   NewBadgeIssuer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCheckInInput carries everything the checkpoint collects for one
// arrival.
type CreateCheckInInput struct {
	Name                string
	Phone               string
	Email               string
	Company             string
	PhotoURL            string
	GovernmentID        *models.GovernmentID
	HostID              domain.HostID
	Purpose             string
	EstimatedWaitTime   int
	SecurityOfficerID   string
	SecurityOfficerName string

	// PreApprovalID links the check-in to a redeemed pre-approval. Nil means
	// a walk-in, which the walk-in policy gates.
	PreApprovalID *domain.PreApprovalID
}

// CreateCheckIn validates policy, then creates or extends the visitor record
// with a pending check-in. Every policy check runs before any mutation: a
// rejected attempt leaves all collections untouched and writes no audit
// entry.
func (s *Service) CreateCheckIn(ctx context.Context, in CreateCheckInInput) (*models.Visitor, *models.CheckIn, error) {
	policy := s.policy.Current()
	now := requestcontext.Now(ctx)

	if in.PreApprovalID == nil && !policy.AllowWalkInVisitors {
		return nil, nil, dErrors.New(dErrors.CodePolicyViolation,
			"walk-in visitors are not allowed; ask your host for a pre-approval")
	}
	if policy.RequireGovernmentID && (in.GovernmentID == nil || !in.GovernmentID.Verified) {
		return nil, nil, dErrors.New(dErrors.CodePolicyViolation,
			"a verified government ID is required for check-in")
	}

	host, err := s.hosts.FindByID(ctx, in.HostID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "host not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load host")
	}
	if !host.Visitable() {
		return nil, nil, dErrors.New(dErrors.CodePolicyViolation,
			"host "+host.Name+" is not currently able to receive visitors")
	}

	existing, err := s.visitors.FindByPhone(ctx, in.Phone)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up visitor")
	}
	if existing != nil && existing.Blacklisted {
		return nil, nil, dErrors.New(dErrors.CodePolicyViolation,
			"visitor is blacklisted: "+existing.BlacklistReason)
	}

	if err := s.checkHostDailyCap(ctx, host, policy, now); err != nil {
		return nil, nil, err
	}

	checkIn := models.CheckIn{
		ID:                  domain.NewCheckInID(),
		HostID:              host.ID,
		HostName:            host.Name,
		Status:              models.StatusPending,
		CheckInTime:         now,
		Purpose:             in.Purpose,
		EstimatedWaitTime:   in.EstimatedWaitTime,
		SecurityOfficerID:   in.SecurityOfficerID,
		SecurityOfficerName: in.SecurityOfficerName,
		GovernmentID:        in.GovernmentID,
		PreApprovalID:       in.PreApprovalID,
	}

	var (
		v      *models.Visitor
		action audit.Action
	)
	if existing == nil {
		v, err = models.NewVisitor(domain.NewVisitorID(), in.Name, in.Phone, in.Email, in.Company, now)
		if err != nil {
			return nil, nil, err
		}
		v.PhotoURL = in.PhotoURL
		v.GovernmentID = in.GovernmentID
		v.CheckIns = []models.CheckIn{checkIn}
		v.TotalVisits = 1
		v.LastVisit = &now
		if err := s.visitors.Create(ctx, v); err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create visitor")
		}
		action = audit.ActionVisitorCreated
	} else {
		v, err = s.visitors.AppendCheckIn(ctx, existing.ID, checkIn, now)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check-in")
		}
		action = audit.ActionVisitorCheckIn
	}

	s.emit(ctx, audit.Entry{
		Action:     action,
		ActorID:    domain.SystemActor.ID,
		ActorName:  domain.SystemActor.Name,
		ActorRole:  domain.RoleSystem,
		TargetID:   v.ID.String(),
		TargetName: v.Name,
		Details:    fmt.Sprintf("Visitor %s checked in to visit %s", v.Name, host.Name),
		Severity:   audit.SeverityLow,
	})

	if s.notifier != nil && host.Email != "" {
		s.notifier.Enqueue(notify.Intent{
			Channel:   notify.ChannelEmail,
			Recipient: host.Email,
			Message: fmt.Sprintf("Visitor %s (%s) is waiting at the front desk. Purpose: %s.",
				v.Name, v.Company, in.Purpose),
		})
	}

	ci := *v.FindCheckIn(checkIn.ID)
	return v, &ci, nil
}

// Transition applies a tagged transition to a check-in. Approvals issue a
// badge and, for pre-approved visits, redeem the linked pre-approval in the
// same logical unit.
func (s *Service) Transition(ctx context.Context, visitorID domain.VisitorID, checkInID domain.CheckInID, tr models.Transition) (*models.Visitor, *models.CheckIn, error) {
	now := requestcontext.Now(ctx)

	current, err := s.visitors.FindByID(ctx, visitorID)
	if err != nil {
		return nil, nil, s.wrapLookup(err, "visitor")
	}
	checkIn := current.FindCheckIn(checkInID)
	if checkIn == nil {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "check-in not found")
	}

	// Approvals fill in the badge before validation so CanApply sees the
	// final transition.
	issuedBadge := ""
	if approve, ok := tr.(models.Approve); ok {
		if approve.BadgeNumber == "" {
			approve.BadgeNumber = s.badges.Issue()
			issuedBadge = approve.BadgeNumber
		} else if !s.badges.Claim(approve.BadgeNumber) {
			return nil, nil, dErrors.New(dErrors.CodeConflict,
				"badge number "+approve.BadgeNumber+" is already issued")
		} else {
			issuedBadge = approve.BadgeNumber
		}
		if approve.QRCode == "" {
			approve.QRCode = QRPayload(approve.BadgeNumber)
		}
		tr = approve
	}
	releaseBadge := func() {
		if issuedBadge != "" {
			s.badges.Release(issuedBadge)
		}
	}

	if err := checkIn.CanApply(tr); err != nil {
		releaseBadge()
		return nil, nil, err
	}

	// Redeem the linked pre-approval before committing the check-in. If
	// redemption fails, the check-in stays pending and the badge is returned
	// to the pool; if it succeeds, the already-validated mutation below
	// cannot fail under the single-writer model.
	if approve, ok := tr.(models.Approve); ok && checkIn.PreApprovalID != nil {
		if s.preApprovals == nil {
			releaseBadge()
			return nil, nil, dErrors.New(dErrors.CodeInternal, "pre-approval consumer not configured")
		}
		if err := s.preApprovals.Consume(ctx, *checkIn.PreApprovalID, visitorID, approve.BadgeNumber, now); err != nil {
			releaseBadge()
			return nil, nil, err
		}
	}

	v, ci, err := s.visitors.ExecuteCheckIn(ctx, visitorID, checkInID,
		func(c *models.CheckIn) error { return c.CanApply(tr) },
		func(c *models.CheckIn) { c.Apply(tr, now) },
	)
	if err != nil {
		releaseBadge()
		return nil, nil, s.wrapLookup(err, "check-in")
	}
	if ci.Status == models.StatusCheckedOut && ci.BadgeNumber != "" {
		s.badges.Release(ci.BadgeNumber)
	}

	s.auditTransition(ctx, v, ci, tr)
	s.notifyTransition(ctx, v, ci, tr)
	return v, ci, nil
}

// Blacklist bars a visitor from future check-ins.
func (s *Service) Blacklist(ctx context.Context, visitorID domain.VisitorID, reason string) (*models.Visitor, error) {
	v, err := s.visitors.ExecuteVisitor(ctx, visitorID,
		func(v *models.Visitor) error { return v.CanBlacklist(reason) },
		func(v *models.Visitor) { v.ApplyBlacklist(reason) },
	)
	if err != nil {
		return nil, s.wrapLookup(err, "visitor")
	}
	actor := requestcontext.Actor(ctx)
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionVisitorBlacklisted,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   v.ID.String(),
		TargetName: v.Name,
		Details:    "Visitor blacklisted: " + reason,
		Severity:   audit.SeverityHigh,
	})
	return v, nil
}

// Unblacklist clears a visitor's blacklist flag.
func (s *Service) Unblacklist(ctx context.Context, visitorID domain.VisitorID) (*models.Visitor, error) {
	v, err := s.visitors.ExecuteVisitor(ctx, visitorID,
		func(v *models.Visitor) error { return v.CanUnblacklist() },
		func(v *models.Visitor) { v.ApplyUnblacklist() },
	)
	if err != nil {
		return nil, s.wrapLookup(err, "visitor")
	}
	actor := requestcontext.Actor(ctx)
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionVisitorUnblacklisted,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   v.ID.String(),
		TargetName: v.Name,
		Details:    "Visitor removed from blacklist",
		Severity:   audit.SeverityMedium,
	})
	return v, nil
}

// Get returns one visitor.
func (s *Service) Get(ctx context.Context, visitorID domain.VisitorID) (*models.Visitor, error) {
	v, err := s.visitors.FindByID(ctx, visitorID)
	if err != nil {
		return nil, s.wrapLookup(err, "visitor")
	}
	return v, nil
}

// checkHostDailyCap enforces both the global per-host cap and the host's own
// limit against today's pending and approved check-ins.
func (s *Service) checkHostDailyCap(ctx context.Context, host *hostmodels.Host, policy rules.Rules, now time.Time) error {
	cap := policy.MaxVisitorsPerHostPerDay
	if host.MaxVisitorsPerDay > 0 && host.MaxVisitorsPerDay < cap {
		cap = host.MaxVisitorsPerDay
	}
	all, err := s.visitors.List(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count := 0
	for _, v := range all {
		for i := range v.CheckIns {
			ci := &v.CheckIns[i]
			if ci.HostID != host.ID || ci.CheckInTime.Before(midnight) {
				continue
			}
			if ci.Status == models.StatusPending || ci.Status == models.StatusApproved {
				count++
			}
		}
	}
	if count >= cap {
		return dErrors.New(dErrors.CodePolicyViolation,
			fmt.Sprintf("host %s has reached the daily visitor limit of %d", host.Name, cap))
	}
	return nil
}

func (s *Service) auditTransition(ctx context.Context, v *models.Visitor, ci *models.CheckIn, tr models.Transition) {
	actor := requestcontext.Actor(ctx)
	var (
		action   audit.Action
		severity = audit.SeverityLow
		details  string
	)
	switch t := tr.(type) {
	case models.Approve:
		action = audit.ActionVisitorApproved
		details = fmt.Sprintf("Visitor %s approved, badge %s issued", v.Name, ci.BadgeNumber)
		if actor.Name == "" {
			actor = domain.Actor{ID: t.By, Name: t.By, Role: domain.RoleHost}
		}
	case models.Deny:
		action = audit.ActionVisitorDenied
		severity = audit.SeverityMedium
		details = fmt.Sprintf("Visitor %s denied - Reason: %s", v.Name, t.Reason)
		if actor.Name == "" {
			actor = domain.Actor{ID: t.By, Name: t.By, Role: domain.RoleHost}
		}
	case models.Cancel:
		action = audit.ActionVisitorCancelled
		details = fmt.Sprintf("Check-in for visitor %s cancelled", v.Name)
	case models.CheckOut:
		action = audit.ActionVisitorCheckedOut
		details = fmt.Sprintf("Visitor %s checked out", v.Name)
	}
	if actor.Name == "" {
		actor = domain.SystemActor
	}
	s.emit(ctx, audit.Entry{
		Action:     action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   v.ID.String(),
		TargetName: v.Name,
		Details:    details,
		Severity:   severity,
	})
}

// notifyTransition enqueues best-effort notifications for approvals and
// denials. Delivery never gates or rolls back the transition.
func (s *Service) notifyTransition(ctx context.Context, v *models.Visitor, ci *models.CheckIn, tr models.Transition) {
	if s.notifier == nil {
		return
	}
	switch t := tr.(type) {
	case models.Approve:
		if v.Email != "" {
			s.notifier.Enqueue(notify.Intent{
				Channel:   notify.ChannelEmail,
				Recipient: v.Email,
				Message: fmt.Sprintf("Your visit with %s is approved. Badge number: %s.",
					ci.HostName, ci.BadgeNumber),
			})
		}
		if v.Phone != "" {
			s.notifier.Enqueue(notify.Intent{
				Channel:   notify.ChannelSMS,
				Recipient: v.Phone,
				Message:   fmt.Sprintf("VMS: visit approved. Badge %s. Please proceed to security.", ci.BadgeNumber),
			})
		}
	case models.Deny:
		if v.Email != "" {
			s.notifier.Enqueue(notify.Intent{
				Channel:   notify.ChannelEmail,
				Recipient: v.Email,
				Message:   fmt.Sprintf("Your visit with %s was denied: %s", ci.HostName, t.Reason),
			})
		}
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

func (s *Service) wrapLookup(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, what+" store failure")
}
