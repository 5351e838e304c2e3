// Package service orchestrates the host approval workflow: self-registration,
// one-way approval with credential issuance, hard-delete denial, and login.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"securevms/internal/audit"
	"securevms/internal/host/models"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/platform/sentinel"
	"securevms/pkg/requestcontext"
)

// HostStore is the persistence boundary for host records.
type HostStore interface {
	Create(ctx context.Context, host *models.Host) error
	FindByID(ctx context.Context, id domain.HostID) (*models.Host, error)
	FindByEmail(ctx context.Context, email string) (*models.Host, error)
	List(ctx context.Context) ([]*models.Host, error)
	Delete(ctx context.Context, id domain.HostID) error
	Execute(ctx context.Context, id domain.HostID,
		validate func(*models.Host) error, mutate func(*models.Host)) (*models.Host, error)
}

// TokenIssuer mints a session token for an authenticated host.
type TokenIssuer interface {
	Issue(host *models.Host) (string, error)
}

// AuditPublisher records host lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service orchestrates host lifecycle management.
type Service struct {
	hosts   HostStore
	tokens  TokenIssuer
	logger  *slog.Logger
	auditor AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *Service) { s.tokens = t }
}

func New(hosts HostStore, opts ...Option) *Service {
	s := &Service{hosts: hosts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries host self-registration fields.
type RegisterInput struct {
	Name              string
	Email             string
	Department        string
	MaxVisitorsPerDay int
}

// Register creates an unapproved host. The host cannot log in or receive
// visitors until an admin approves it with a credential.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Host, error) {
	h, err := models.NewHost(domain.NewHostID(), in.Name, in.Email, in.Department,
		in.MaxVisitorsPerDay, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.hosts.Create(ctx, h); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a host with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register host")
	}
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionHostRegistration,
		ActorID:    h.ID.String(),
		ActorName:  h.Name,
		ActorRole:  domain.RoleHost,
		TargetID:   h.ID.String(),
		TargetName: h.Name,
		Details:    fmt.Sprintf("New host %s registered and pending approval", h.Name),
		Severity:   audit.SeverityLow,
	})
	return h, nil
}

// Approve transitions a host to approved, setting its login credential. The
// transition is one-way and idempotent: re-approving an approved host returns
// it unchanged without a second audit entry.
func (s *Service) Approve(ctx context.Context, hostID domain.HostID, approvedBy, credential string) (*models.Host, error) {
	existing, err := s.hosts.FindByID(ctx, hostID)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	if existing.Approved {
		return existing, nil
	}
	if credential == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a credential is required to approve a host")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash credential")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.hosts.Execute(ctx, hostID,
		func(h *models.Host) error { return nil },
		func(h *models.Host) { h.ApplyApproval(approvedBy, hash, now) },
	)
	if err != nil {
		return nil, s.wrapLookup(err)
	}

	actor := requestcontext.Actor(ctx)
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionHostApproved,
		ActorID:    actor.ID,
		ActorName:  approvedBy,
		ActorRole:  domain.RoleAdmin,
		TargetID:   updated.ID.String(),
		TargetName: updated.Name,
		Details:    fmt.Sprintf("Host %s approved by %s", updated.Name, approvedBy),
		Severity:   audit.SeverityLow,
	})
	return updated, nil
}

// Deny removes a pending registration entirely. Approved hosts cannot be
// denied; deactivate them instead.
func (s *Service) Deny(ctx context.Context, hostID domain.HostID) error {
	existing, err := s.hosts.FindByID(ctx, hostID)
	if err != nil {
		return s.wrapLookup(err)
	}
	if existing.Approved {
		return dErrors.New(dErrors.CodeConflict, "an approved host cannot be denied; deactivate it instead")
	}
	if err := s.hosts.Delete(ctx, hostID); err != nil {
		return s.wrapLookup(err)
	}

	actor := requestcontext.Actor(ctx)
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionHostDenied,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   existing.ID.String(),
		TargetName: existing.Name,
		Details:    fmt.Sprintf("Host registration for %s denied and removed", existing.Name),
		Severity:   audit.SeverityLow,
	})
	return nil
}

// Deactivate suspends a host. Pending check-ins for it stop being approvable
// because the visitable predicate fails.
func (s *Service) Deactivate(ctx context.Context, hostID domain.HostID) (*models.Host, error) {
	updated, err := s.hosts.Execute(ctx, hostID,
		func(h *models.Host) error { return h.CanDeactivate() },
		func(h *models.Host) { h.ApplyDeactivation() },
	)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	s.emitStatusChange(ctx, audit.ActionHostDeactivated, updated, "deactivated")
	return updated, nil
}

// Reactivate lifts a suspension.
func (s *Service) Reactivate(ctx context.Context, hostID domain.HostID) (*models.Host, error) {
	updated, err := s.hosts.Execute(ctx, hostID,
		func(h *models.Host) error { return h.CanReactivate() },
		func(h *models.Host) { h.ApplyReactivation() },
	)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	s.emitStatusChange(ctx, audit.ActionHostReactivated, updated, "reactivated")
	return updated, nil
}

// Authenticate verifies a host credential and issues a session token. Only
// approved, active hosts may log in.
func (s *Service) Authenticate(ctx context.Context, email, credential string) (*models.Host, string, error) {
	h, err := s.hosts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid email or credential")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load host")
	}
	if !h.Visitable() || len(h.CredentialHash) == 0 {
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "host is not approved for login")
	}
	if err := bcrypt.CompareHashAndPassword(h.CredentialHash, []byte(credential)); err != nil {
		return nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid email or credential")
	}
	if s.tokens == nil {
		return nil, "", dErrors.New(dErrors.CodeInternal, "token issuer not configured")
	}
	token, err := s.tokens.Issue(h)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token")
	}
	s.emit(ctx, audit.Entry{
		Action:     audit.ActionHostLogin,
		ActorID:    h.ID.String(),
		ActorName:  h.Name,
		ActorRole:  domain.RoleHost,
		TargetID:   h.ID.String(),
		TargetName: h.Name,
		Details:    fmt.Sprintf("Host %s logged in", h.Name),
		Severity:   audit.SeverityLow,
	})
	return h, token, nil
}

// Get returns one host.
func (s *Service) Get(ctx context.Context, hostID domain.HostID) (*models.Host, error) {
	h, err := s.hosts.FindByID(ctx, hostID)
	if err != nil {
		return nil, s.wrapLookup(err)
	}
	return h, nil
}

// List returns all hosts.
func (s *Service) List(ctx context.Context) ([]*models.Host, error) {
	return s.hosts.List(ctx)
}

// ListPending returns hosts awaiting approval.
func (s *Service) ListPending(ctx context.Context) ([]*models.Host, error) {
	all, err := s.hosts.List(ctx)
	if err != nil {
		return nil, err
	}
	var pending []*models.Host
	for _, h := range all {
		if !h.Approved {
			pending = append(pending, h)
		}
	}
	return pending, nil
}

func (s *Service) emitStatusChange(ctx context.Context, action audit.Action, h *models.Host, verb string) {
	actor := requestcontext.Actor(ctx)
	s.emit(ctx, audit.Entry{
		Action:     action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		TargetID:   h.ID.String(),
		TargetName: h.Name,
		Details:    fmt.Sprintf("Host %s %s", h.Name, verb),
		Severity:   audit.SeverityMedium,
	})
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
		return dErrors.New(dErrors.CodeNotFound, "host not found")
	}
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "host store failure")
}
