package rules

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"securevms/internal/audit"
	"securevms/pkg/requestcontext"
)

// AuditPublisher records rule changes.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Service holds the current policy and serializes updates. Reads return a
// snapshot so callers decide against one consistent policy.
type Service struct {
	mu      sync.RWMutex
	current Rules

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

func NewService(initial Rules, opts ...Option) *Service {
	s := &Service{current: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a snapshot of the policy in force.
func (s *Service) Current() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and applies a patch, emitting one audit entry naming the
// changed fields. An invalid patch leaves the policy untouched.
func (s *Service) Update(ctx context.Context, patch Patch) (Rules, error) {
	if err := patch.Validate(); err != nil {
		return Rules{}, err
	}

	s.mu.Lock()
	s.current = patch.apply(s.current)
	updated := s.current
	s.mu.Unlock()

	fields := patch.Fields()
	actor := requestcontext.Actor(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "system rules updated",
			"fields", strings.Join(fields, ","),
			"actor", actor.Name,
		)
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Entry{
			Action:    audit.ActionSystemRulesUpdated,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			ActorRole: actor.Role,
			Details:   "System rules updated: " + strings.Join(fields, ", "),
			Severity:  audit.SeverityMedium,
			Category:  audit.CategorySystem,
		})
	}
	return updated, nil
}
