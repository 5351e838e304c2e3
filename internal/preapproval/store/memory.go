// Package store provides the in-memory pre-approval store. Access-code
// uniqueness among currently-active records is enforced here, under the
// store lock.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"securevms/internal/preapproval/models"
	"securevms/pkg/domain"
	"securevms/pkg/platform/sentinel"
)

type InMemory struct {
	mu           sync.RWMutex
	preApprovals map[domain.PreApprovalID]*models.PreApproval
	order        []domain.PreApprovalID
}

func NewInMemory() *InMemory {
	return &InMemory{
		preApprovals: make(map[domain.PreApprovalID]*models.PreApproval),
	}
}

// Create stores a new record. The access code must not collide with any
// currently-active code; historical codes on used, expired, or cancelled
// records may be reused.
func (s *InMemory) Create(ctx context.Context, p *models.PreApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.preApprovals[p.ID]; ok {
		return sentinel.ErrConflict
	}
	if s.activeCodeTakenLocked(p.AccessCode, p.ID) {
		return sentinel.ErrConflict
	}
	s.preApprovals[p.ID] = p.Clone()
	s.order = append(s.order, p.ID)
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.PreApprovalID) (*models.PreApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preApprovals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// FindByAccessCode resolves a code against active records only. A code on a
// consumed or cancelled record no longer resolves.
func (s *InMemory) FindByAccessCode(ctx context.Context, code string) (*models.PreApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.preApprovals {
		if p.Status == models.StatusActive && strings.EqualFold(p.AccessCode, code) {
			return p.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(ctx context.Context) ([]*models.PreApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PreApproval, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.preApprovals[id].Clone())
	}
	return out, nil
}

// Execute runs validate then mutate on one record under the write lock, so
// no reader observes a half-applied transition.
func (s *InMemory) Execute(ctx context.Context, id domain.PreApprovalID,
	validate func(*models.PreApproval) error, mutate func(*models.PreApproval)) (*models.PreApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preApprovals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	return p.Clone(), nil
}

// ExpireBefore flips active records whose expiry has passed and returns the
// flipped copies. Reconciliation convenience only; redemption checks expiry
// independently.
func (s *InMemory) ExpireBefore(ctx context.Context, now time.Time) ([]*models.PreApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped []*models.PreApproval
	for _, id := range s.order {
		p := s.preApprovals[id]
		if p.Status == models.StatusActive && now.After(p.ExpiresAt) {
			p.MarkExpired()
			flipped = append(flipped, p.Clone())
		}
	}
	return flipped, nil
}

func (s *InMemory) activeCodeTakenLocked(code string, self domain.PreApprovalID) bool {
	for id, p := range s.preApprovals {
		if id == self {
			continue
		}
		if p.Status == models.StatusActive && strings.EqualFold(p.AccessCode, code) {
			return true
		}
	}
	return false
}
