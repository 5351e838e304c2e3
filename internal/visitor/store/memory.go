// Package store holds visitor records for a process run. All writes go
// through lock-held validate-then-mutate callbacks so a reader never observes
// a half-applied transition.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"securevms/internal/visitor/models"
	"securevms/pkg/domain"
	"securevms/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	visitors map[domain.VisitorID]*models.Visitor
	byPhone  map[string]domain.VisitorID
}

func NewInMemory() *InMemory {
	return &InMemory{
		visitors: make(map[domain.VisitorID]*models.Visitor),
		byPhone:  make(map[string]domain.VisitorID),
	}
}

// Create inserts a new visitor. Phone numbers identify returning visitors, so
// duplicates are rejected.
func (s *InMemory) Create(_ context.Context, v *models.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := phoneKey(v.Phone)
	if _, taken := s.byPhone[key]; taken {
		return sentinel.ErrConflict
	}
	s.visitors[v.ID] = v.Clone()
	s.byPhone[key] = v.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.VisitorID) (*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visitors[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *InMemory) FindByPhone(_ context.Context, phone string) (*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phoneKey(phone)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.visitors[id].Clone(), nil
}

// List returns a snapshot of every visitor.
func (s *InMemory) List(_ context.Context) ([]*models.Visitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Visitor, 0, len(s.visitors))
	for _, v := range s.visitors {
		out = append(out, v.Clone())
	}
	return out, nil
}

// AppendCheckIn appends a check-in to an existing visitor and advances the
// visit counters. The check-in sequence is append-only.
func (s *InMemory) AppendCheckIn(_ context.Context, visitorID domain.VisitorID, checkIn models.CheckIn, now time.Time) (*models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	v.CheckIns = append(v.CheckIns, checkIn)
	v.TotalVisits++
	v.LastVisit = &now
	return v.Clone(), nil
}

// ExecuteCheckIn atomically validates and mutates one check-in under the
// store lock. If validate fails, nothing changes. Returns copies of the
// updated visitor and check-in.
func (s *InMemory) ExecuteCheckIn(_ context.Context, visitorID domain.VisitorID, checkInID domain.CheckInID,
	validate func(*models.CheckIn) error, mutate func(*models.CheckIn)) (*models.Visitor, *models.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	ci := v.FindCheckIn(checkInID)
	if ci == nil {
		return nil, nil, sentinel.ErrNotFound
	}
	if err := validate(ci); err != nil {
		return nil, nil, err
	}
	mutate(ci)
	vcp := v.Clone()
	cicp := *vcp.FindCheckIn(checkInID)
	return vcp, &cicp, nil
}

// ExecuteVisitor atomically validates and mutates visitor-level fields
// (blacklisting) under the store lock.
func (s *InMemory) ExecuteVisitor(_ context.Context, visitorID domain.VisitorID,
	validate func(*models.Visitor) error, mutate func(*models.Visitor)) (*models.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[visitorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(v); err != nil {
		return nil, err
	}
	mutate(v)
	return v.Clone(), nil
}

func phoneKey(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, phone)
}
