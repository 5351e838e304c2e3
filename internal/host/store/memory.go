// Package store holds host records for a process run.
package store

import (
	"context"
	"strings"
	"sync"

	"securevms/internal/host/models"
	"securevms/pkg/domain"
	"securevms/pkg/platform/sentinel"
)

// InMemory keeps hosts behind a single lock. Execute runs validate-then-mutate
// under that lock so no two transitions on the same host interleave.
type InMemory struct {
	mu      sync.RWMutex
	hosts   map[domain.HostID]*models.Host
	byEmail map[string]domain.HostID
}

func NewInMemory() *InMemory {
	return &InMemory{
		hosts:   make(map[domain.HostID]*models.Host),
		byEmail: make(map[string]domain.HostID),
	}
}

// Create inserts a host if its email is not taken (case-insensitive).
func (s *InMemory) Create(_ context.Context, host *models.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := emailKey(host.Email)
	if _, taken := s.byEmail[key]; taken {
		return sentinel.ErrConflict
	}
	cp := *host
	s.hosts[host.ID] = &cp
	s.byEmail[key] = host.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.HostID) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hosts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.hosts[id]
	return &cp, nil
}

// List returns all hosts in unspecified order.
func (s *InMemory) List(_ context.Context) ([]*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

// Delete removes a host outright. Denying a registration is a hard delete,
// not a soft state.
func (s *InMemory) Delete(_ context.Context, id domain.HostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, emailKey(h.Email))
	delete(s.hosts, id)
	return nil
}

// Execute atomically validates and mutates one host under the store lock,
// returning a copy of the updated record. If validate fails nothing changes.
func (s *InMemory) Execute(_ context.Context, id domain.HostID,
	validate func(*models.Host) error, mutate func(*models.Host)) (*models.Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(h); err != nil {
		return nil, err
	}
	mutate(h)
	cp := *h
	return &cp, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
