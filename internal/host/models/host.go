// Package models defines the host aggregate.
//
// Invariants:
//   - Email is unique (case-insensitive) among registered hosts
//   - Approval is one-way: false → true exactly once, with a credential set
//   - A host can receive visitors only while Approved && Active
package models

import (
	"strings"
	"time"

	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
)

// Host is a possible visit recipient. Registration creates it unapproved; an
// admin approves it with a credential before it can log in or receive
// visitors.
type Host struct {
	ID                domain.HostID `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	CredentialHash    []byte        `json:"-"`
	Department        string        `json:"department"`
	Active            bool          `json:"is_active"`
	Approved          bool          `json:"is_approved"`
	MaxVisitorsPerDay int           `json:"max_visitors_per_day"`
	CreatedAt         time.Time     `json:"created_at"`
	ApprovedBy        string        `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time    `json:"approved_at,omitempty"`
}

// NewHost validates registration input and returns an unapproved host.
func NewHost(id domain.HostID, name, email, department string, maxVisitorsPerDay int, now time.Time) (*Host, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "host name must not be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "host email is invalid")
	}
	if maxVisitorsPerDay < 1 {
		maxVisitorsPerDay = 5
	}
	return &Host{
		ID:                id,
		Name:              name,
		Email:             email,
		Department:        strings.TrimSpace(department),
		Active:            true,
		Approved:          false,
		MaxVisitorsPerDay: maxVisitorsPerDay,
		CreatedAt:         now,
	}, nil
}

// Visitable reports whether the host may currently receive visitors.
func (h *Host) Visitable() bool {
	return h.Approved && h.Active
}

// ApplyApproval transitions the host to approved. Callers check Approved
// first; re-approving is an idempotent no-op at the service layer.
func (h *Host) ApplyApproval(approvedBy string, credentialHash []byte, now time.Time) {
	h.Approved = true
	h.CredentialHash = credentialHash
	h.ApprovedBy = approvedBy
	h.ApprovedAt = &now
}

// CanDeactivate validates the active → inactive transition.
func (h *Host) CanDeactivate() error {
	if !h.Active {
		return dErrors.New(dErrors.CodeConflict, "host is already inactive")
	}
	return nil
}

// ApplyDeactivation transitions the host to inactive.
func (h *Host) ApplyDeactivation() { h.Active = false }

// CanReactivate validates the inactive → active transition.
func (h *Host) CanReactivate() error {
	if h.Active {
		return dErrors.New(dErrors.CodeConflict, "host is already active")
	}
	return nil
}

// ApplyReactivation transitions the host back to active.
func (h *Host) ApplyReactivation() { h.Active = true }
