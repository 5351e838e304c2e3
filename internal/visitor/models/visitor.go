// Package models defines the visitor aggregate and its check-in state
// machine.
//
// Invariants:
//   - CheckIns is append-only; insertion order is chronological
//   - TotalVisits is monotonically non-decreasing
//   - A blacklisted visitor is never admitted into a new pending check-in
package models

import (
	"strings"
	"time"

	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
)

// Visitor is a physical person identified across visits by phone number.
type Visitor struct {
	ID              domain.VisitorID `json:"id"`
	Name            string           `json:"name"`
	Phone           string           `json:"phone"`
	Email           string           `json:"email,omitempty"`
	Company         string           `json:"company,omitempty"`
	PhotoURL        string           `json:"photo_url,omitempty"`
	GovernmentID    *GovernmentID    `json:"government_id,omitempty"`
	CheckIns        []CheckIn        `json:"check_ins"`
	CreatedAt       time.Time        `json:"created_at"`
	LastVisit       *time.Time       `json:"last_visit,omitempty"`
	TotalVisits     int              `json:"total_visits"`
	Blacklisted     bool             `json:"is_blacklisted,omitempty"`
	BlacklistReason string           `json:"blacklist_reason,omitempty"`
}

// NewVisitor validates contact fields and returns a visitor with no check-ins
// yet.
func NewVisitor(id domain.VisitorID, name, phone, email, company string, now time.Time) (*Visitor, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitor name must not be empty")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitor phone must not be empty")
	}
	return &Visitor{
		ID:        id,
		Name:      name,
		Phone:     phone,
		Email:     strings.TrimSpace(email),
		Company:   strings.TrimSpace(company),
		CreatedAt: now,
	}, nil
}

// FindCheckIn returns the check-in with the given ID, or nil.
func (v *Visitor) FindCheckIn(id domain.CheckInID) *CheckIn {
	for i := range v.CheckIns {
		if v.CheckIns[i].ID == id {
			return &v.CheckIns[i]
		}
	}
	return nil
}

// CanBlacklist validates adding the visitor to the blacklist.
func (v *Visitor) CanBlacklist(reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "a blacklist reason is required")
	}
	if v.Blacklisted {
		return dErrors.New(dErrors.CodeConflict, "visitor is already blacklisted")
	}
	return nil
}

// ApplyBlacklist marks the visitor blacklisted.
func (v *Visitor) ApplyBlacklist(reason string) {
	v.Blacklisted = true
	v.BlacklistReason = reason
}

// CanUnblacklist validates removal from the blacklist.
func (v *Visitor) CanUnblacklist() error {
	if !v.Blacklisted {
		return dErrors.New(dErrors.CodeConflict, "visitor is not blacklisted")
	}
	return nil
}

// ApplyUnblacklist clears the blacklist flag.
func (v *Visitor) ApplyUnblacklist() {
	v.Blacklisted = false
	v.BlacklistReason = ""
}

// Clone deep-copies the visitor so store reads never alias live state.
func (v *Visitor) Clone() *Visitor {
	cp := *v
	cp.CheckIns = make([]CheckIn, len(v.CheckIns))
	for i := range v.CheckIns {
		cp.CheckIns[i] = v.CheckIns[i].Clone()
	}
	if v.GovernmentID != nil {
		gid := *v.GovernmentID
		cp.GovernmentID = &gid
	}
	if v.LastVisit != nil {
		lv := *v.LastVisit
		cp.LastVisit = &lv
	}
	return &cp
}
