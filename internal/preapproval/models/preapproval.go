// Package models defines the pre-approval aggregate and its lifecycle rules.
package models

import (
	"strings"
	"time"

	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// PreApproval is a host-issued, time-bounded authorization for a future
// visit, redeemable at the checkpoint by access code or QR payload.
type PreApproval struct {
	ID            domain.PreApprovalID `json:"id"`
	HostID        domain.HostID        `json:"host_id"`
	HostName      string               `json:"host_name"`
	VisitorName   string               `json:"visitor_name"`
	VisitorPhone  string               `json:"visitor_phone,omitempty"`
	VisitorEmail  string               `json:"visitor_email,omitempty"`
	Company       string               `json:"company,omitempty"`
	Purpose       string               `json:"purpose,omitempty"`
	ScheduledDate time.Time            `json:"scheduled_date"`
	Duration      time.Duration        `json:"duration,omitempty"`

	Status     Status    `json:"status"`
	AccessCode string    `json:"access_code"`
	QRCode     string    `json:"qr_code"`
	CreatedAt  time.Time `json:"created_at"`

	// ExpiresAt is computed once at creation from the policy in force at
	// that moment. Later policy changes never move it.
	ExpiresAt time.Time `json:"expires_at"`

	UsedAt            *time.Time        `json:"used_at,omitempty"`
	ApprovedVisitorID *domain.VisitorID `json:"approved_visitor_id,omitempty"`
	BadgeNumber       string            `json:"badge_number,omitempty"`

	// Delivery flags flip to true only after the dispatcher confirms the
	// send. A failed dispatch leaves them false so the caller may retry.
	EmailSent bool `json:"email_sent"`
	SmsSent   bool `json:"sms_sent"`

	RemindersSent []time.Time `json:"reminders_sent,omitempty"`
}

// New validates input and builds an active pre-approval. ExpiresAt is the
// scheduled date plus expireAfter.
func New(id domain.PreApprovalID, hostID domain.HostID, hostName, visitorName, visitorPhone, visitorEmail, purpose string,
	scheduledDate time.Time, expireAfter time.Duration, now time.Time) (*PreApproval, error) {
	visitorName = strings.TrimSpace(visitorName)
	if visitorName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitor name is required")
	}
	if strings.TrimSpace(visitorPhone) == "" && strings.TrimSpace(visitorEmail) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "visitor phone or email is required")
	}
	if scheduledDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "scheduled date is required")
	}
	if expireAfter <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry window must be positive")
	}
	return &PreApproval{
		ID:            id,
		HostID:        hostID,
		HostName:      hostName,
		VisitorName:   visitorName,
		VisitorPhone:  strings.TrimSpace(visitorPhone),
		VisitorEmail:  strings.TrimSpace(visitorEmail),
		Purpose:       strings.TrimSpace(purpose),
		ScheduledDate: scheduledDate,
		Status:        StatusActive,
		CreatedAt:     now,
		ExpiresAt:     scheduledDate.Add(expireAfter),
	}, nil
}

// Redeemable reports whether the code is still valid at the checkpoint.
// Expiry is evaluated lazily: a record may still read active after its
// ExpiresAt has passed, and must be treated as expired regardless.
func (p *PreApproval) Redeemable(now time.Time) bool {
	return p.Status == StatusActive && !now.After(p.ExpiresAt)
}

// EffectiveStatus resolves lazy expiry for presentation without mutating the
// record.
func (p *PreApproval) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusActive && now.After(p.ExpiresAt) {
		return StatusExpired
	}
	return p.Status
}

// CanConsume validates redemption at now.
func (p *PreApproval) CanConsume(now time.Time) error {
	switch p.Status {
	case StatusUsed:
		return dErrors.New(dErrors.CodeInvalidTransition, "pre-approval has already been used")
	case StatusCancelled:
		return dErrors.New(dErrors.CodeInvalidTransition, "pre-approval was cancelled")
	case StatusExpired:
		return dErrors.New(dErrors.CodeExpired, "pre-approval has expired")
	}
	if now.After(p.ExpiresAt) {
		return dErrors.New(dErrors.CodeExpired, "pre-approval has expired")
	}
	return nil
}

// ApplyConsume marks the record used and links it to the approved visit.
func (p *PreApproval) ApplyConsume(visitorID domain.VisitorID, badgeNumber string, now time.Time) {
	p.Status = StatusUsed
	p.UsedAt = &now
	p.ApprovedVisitorID = &visitorID
	p.BadgeNumber = badgeNumber
}

// CanCancel validates cancellation, legal only while active.
func (p *PreApproval) CanCancel() error {
	if p.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot cancel a pre-approval in status "+string(p.Status))
	}
	return nil
}

func (p *PreApproval) ApplyCancel() {
	p.Status = StatusCancelled
}

// MarkExpired flips a visibly-expired record. Used by the background
// reconciliation pass; redemption correctness never depends on it.
func (p *PreApproval) MarkExpired() {
	p.Status = StatusExpired
}

// Clone returns a deep copy safe to hand across the store boundary.
func (p *PreApproval) Clone() *PreApproval {
	cp := *p
	if p.UsedAt != nil {
		t := *p.UsedAt
		cp.UsedAt = &t
	}
	if p.ApprovedVisitorID != nil {
		id := *p.ApprovedVisitorID
		cp.ApprovedVisitorID = &id
	}
	cp.RemindersSent = append([]time.Time(nil), p.RemindersSent...)
	return &cp
}
