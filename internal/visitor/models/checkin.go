package models

import (
	"time"

	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
)

// Status is the check-in state machine position.
//
// pending → approved | denied | cancelled
// approved → checked-out
//
// denied, cancelled, and checked-out are terminal: no transition may be
// applied to a record in any of them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
	StatusCancelled  Status = "cancelled"
	StatusCheckedOut Status = "checked-out"
)

// reachable is the single source of truth for legal transitions.
var reachable = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusDenied: true, StatusCancelled: true},
	StatusApproved: {StatusCheckedOut: true},
}

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	return len(reachable[s]) == 0
}

// CanTransitionTo reports whether target is reachable from s.
func (s Status) CanTransitionTo(target Status) bool {
	return reachable[s][target]
}

// GovernmentID describes an identity document presented at the checkpoint.
type GovernmentID struct {
	Type     string `json:"type"`
	Number   string `json:"number"`
	Verified bool   `json:"verified"`
}

// CheckIn is one visit instance, owned by exactly one visitor. Host name is a
// snapshot taken at creation; renaming a host never rewrites history.
type CheckIn struct {
	ID                  domain.CheckInID      `json:"id"`
	HostID              domain.HostID         `json:"host_id"`
	HostName            string                `json:"host_name"`
	Status              Status                `json:"status"`
	CheckInTime         time.Time             `json:"check_in_time"`
	CheckOutTime        *time.Time            `json:"check_out_time,omitempty"`
	Purpose             string                `json:"purpose"`
	BadgeNumber         string                `json:"badge_number,omitempty"`
	QRCode              string                `json:"qr_code,omitempty"`
	EstimatedWaitTime   int                   `json:"estimated_wait_time,omitempty"` // minutes
	SecurityOfficerID   string                `json:"security_officer_id,omitempty"`
	SecurityOfficerName string                `json:"security_officer_name,omitempty"`
	GovernmentID        *GovernmentID         `json:"government_id,omitempty"`
	ApprovedAt          *time.Time            `json:"approved_at,omitempty"`
	ApprovedBy          string                `json:"approved_by,omitempty"`
	DeniedAt            *time.Time            `json:"denied_at,omitempty"`
	DeniedBy            string                `json:"denied_by,omitempty"`
	DenialReason        string                `json:"denial_reason,omitempty"`
	PreApprovalID       *domain.PreApprovalID `json:"pre_approval_id,omitempty"`
}

// IsPreApproved reports whether this check-in redeems a pre-approval.
func (c *CheckIn) IsPreApproved() bool { return c.PreApprovalID != nil }

// Clone returns a copy whose pointer fields do not alias the receiver.
func (c *CheckIn) Clone() CheckIn {
	cp := *c
	if c.CheckOutTime != nil {
		t := *c.CheckOutTime
		cp.CheckOutTime = &t
	}
	if c.GovernmentID != nil {
		gid := *c.GovernmentID
		cp.GovernmentID = &gid
	}
	if c.ApprovedAt != nil {
		t := *c.ApprovedAt
		cp.ApprovedAt = &t
	}
	if c.DeniedAt != nil {
		t := *c.DeniedAt
		cp.DeniedAt = &t
	}
	if c.PreApprovalID != nil {
		id := *c.PreApprovalID
		cp.PreApprovalID = &id
	}
	return cp
}

// WaitTime is how long the visitor has been waiting (pending) or waited
// before approval.
func (c *CheckIn) WaitTime(now time.Time) time.Duration {
	if c.ApprovedAt != nil {
		return c.ApprovedAt.Sub(c.CheckInTime)
	}
	return now.Sub(c.CheckInTime)
}

// Transition is a tagged state change. Each variant names exactly the fields
// its target state requires, so an illegal update is unrepresentable.
type Transition interface {
	Target() Status
}

// Approve moves pending → approved. BadgeNumber is assigned by the badge
// issuer before application; QRCode is derived from it.
type Approve struct {
	By          string
	BadgeNumber string
	QRCode      string
}

func (Approve) Target() Status { return StatusApproved }

// Deny moves pending → denied. Reason is required text.
type Deny struct {
	By     string
	Reason string
}

func (Deny) Target() Status { return StatusDenied }

// Cancel moves pending → cancelled.
type Cancel struct{}

func (Cancel) Target() Status { return StatusCancelled }

// CheckOut moves approved → checked-out.
type CheckOut struct{}

func (CheckOut) Target() Status { return StatusCheckedOut }

// CanApply validates a transition without mutating the record. Pair with
// Apply inside a store Execute callback.
func (c *CheckIn) CanApply(t Transition) error {
	target := t.Target()
	if c.Status.Terminal() {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"check-in is already "+string(c.Status))
	}
	if !c.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot move a "+string(c.Status)+" check-in to "+string(target))
	}
	if deny, ok := t.(Deny); ok && deny.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "a denial reason is required")
	}
	if approve, ok := t.(Approve); ok && approve.BadgeNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "an approval requires a badge number")
	}
	return nil
}

// Apply mutates the record for a transition CanApply has accepted.
func (c *CheckIn) Apply(t Transition, now time.Time) {
	switch tr := t.(type) {
	case Approve:
		c.Status = StatusApproved
		c.BadgeNumber = tr.BadgeNumber
		c.QRCode = tr.QRCode
		c.ApprovedAt = &now
		c.ApprovedBy = tr.By
	case Deny:
		c.Status = StatusDenied
		c.DeniedAt = &now
		c.DeniedBy = tr.By
		c.DenialReason = tr.Reason
	case Cancel:
		c.Status = StatusCancelled
		c.CheckOutTime = &now
	case CheckOut:
		c.Status = StatusCheckedOut
		c.CheckOutTime = &now
	}
}
