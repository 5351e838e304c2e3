// Package domain defines typed identifiers and actor values shared by every
// module. IDs are distinct types over uuid.UUID so the compiler rejects a
// check-in ID where a visitor ID is expected.
//
// Construct IDs from external input via the ParseXxxID helpers; direct casting
// bypasses validation and belongs only in code that already holds a valid UUID.
package domain

import (
	"github.com/google/uuid"

	dErrors "securevms/pkg/domain-errors"
)

type (
	// VisitorID identifies a physical person across visits.
	VisitorID uuid.UUID
	// CheckInID identifies a single visit instance owned by one visitor.
	CheckInID uuid.UUID
	// PreApprovalID identifies a scheduled, not-yet-present visit.
	PreApprovalID uuid.UUID
	// HostID identifies a possible visit recipient.
	HostID uuid.UUID
)

func (id VisitorID) String() string     { return uuid.UUID(id).String() }
func (id CheckInID) String() string     { return uuid.UUID(id).String() }
func (id PreApprovalID) String() string { return uuid.UUID(id).String() }
func (id HostID) String() string        { return uuid.UUID(id).String() }

func (id VisitorID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id CheckInID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PreApprovalID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id HostID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func (id *VisitorID) UnmarshalText(b []byte) error {
	parsed, err := ParseVisitorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CheckInID) UnmarshalText(b []byte) error {
	parsed, err := ParseCheckInID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PreApprovalID) UnmarshalText(b []byte) error {
	parsed, err := ParsePreApprovalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *HostID) UnmarshalText(b []byte) error {
	parsed, err := ParseHostID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id VisitorID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CheckInID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PreApprovalID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id HostID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }

// NewVisitorID returns a fresh random visitor ID.
func NewVisitorID() VisitorID { return VisitorID(uuid.New()) }

// NewCheckInID returns a fresh random check-in ID.
func NewCheckInID() CheckInID { return CheckInID(uuid.New()) }

// NewPreApprovalID returns a fresh random pre-approval ID.
func NewPreApprovalID() PreApprovalID { return PreApprovalID(uuid.New()) }

// NewHostID returns a fresh random host ID.
func NewHostID() HostID { return HostID(uuid.New()) }

// ParseVisitorID validates and converts an external string into a VisitorID.
func ParseVisitorID(s string) (VisitorID, error) {
	u, err := parseUUID(s, "visitor id")
	return VisitorID(u), err
}

// ParseCheckInID validates and converts an external string into a CheckInID.
func ParseCheckInID(s string) (CheckInID, error) {
	u, err := parseUUID(s, "check-in id")
	return CheckInID(u), err
}

// ParsePreApprovalID validates and converts an external string into a PreApprovalID.
func ParsePreApprovalID(s string) (PreApprovalID, error) {
	u, err := parseUUID(s, "pre-approval id")
	return PreApprovalID(u), err
}

// ParseHostID validates and converts an external string into a HostID.
func ParseHostID(s string) (HostID, error) {
	u, err := parseUUID(s, "host id")
	return HostID(u), err
}

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}
