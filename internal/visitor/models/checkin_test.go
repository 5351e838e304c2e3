package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
)

func pendingCheckIn(t *testing.T) *CheckIn {
	t.Helper()
	return &CheckIn{
		ID:          domain.NewCheckInID(),
		HostID:      domain.NewHostID(),
		HostName:    "Dana Ops",
		Status:      StatusPending,
		CheckInTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Purpose:     "maintenance",
	}
}

func TestStatusReachability(t *testing.T) {
	cases := []struct {
		from   Status
		to     Status
		legal  bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusDenied, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCheckedOut, false},
		{StatusApproved, StatusCheckedOut, true},
		{StatusApproved, StatusDenied, false},
		{StatusApproved, StatusCancelled, false},
		{StatusDenied, StatusApproved, false},
		{StatusCancelled, StatusApproved, false},
		{StatusCheckedOut, StatusApproved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.legal, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, StatusDenied.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCheckedOut.Terminal())
}

func TestCanApply_TerminalIsImmutable(t *testing.T) {
	for _, status := range []Status{StatusDenied, StatusCancelled, StatusCheckedOut} {
		ci := pendingCheckIn(t)
		ci.Status = status
		for _, tr := range []Transition{
			Approve{By: "a", BadgeNumber: "VMS001"},
			Deny{By: "a", Reason: "no"},
			Cancel{},
			CheckOut{},
		} {
			err := ci.CanApply(tr)
			require.Error(t, err, "%s + %T", status, tr)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		}
	}
}

func TestCanApply_DenyRequiresReason(t *testing.T) {
	ci := pendingCheckIn(t)
	err := ci.CanApply(Deny{By: "host"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCanApply_ApproveRequiresBadge(t *testing.T) {
	ci := pendingCheckIn(t)
	err := ci.CanApply(Approve{By: "host"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestApply_ApproveStampsFields(t *testing.T) {
	ci := pendingCheckIn(t)
	now := ci.CheckInTime.Add(12 * time.Minute)

	require.NoError(t, ci.CanApply(Approve{By: "Dana Ops", BadgeNumber: "VMS001", QRCode: "QR_VMS001"}))
	ci.Apply(Approve{By: "Dana Ops", BadgeNumber: "VMS001", QRCode: "QR_VMS001"}, now)

	assert.Equal(t, StatusApproved, ci.Status)
	assert.Equal(t, "VMS001", ci.BadgeNumber)
	assert.Equal(t, "QR_VMS001", ci.QRCode)
	require.NotNil(t, ci.ApprovedAt)
	assert.Equal(t, now, *ci.ApprovedAt)
	assert.Equal(t, "Dana Ops", ci.ApprovedBy)
	assert.Equal(t, 12*time.Minute, ci.WaitTime(now.Add(time.Hour)))
}

func TestApply_DenyStampsFields(t *testing.T) {
	ci := pendingCheckIn(t)
	now := ci.CheckInTime.Add(5 * time.Minute)

	ci.Apply(Deny{By: "Dana Ops", Reason: "unexpected visit"}, now)

	assert.Equal(t, StatusDenied, ci.Status)
	require.NotNil(t, ci.DeniedAt)
	assert.Equal(t, "unexpected visit", ci.DenialReason)
	assert.Equal(t, "Dana Ops", ci.DeniedBy)
}

func TestApply_CheckOutStampsTime(t *testing.T) {
	ci := pendingCheckIn(t)
	ci.Apply(Approve{By: "x", BadgeNumber: "VMS001"}, ci.CheckInTime.Add(time.Minute))
	out := ci.CheckInTime.Add(2 * time.Hour)

	require.NoError(t, ci.CanApply(CheckOut{}))
	ci.Apply(CheckOut{}, out)

	assert.Equal(t, StatusCheckedOut, ci.Status)
	require.NotNil(t, ci.CheckOutTime)
	assert.Equal(t, out, *ci.CheckOutTime)
}

func TestVisitorBlacklist(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	v, err := NewVisitor(domain.NewVisitorID(), "Sam Field", "+1 555 0100", "", "", now)
	require.NoError(t, err)

	require.Error(t, v.CanBlacklist(""))
	require.NoError(t, v.CanBlacklist("tailgating"))
	v.ApplyBlacklist("tailgating")
	assert.True(t, v.Blacklisted)

	err = v.CanBlacklist("again")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	require.NoError(t, v.CanUnblacklist())
	v.ApplyUnblacklist()
	assert.False(t, v.Blacklisted)
	assert.Empty(t, v.BlacklistReason)
}

func TestNewVisitorValidation(t *testing.T) {
	now := time.Now()
	_, err := NewVisitor(domain.NewVisitorID(), "", "+1 555 0100", "", "", now)
	require.Error(t, err)

	_, err = NewVisitor(domain.NewVisitorID(), "Sam", "", "", "", now)
	require.Error(t, err)
}

func TestVisitorClone_DoesNotAliasCheckInPointers(t *testing.T) {
	ci := *pendingCheckIn(t)
	approvedAt := ci.CheckInTime.Add(10 * time.Minute)
	paID := domain.NewPreApprovalID()
	ci.Status = StatusApproved
	ci.ApprovedAt = &approvedAt
	ci.GovernmentID = &GovernmentID{Type: "passport", Number: "X1234", Verified: true}
	ci.PreApprovalID = &paID

	v, err := NewVisitor(domain.NewVisitorID(), "Sam Field", "+1 555 0100", "", "", ci.CheckInTime)
	require.NoError(t, err)
	v.CheckIns = []CheckIn{ci}

	cp := v.Clone()
	*cp.CheckIns[0].ApprovedAt = approvedAt.Add(time.Hour)
	cp.CheckIns[0].GovernmentID.Verified = false
	*cp.CheckIns[0].PreApprovalID = domain.NewPreApprovalID()

	assert.Equal(t, approvedAt, *v.CheckIns[0].ApprovedAt)
	assert.True(t, v.CheckIns[0].GovernmentID.Verified)
	assert.Equal(t, paID, *v.CheckIns[0].PreApprovalID)
}
