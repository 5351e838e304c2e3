package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/audit"
	pamodels "securevms/internal/preapproval/models"
	"securevms/internal/visitor/models"
	"securevms/pkg/domain"
	"securevms/pkg/requestcontext"
)

var baseTime = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fakeVisitors struct {
	visitors []*models.Visitor
}

func (f *fakeVisitors) List(context.Context) ([]*models.Visitor, error) {
	return f.visitors, nil
}

type fakePreApprovals struct {
	records []*pamodels.PreApproval
}

func (f *fakePreApprovals) List(context.Context) ([]*pamodels.PreApproval, error) {
	return f.records, nil
}

func visitorWith(created time.Time, checkIns ...models.CheckIn) *models.Visitor {
	return &models.Visitor{
		ID:        domain.NewVisitorID(),
		Name:      "v",
		Phone:     "+1 555 0100",
		CreatedAt: created,
		CheckIns:  checkIns,
	}
}

func checkInAt(at time.Time, status models.Status) models.CheckIn {
	return models.CheckIn{
		ID:          domain.NewCheckInID(),
		HostID:      domain.NewHostID(),
		Status:      status,
		CheckInTime: at,
	}
}

func TestSnapshot_CountsAndAverageWait(t *testing.T) {
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Approved after 10 minutes.
	fast := checkInAt(baseTime.Add(-time.Hour), models.StatusApproved)
	fastApproved := fast.CheckInTime.Add(10 * time.Minute)
	fast.ApprovedAt = &fastApproved

	// Approved after 15 minutes, then checked out.
	done := checkInAt(baseTime.Add(-3*time.Hour), models.StatusCheckedOut)
	doneApproved := done.CheckInTime.Add(15 * time.Minute)
	doneOut := done.CheckInTime.Add(2 * time.Hour)
	done.ApprovedAt = &doneApproved
	done.CheckOutTime = &doneOut

	visitors := &fakeVisitors{visitors: []*models.Visitor{
		visitorWith(baseTime.Add(-time.Hour), fast),
		visitorWith(midnight.Add(-2*time.Hour), done), // created yesterday
		visitorWith(baseTime, checkInAt(baseTime, models.StatusPending)),
	}}
	preApprovals := &fakePreApprovals{records: []*pamodels.PreApproval{
		{ID: domain.NewPreApprovalID(), ScheduledDate: baseTime.Add(2 * time.Hour)},
		{ID: domain.NewPreApprovalID(), ScheduledDate: baseTime.Add(26 * time.Hour)}, // tomorrow
	}}

	agg := New(visitors, preApprovals)
	snap, err := agg.Snapshot(requestcontext.WithTime(context.Background(), baseTime))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.TotalToday)
	assert.Equal(t, 1, snap.ActiveNow)
	assert.Equal(t, 1, snap.PendingApproval)
	assert.Equal(t, 1, snap.PreApprovedToday)
	assert.Equal(t, 1, snap.TotalCheckOuts)
	// Only the still-approved visit counts; the checked-out one drops from
	// the average.
	assert.Equal(t, 10, snap.AverageWaitTimeMins)
}

func TestSnapshot_ActiveNowCountsVisitorsNotCheckIns(t *testing.T) {
	first := checkInAt(baseTime.Add(-2*time.Hour), models.StatusApproved)
	second := checkInAt(baseTime.Add(-time.Hour), models.StatusApproved)
	twice := visitorWith(baseTime.Add(-2*time.Hour), first, second)

	agg := New(&fakeVisitors{visitors: []*models.Visitor{twice}}, nil)
	snap, err := agg.Snapshot(requestcontext.WithTime(context.Background(), baseTime))
	require.NoError(t, err)

	assert.Equal(t, 1, snap.ActiveNow, "one visitor on premises regardless of open check-ins")
}

func TestSnapshot_AverageWaitExcludesCheckedOut(t *testing.T) {
	approved := checkInAt(baseTime.Add(-time.Hour), models.StatusApproved)
	approvedAt := approved.CheckInTime.Add(10 * time.Minute)
	approved.ApprovedAt = &approvedAt

	departed := checkInAt(baseTime.Add(-3*time.Hour), models.StatusCheckedOut)
	departedApproved := departed.CheckInTime.Add(30 * time.Minute)
	departedOut := departed.CheckInTime.Add(2 * time.Hour)
	departed.ApprovedAt = &departedApproved
	departed.CheckOutTime = &departedOut

	visitors := &fakeVisitors{visitors: []*models.Visitor{
		visitorWith(baseTime, approved),
		visitorWith(baseTime, departed),
	}}

	agg := New(visitors, nil)
	snap, err := agg.Snapshot(requestcontext.WithTime(context.Background(), baseTime))
	require.NoError(t, err)

	assert.Equal(t, 10, snap.AverageWaitTimeMins)
}

func TestSnapshot_EmptyState(t *testing.T) {
	agg := New(&fakeVisitors{}, &fakePreApprovals{})
	snap, err := agg.Snapshot(requestcontext.WithTime(context.Background(), baseTime))
	require.NoError(t, err)
	assert.Equal(t, Snapshot{}, snap)
}

func TestReport_RangeAndBreakdowns(t *testing.T) {
	start := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	inRange := checkInAt(start.Add(10*time.Hour), models.StatusApproved)
	inRange.HostName = "Dana Ops"
	inRange.Purpose = "maintenance"
	denied := checkInAt(start.Add(30*time.Hour), models.StatusDenied)
	denied.HostName = "Dana Ops"
	denied.Purpose = "delivery"
	outside := checkInAt(start.Add(-time.Hour), models.StatusApproved)

	visitors := &fakeVisitors{visitors: []*models.Visitor{
		visitorWith(start, inRange, denied),
		visitorWith(start.Add(-48*time.Hour), outside),
	}}

	agg := New(visitors, nil)
	rep, err := agg.Report(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.TotalCheckIns)
	assert.Equal(t, 1, rep.Approved)
	assert.Equal(t, 1, rep.Denied)
	assert.Equal(t, 1, rep.UniqueVisitors)
	assert.Equal(t, 2, rep.ByHost["Dana Ops"])
	assert.Equal(t, 1, rep.ByPurpose["maintenance"])

	_, err = agg.Report(context.Background(), end, start)
	require.Error(t, err)
}

type fakeAudit struct {
	entries []audit.Entry
}

func (f *fakeAudit) List(context.Context) ([]audit.Entry, error) {
	return f.entries, nil
}

func TestReport_TopCompaniesAndSecurityIncidents(t *testing.T) {
	start := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	acme := visitorWith(start, checkInAt(start.Add(time.Hour), models.StatusApproved),
		checkInAt(start.Add(2*time.Hour), models.StatusApproved))
	acme.Company = "Acme"
	globex := visitorWith(start, checkInAt(start.Add(3*time.Hour), models.StatusApproved))
	globex.Company = "Globex"

	trail := &fakeAudit{entries: []audit.Entry{
		{Timestamp: start.Add(time.Hour), Severity: audit.SeverityHigh},
		{Timestamp: start.Add(2 * time.Hour), Severity: audit.SeverityCritical},
		{Timestamp: start.Add(3 * time.Hour), Severity: audit.SeverityLow},
		{Timestamp: end.Add(time.Hour), Severity: audit.SeverityHigh}, // outside range
	}}

	agg := New(&fakeVisitors{visitors: []*models.Visitor{acme, globex}}, nil,
		WithAuditSource(trail))
	rep, err := agg.Report(context.Background(), start, end)
	require.NoError(t, err)

	require.Len(t, rep.TopCompanies, 2)
	assert.Equal(t, CompanyCount{Company: "Acme", Visits: 2}, rep.TopCompanies[0])
	assert.Equal(t, CompanyCount{Company: "Globex", Visits: 1}, rep.TopCompanies[1])
	assert.Equal(t, 2, rep.SecurityIncidents)
}
