// Package stats derives dashboard numbers from the live visitor and
// pre-approval collections. Every figure is recomputed from source state on
// each call; nothing here is independently mutable.
package stats

import (
	"context"
	"math"
	"time"

	"securevms/internal/audit"
	pamodels "securevms/internal/preapproval/models"
	"securevms/internal/visitor/models"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/requestcontext"
)

type VisitorSource interface {
	List(ctx context.Context) ([]*models.Visitor, error)
}

type PreApprovalSource interface {
	List(ctx context.Context) ([]*pamodels.PreApproval, error)
}

// AuditSource feeds the security incident count in ranged reports.
type AuditSource interface {
	List(ctx context.Context) ([]audit.Entry, error)
}

// Snapshot is one recomputed view of the day.
type Snapshot struct {
	TotalToday          int `json:"totalToday"`
	ActiveNow           int `json:"activeNow"`
	PendingApproval     int `json:"pendingApproval"`
	PreApprovedToday    int `json:"preApprovedToday"`
	AverageWaitTimeMins int `json:"averageWaitTimeMins"`
	TotalCheckOuts      int `json:"totalCheckOuts"`
}

type Aggregator struct {
	visitors     VisitorSource
	preApprovals PreApprovalSource
	auditTrail   AuditSource
}

type Option func(*Aggregator)

// WithAuditSource enables the security incident count in ranged reports.
func WithAuditSource(trail AuditSource) Option {
	return func(a *Aggregator) { a.auditTrail = trail }
}

func New(visitors VisitorSource, preApprovals PreApprovalSource, opts ...Option) *Aggregator {
	a := &Aggregator{visitors: visitors, preApprovals: preApprovals}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot computes the current dashboard figures. "Today" is the local
// calendar day of the request clock.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	now := requestcontext.Now(ctx)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	nextMidnight := midnight.Add(24 * time.Hour)

	visitors, err := a.visitors.List(ctx)
	if err != nil {
		return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}

	var snap Snapshot
	var totalWait time.Duration
	var approvedCount int
	for _, v := range visitors {
		if !v.CreatedAt.Before(midnight) && v.CreatedAt.Before(nextMidnight) {
			snap.TotalToday++
		}
		// ActiveNow counts visitors on premises, not their check-ins.
		onPremises := false
		for i := range v.CheckIns {
			ci := &v.CheckIns[i]
			switch ci.Status {
			case models.StatusPending:
				snap.PendingApproval++
			case models.StatusApproved:
				if ci.CheckOutTime == nil {
					onPremises = true
				}
				if ci.ApprovedAt != nil {
					totalWait += ci.ApprovedAt.Sub(ci.CheckInTime)
					approvedCount++
				}
			case models.StatusCheckedOut:
				snap.TotalCheckOuts++
			}
		}
		if onPremises {
			snap.ActiveNow++
		}
	}
	if approvedCount > 0 {
		snap.AverageWaitTimeMins = int(math.Round(totalWait.Minutes() / float64(approvedCount)))
	}

	if a.preApprovals != nil {
		preApprovals, err := a.preApprovals.List(ctx)
		if err != nil {
			return Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pre-approvals")
		}
		for _, p := range preApprovals {
			if !p.ScheduledDate.Before(midnight) && p.ScheduledDate.Before(nextMidnight) {
				snap.PreApprovedToday++
			}
		}
	}
	return snap, nil
}
