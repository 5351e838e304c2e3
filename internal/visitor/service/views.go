package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"securevms/internal/visitor/models"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/requestcontext"
)

// Priority bands for the pending queue, derived from time waited.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	highPriorityAfter   = 20 * time.Minute
	mediumPriorityAfter = 10 * time.Minute
)

// QueueEntry is one pending check-in annotated for the security dashboard.
type QueueEntry struct {
	Visitor     *models.Visitor
	CheckIn     *models.CheckIn
	WaitTime    time.Duration
	Priority    string
	OverdueWait bool
}

// BadgeRecord resolves a badge to the visitor currently carrying it.
type BadgeRecord struct {
	Visitor *models.Visitor
	CheckIn *models.CheckIn
}

// PendingQueue returns pending check-ins ordered oldest arrival first.
func (s *Service) PendingQueue(ctx context.Context) ([]QueueEntry, error) {
	entries, err := s.collectPending(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CheckIn.CheckInTime.Before(entries[j].CheckIn.CheckInTime)
	})
	return entries, nil
}

// PriorityQueue returns pending check-ins longest-waiting first, banded by
// wait time and flagged once the wait crosses the alert threshold.
func (s *Service) PriorityQueue(ctx context.Context) ([]QueueEntry, error) {
	entries, err := s.collectPending(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WaitTime > entries[j].WaitTime
	})
	return entries, nil
}

func (s *Service) collectPending(ctx context.Context) ([]QueueEntry, error) {
	all, err := s.visitors.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	now := requestcontext.Now(ctx)
	alertAfter := time.Duration(s.policy.Current().MaxWaitTimeBeforeAlert) * time.Minute

	var entries []QueueEntry
	for _, v := range all {
		for i := range v.CheckIns {
			ci := &v.CheckIns[i]
			if ci.Status != models.StatusPending {
				continue
			}
			wait := ci.WaitTime(now)
			entries = append(entries, QueueEntry{
				Visitor:     v,
				CheckIn:     ci,
				WaitTime:    wait,
				Priority:    priorityFor(wait),
				OverdueWait: wait > alertAfter,
			})
		}
	}
	return entries, nil
}

func priorityFor(wait time.Duration) string {
	switch {
	case wait > highPriorityAfter:
		return PriorityHigh
	case wait > mediumPriorityAfter:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ActiveVisitors returns approved check-ins that have not checked out,
// the set currently on premises.
func (s *Service) ActiveVisitors(ctx context.Context) ([]BadgeRecord, error) {
	all, err := s.visitors.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	var records []BadgeRecord
	for _, v := range all {
		for i := range v.CheckIns {
			ci := &v.CheckIns[i]
			if ci.Status == models.StatusApproved {
				records = append(records, BadgeRecord{Visitor: v, CheckIn: ci})
			}
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CheckIn.CheckInTime.Before(records[j].CheckIn.CheckInTime)
	})
	return records, nil
}

// History returns all check-ins across visitors, newest first.
func (s *Service) History(ctx context.Context) ([]BadgeRecord, error) {
	all, err := s.visitors.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	var records []BadgeRecord
	for _, v := range all {
		for i := range v.CheckIns {
			records = append(records, BadgeRecord{Visitor: v, CheckIn: &v.CheckIns[i]})
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CheckIn.CheckInTime.After(records[j].CheckIn.CheckInTime)
	})
	return records, nil
}

// FindByBadge resolves an issued badge to its approved check-in. Badges on
// denied, cancelled, or checked-out visits do not resolve.
func (s *Service) FindByBadge(ctx context.Context, badgeNumber string) (*BadgeRecord, error) {
	badge := strings.TrimSpace(badgeNumber)
	if badge == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "badge number is required")
	}
	all, err := s.visitors.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	for _, v := range all {
		for i := range v.CheckIns {
			ci := &v.CheckIns[i]
			if ci.Status == models.StatusApproved && strings.EqualFold(ci.BadgeNumber, badge) {
				return &BadgeRecord{Visitor: v, CheckIn: ci}, nil
			}
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no active visit holds badge "+badge)
}

// Badge returns the badge details for one approved check-in, for reprint at
// the checkpoint. Check-ins in any other state carry no valid badge.
func (s *Service) Badge(ctx context.Context, visitorID domain.VisitorID, checkInID domain.CheckInID) (*BadgeRecord, error) {
	v, err := s.visitors.FindByID(ctx, visitorID)
	if err != nil {
		return nil, s.wrapLookup(err, "visitor")
	}
	ci := v.FindCheckIn(checkInID)
	if ci == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "check-in not found for visitor")
	}
	if ci.Status != models.StatusApproved {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"no badge for a check-in in status "+string(ci.Status))
	}
	return &BadgeRecord{Visitor: v, CheckIn: ci}, nil
}

// ListVisitors returns every visitor record.
func (s *Service) ListVisitors(ctx context.Context) ([]*models.Visitor, error) {
	all, err := s.visitors.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all, nil
}
