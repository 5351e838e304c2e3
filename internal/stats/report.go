package stats

import (
	"context"
	"sort"
	"time"

	"securevms/internal/audit"
	"securevms/internal/visitor/models"
	dErrors "securevms/pkg/domain-errors"
)

// CompanyCount is one entry of the per-company ranking.
type CompanyCount struct {
	Company string `json:"company"`
	Visits  int    `json:"visits"`
}

// Report summarizes visit activity over a closed date range.
type Report struct {
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	TotalCheckIns  int            `json:"totalCheckIns"`
	Approved       int            `json:"approved"`
	Denied         int            `json:"denied"`
	Cancelled      int            `json:"cancelled"`
	CheckedOut     int            `json:"checkedOut"`
	UniqueVisitors int            `json:"uniqueVisitors"`
	ByHost         map[string]int `json:"byHost"`
	ByPurpose      map[string]int `json:"byPurpose"`
	TopCompanies   []CompanyCount `json:"topCompanies,omitempty"`

	// SecurityIncidents counts high and critical audit entries in the range.
	// Zero when no audit source is wired.
	SecurityIncidents int `json:"securityIncidents"`
}

const topCompaniesLimit = 5

// Report computes activity between start and end inclusive of start,
// exclusive of end.
func (a *Aggregator) Report(ctx context.Context, start, end time.Time) (Report, error) {
	if !start.Before(end) {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, "report start must precede end")
	}
	visitors, err := a.visitors.List(ctx)
	if err != nil {
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visitors")
	}
	rep := Report{
		Start:     start,
		End:       end,
		ByHost:    make(map[string]int),
		ByPurpose: make(map[string]int),
	}
	byCompany := make(map[string]int)
	for _, v := range visitors {
		seen := false
		for i := range v.CheckIns {
			ci := &v.CheckIns[i]
			if ci.CheckInTime.Before(start) || !ci.CheckInTime.Before(end) {
				continue
			}
			seen = true
			rep.TotalCheckIns++
			rep.ByHost[ci.HostName]++
			if v.Company != "" {
				byCompany[v.Company]++
			}
			if ci.Purpose != "" {
				rep.ByPurpose[ci.Purpose]++
			}
			switch ci.Status {
			case models.StatusApproved:
				rep.Approved++
			case models.StatusDenied:
				rep.Denied++
			case models.StatusCancelled:
				rep.Cancelled++
			case models.StatusCheckedOut:
				rep.CheckedOut++
			}
		}
		if seen {
			rep.UniqueVisitors++
		}
	}
	rep.TopCompanies = rankCompanies(byCompany)

	if a.auditTrail != nil {
		entries, err := a.auditTrail.List(ctx)
		if err != nil {
			return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
		}
		for _, e := range entries {
			if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
				continue
			}
			if e.Severity == audit.SeverityHigh || e.Severity == audit.SeverityCritical {
				rep.SecurityIncidents++
			}
		}
	}
	return rep, nil
}

func rankCompanies(byCompany map[string]int) []CompanyCount {
	ranked := make([]CompanyCount, 0, len(byCompany))
	for company, visits := range byCompany {
		ranked = append(ranked, CompanyCount{Company: company, Visits: visits})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Visits != ranked[j].Visits {
			return ranked[i].Visits > ranked[j].Visits
		}
		return ranked[i].Company < ranked[j].Company
	})
	if len(ranked) > topCompaniesLimit {
		ranked = ranked[:topCompaniesLimit]
	}
	return ranked
}
