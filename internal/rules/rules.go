// Package rules owns the mutable system policy consulted before any
// policy-dependent transition. Updates take effect immediately for future
// decisions and never rewrite past records: a pre-approval keeps the expiry
// computed from the policy in force at its creation.
package rules

import (
	dErrors "securevms/pkg/domain-errors"
)

// Rules is the process-wide visitor policy.
type Rules struct {
	MaxVisitorsPerHostPerDay              int  `json:"max_visitors_per_host_per_day"`
	RequirePreApprovalForExternalVisitors bool `json:"require_pre_approval_for_external_visitors"`
	MaxWaitTimeBeforeAlert                int  `json:"max_wait_time_before_alert"` // minutes
	AutoExpirePreApprovalsAfter           int  `json:"auto_expire_pre_approvals_after"` // hours
	RequireGovernmentID                   bool `json:"require_government_id"`
	AllowWalkInVisitors                   bool `json:"allow_walk_in_visitors"`
}

// Defaults returns the policy a fresh deployment starts with.
func Defaults() Rules {
	return Rules{
		MaxVisitorsPerHostPerDay:              5,
		RequirePreApprovalForExternalVisitors: false,
		MaxWaitTimeBeforeAlert:                15,
		AutoExpirePreApprovalsAfter:           24,
		RequireGovernmentID:                   true,
		AllowWalkInVisitors:                   true,
	}
}

// Patch is a named-field update. Nil fields are left untouched; there is no
// open-ended merge path.
type Patch struct {
	MaxVisitorsPerHostPerDay              *int  `json:"max_visitors_per_host_per_day,omitempty"`
	RequirePreApprovalForExternalVisitors *bool `json:"require_pre_approval_for_external_visitors,omitempty"`
	MaxWaitTimeBeforeAlert                *int  `json:"max_wait_time_before_alert,omitempty"`
	AutoExpirePreApprovalsAfter           *int  `json:"auto_expire_pre_approvals_after,omitempty"`
	RequireGovernmentID                   *bool `json:"require_government_id,omitempty"`
	AllowWalkInVisitors                   *bool `json:"allow_walk_in_visitors,omitempty"`
}

// Validate rejects patches that would leave the policy unusable.
func (p Patch) Validate() error {
	if p.MaxVisitorsPerHostPerDay != nil && *p.MaxVisitorsPerHostPerDay < 1 {
		return dErrors.New(dErrors.CodeValidation, "max visitors per host per day must be at least 1")
	}
	if p.MaxWaitTimeBeforeAlert != nil && *p.MaxWaitTimeBeforeAlert < 1 {
		return dErrors.New(dErrors.CodeValidation, "max wait time before alert must be at least 1 minute")
	}
	if p.AutoExpirePreApprovalsAfter != nil && *p.AutoExpirePreApprovalsAfter < 1 {
		return dErrors.New(dErrors.CodeValidation, "auto-expire window must be at least 1 hour")
	}
	return nil
}

// Fields lists the names of the fields a patch sets, for audit details.
func (p Patch) Fields() []string {
	var fields []string
	if p.MaxVisitorsPerHostPerDay != nil {
		fields = append(fields, "max_visitors_per_host_per_day")
	}
	if p.RequirePreApprovalForExternalVisitors != nil {
		fields = append(fields, "require_pre_approval_for_external_visitors")
	}
	if p.MaxWaitTimeBeforeAlert != nil {
		fields = append(fields, "max_wait_time_before_alert")
	}
	if p.AutoExpirePreApprovalsAfter != nil {
		fields = append(fields, "auto_expire_pre_approvals_after")
	}
	if p.RequireGovernmentID != nil {
		fields = append(fields, "require_government_id")
	}
	if p.AllowWalkInVisitors != nil {
		fields = append(fields, "allow_walk_in_visitors")
	}
	return fields
}

// apply returns a copy of r with the patch's set fields replaced.
func (p Patch) apply(r Rules) Rules {
	if p.MaxVisitorsPerHostPerDay != nil {
		r.MaxVisitorsPerHostPerDay = *p.MaxVisitorsPerHostPerDay
	}
	if p.RequirePreApprovalForExternalVisitors != nil {
		r.RequirePreApprovalForExternalVisitors = *p.RequirePreApprovalForExternalVisitors
	}
	if p.MaxWaitTimeBeforeAlert != nil {
		r.MaxWaitTimeBeforeAlert = *p.MaxWaitTimeBeforeAlert
	}
	if p.AutoExpirePreApprovalsAfter != nil {
		r.AutoExpirePreApprovalsAfter = *p.AutoExpirePreApprovalsAfter
	}
	if p.RequireGovernmentID != nil {
		r.RequireGovernmentID = *p.RequireGovernmentID
	}
	if p.AllowWalkInVisitors != nil {
		r.AllowWalkInVisitors = *p.AllowWalkInVisitors
	}
	return r
}
