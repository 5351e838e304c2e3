// Package audit owns the append-only trail of domain events. Every
// state-changing operation in the check-in, pre-approval, and host workflows
// emits exactly one entry per logical transition.
package audit

import (
	"time"

	"securevms/pkg/domain"
)

// Severity grades how much attention an entry deserves during review.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category classifies entries by the subsystem that produced them. This
// drives retention and filtering, not behavior.
type Category string

const (
	CategoryVisitorManagement Category = "visitor_management"
	CategoryUserManagement    Category = "user_management"
	CategorySecurity          Category = "security"
	CategorySystem            Category = "system"
)

// Action names a logical state transition in the audit taxonomy.
type Action string

const (
	// Visitor lifecycle
	ActionVisitorCreated    Action = "visitor_created"
	ActionVisitorCheckIn    Action = "visitor_checkin"
	ActionVisitorApproved   Action = "visitor_approved"
	ActionVisitorDenied     Action = "visitor_denied"
	ActionVisitorCancelled  Action = "visitor_cancelled"
	ActionVisitorCheckedOut Action = "visitor_checked_out"

	// Blacklist
	ActionVisitorBlacklisted   Action = "visitor_blacklisted"
	ActionVisitorUnblacklisted Action = "visitor_unblacklisted"

	// Pre-approval lifecycle
	ActionPreApprovalCreated   Action = "preapproval_created"
	ActionPreApprovalUsed      Action = "preapproval_used"
	ActionPreApprovalCancelled Action = "preapproval_cancelled"
	ActionPreApprovalExpired   Action = "preapproval_expired"
	ActionPreApprovalReminder  Action = "preapproval_reminder"

	// Host lifecycle
	ActionHostRegistration Action = "host_registration"
	ActionHostApproved     Action = "host_approved"
	ActionHostDenied       Action = "host_denied"
	ActionHostDeactivated  Action = "host_deactivated"
	ActionHostReactivated  Action = "host_reactivated"
	ActionHostLogin        Action = "host_login"

	// Notifications and policy
	ActionNotificationSentEmail Action = "notification_sent_email"
	ActionNotificationSentSMS   Action = "notification_sent_sms"
	ActionSystemRulesUpdated    Action = "system_rules_updated"
)

// actionCategories maps each action to the category it is filed under.
var actionCategories = map[Action]Category{
	ActionVisitorCreated:    CategoryVisitorManagement,
	ActionVisitorCheckIn:    CategoryVisitorManagement,
	ActionVisitorApproved:   CategoryVisitorManagement,
	ActionVisitorDenied:     CategoryVisitorManagement,
	ActionVisitorCancelled:  CategoryVisitorManagement,
	ActionVisitorCheckedOut: CategoryVisitorManagement,

	ActionVisitorBlacklisted:   CategorySecurity,
	ActionVisitorUnblacklisted: CategorySecurity,

	ActionPreApprovalCreated:   CategoryVisitorManagement,
	ActionPreApprovalUsed:      CategoryVisitorManagement,
	ActionPreApprovalCancelled: CategoryVisitorManagement,
	ActionPreApprovalExpired:   CategoryVisitorManagement,
	ActionPreApprovalReminder:  CategoryVisitorManagement,

	ActionHostRegistration: CategoryUserManagement,
	ActionHostApproved:     CategoryUserManagement,
	ActionHostDenied:       CategoryUserManagement,
	ActionHostDeactivated:  CategoryUserManagement,
	ActionHostReactivated:  CategoryUserManagement,
	ActionHostLogin:        CategoryUserManagement,

	ActionNotificationSentEmail: CategorySystem,
	ActionNotificationSentSMS:   CategorySystem,
	ActionSystemRulesUpdated:    CategorySystem,
}

// CategoryOf returns the category an action is filed under. Unknown actions
// default to CategorySystem.
func CategoryOf(action Action) Category {
	if cat, ok := actionCategories[action]; ok {
		return cat
	}
	return CategorySystem
}

// Entry is one immutable audit record. Actor and target names are snapshots
// taken at emission time; later renames never rewrite history.
type Entry struct {
	ID         string       `json:"id"`
	Timestamp  time.Time    `json:"timestamp"`
	Action     Action       `json:"action"`
	ActorID    string       `json:"actor_id"`
	ActorName  string       `json:"actor_name"`
	ActorRole  domain.Role  `json:"actor_role"`
	TargetID   string       `json:"target_id,omitempty"`
	TargetName string       `json:"target_name,omitempty"`
	Details    string       `json:"details"`
	IPAddress  string       `json:"ip_address"`
	Severity   Severity     `json:"severity"`
	Category   Category     `json:"category"`
	RequestID  string       `json:"request_id,omitempty"`
}

// Filter selects entries in Query. Text is a case-insensitive substring match
// on actor name, target name, and details; the other fields match exactly when
// non-zero.
type Filter struct {
	Text     string
	Action   Action
	Severity Severity
	Category Category
}
