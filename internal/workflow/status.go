// Package workflow defines the claim lifecycle state machine: the closed
// sets of claim statuses and user roles, and the role-gated transition
// table that is the single source of truth for which status changes are
// legal. The package is pure; persistence and authentication are the
// caller's concern.
package workflow

import "github.com/GenAICloudDevOps/AutoInsuranceClaimsProcessing/internal/errors"

// Status is a claim lifecycle status.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusUnderReview   Status = "under_review"
	StatusAssigned      Status = "assigned"
	StatusInvestigating Status = "investigating"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusSettled       Status = "settled"
)

// AllStatuses lists every status in workflow order. Tests iterate this to
// cover the full cross-product.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusUnderReview,
	StatusAssigned,
	StatusInvestigating,
	StatusApproved,
	StatusRejected,
	StatusSettled,
}

// ParseStatus validates a raw string against the closed status set.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.InvalidInput("status", "unknown claim status "+s)
}

// IsTerminal reports whether s has no outgoing transitions for any role.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusSettled
}

// Role is a user role. Roles are not hierarchical for transition
// purposes; each (status, role) pair has its own allow-list.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdjuster Role = "adjuster"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// AllRoles lists every role.
var AllRoles = []Role{
	RoleCustomer,
	RoleAgent,
	RoleAdjuster,
	RoleManager,
	RoleAdmin,
}

// ParseRole validates a raw string against the closed role set.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", errors.InvalidInput("role", "unknown role "+s)
}
