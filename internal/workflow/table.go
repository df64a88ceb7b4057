package workflow

// transitions is the claim status authorization table. It is the single
// source of truth for workflow policy: a transition from A to B is legal
// for a role only if B appears in transitions[A][role].
//
// Absent (status, role) pairs mean no transitions at all. Customers may
// create claims but never transition them, so the role never appears.
// rejected and settled are terminal: their rows are empty.
var transitions = map[Status]map[Role][]Status{
	StatusSubmitted: {
		RoleAgent:   {StatusUnderReview, StatusRejected},
		RoleManager: {StatusUnderReview, StatusAssigned},
		RoleAdmin:   {StatusUnderReview, StatusAssigned, StatusRejected},
	},
	StatusUnderReview: {
		RoleAgent:   {StatusRejected},
		RoleManager: {StatusAssigned, StatusRejected},
		RoleAdmin:   {StatusAssigned, StatusRejected},
	},
	StatusAssigned: {
		RoleAdjuster: {StatusInvestigating, StatusRejected},
		RoleManager:  {StatusInvestigating, StatusRejected},
		RoleAdmin:    {StatusInvestigating, StatusApproved, StatusRejected},
	},
	StatusInvestigating: {
		RoleAdjuster: {StatusApproved, StatusRejected},
		RoleManager:  {StatusApproved, StatusRejected},
		RoleAdmin:    {StatusApproved, StatusRejected, StatusSettled},
	},
	StatusApproved: {
		RoleManager: {StatusSettled},
		RoleAdmin:   {StatusSettled},
	},
	StatusRejected: {},
	StatusSettled:  {},
}

// AllowedNextStatuses returns the statuses the given role may move a claim
// to from the current status. The returned slice is a copy; it is empty
// (never nil-panicking) for any pair outside the table.
func AllowedNextStatuses(current Status, role Role) []Status {
	allowed := transitions[current][role]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether role may move a claim from one status to
// another.
func CanTransition(from, to Status, role Role) bool {
	for _, s := range transitions[from][role] {
		if s == to {
			return true
		}
	}
	return false
}
