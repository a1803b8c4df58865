package authorization

// Status represents the lifecycle state of an authorization.
// The forward chain is requested → approved → active → expiring → expired.
// Denied and cancelled are terminal and reachable from any non-terminal state
// by explicit manual action.
type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusExpiring  Status = "expiring"
	StatusExpired   Status = "expired"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
)

// validTransitions is the state machine transition table.
// EXPIRING is monotonic: nothing demotes it back to ACTIVE, even when units
// are removed later.
var validTransitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusDenied, StatusCancelled},
	StatusApproved:  {StatusActive, StatusDenied, StatusCancelled},
	StatusActive:    {StatusExpiring, StatusExpired, StatusDenied, StatusCancelled},
	StatusExpiring:  {StatusExpired, StatusDenied, StatusCancelled},
	StatusExpired:   {},
	StatusDenied:    {},
	StatusCancelled: {},
}

// IsValid returns true if the status is a known lifecycle state
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal returns true if no further transitions are allowed
func (s Status) IsTerminal() bool {
	targets, ok := validTransitions[s]
	return ok && len(targets) == 0
}

// CanTransitionTo returns true if the state machine allows moving to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, target := range validTransitions[s] {
		if target == next {
			return true
		}
	}
	return false
}

// OverlapStatuses are the statuses that count when detecting conflicting
// authorizations for the same client and date range.
var OverlapStatuses = []Status{StatusActive, StatusApproved, StatusExpiring}
