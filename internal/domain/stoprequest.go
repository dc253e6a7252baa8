package domain

import "time"

// StopScope identifies what a stop request targets. A request is scoped
// to exactly one of graph or execution, never both.
type StopScope string

const (
	StopScopeGraph     StopScope = "graph"
	StopScopeExecution StopScope = "execution"
)

// StopStatus is the request lifecycle; handled is terminal.
type StopStatus string

const (
	StopRequested StopStatus = "requested"
	StopHandled   StopStatus = "handled"
)

// StopRequest is an append-only cooperative cancellation signal. Rows
// are never deleted; multiple requested rows per scope are permitted
// and "has active" is a membership test over them.
type StopRequest struct {
	ID          string     `json:"id"`
	Scope       StopScope  `json:"scope"`
	ScopeID     string     `json:"scope_id"`
	Status      StopStatus `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	HandledAt   *time.Time `json:"handled_at,omitempty"`
}

// NewStopRequest builds a requested stop row for the given scope.
func NewStopRequest(scope StopScope, scopeID string) *StopRequest {
	return &StopRequest{
		ID:          NewStopID(),
		Scope:       scope,
		ScopeID:     scopeID,
		Status:      StopRequested,
		RequestedAt: time.Now().UTC(),
	}
}
