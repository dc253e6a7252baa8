package domain

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// ID prefixes keep cross-references in logs and event payloads unambiguous.
const (
	PrefixGraph     = "graph_"
	PrefixExecution = "exec_"
	PrefixStep      = "step_"
	PrefixStop      = "stop_"
)

func newID(prefix string) string {
	return prefix + ulid.Make().String()
}

// NewGraphID returns a fresh task graph identifier.
func NewGraphID() string { return newID(PrefixGraph) }

// NewExecutionID returns a fresh execution identifier.
func NewExecutionID() string { return newID(PrefixExecution) }

// NewStepID returns a fresh sub-step identifier.
func NewStepID() string { return newID(PrefixStep) }

// NewStopID returns a fresh stop request identifier.
func NewStopID() string { return newID(PrefixStop) }

// HasPrefix reports whether id carries the given prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}
