package planner

import "errors"

var (
	// ErrUnsupportedQuery is returned when the planner cannot express a
	// filter: an unknown attribute path, an operator that is meaningless
	// for the resolved attribute, or a negation with no single-operator
	// representation.
	ErrUnsupportedQuery = errors.New("planner: unsupported query")

	// ErrQueryRequiresTooManyOperations is returned when a filter's DNF
	// resolves to more distinct KeyConditions than the configured cap
	// (spec §4.4 step 6).
	ErrQueryRequiresTooManyOperations = errors.New("planner: query requires too many operations")
)
