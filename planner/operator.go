// Package planner turns a SCIM-style boolean filter into the minimum-cost
// plan executable against a wide-column store: either a set of index-backed
// partition queries, each with an optional sort-key range and a residual
// post-filter, or a single full scan.
package planner

// Operator is an atomic comparison operator a filter leaf can carry.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpBetween
	OpStartsWith
	OpExists
	OpNotExists
)

func (o Operator) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpBetween:
		return "BETWEEN"
	case OpStartsWith:
		return "startsWith"
	case OpExists:
		return "exists"
	case OpNotExists:
		return "notExists"
	default:
		return "unknown"
	}
}

// indexable reports whether an operator can drive a store-side key
// condition (partition equality or sort-key range), per spec §4.4 step 4.
func (o Operator) indexable() bool {
	switch o {
	case OpEq, OpLt, OpLe, OpGt, OpGe, OpBetween, OpStartsWith:
		return true
	default:
		return false
	}
}

// negate returns the operator representing NOT(leaf) and whether that
// negation is representable as a single operator (spec §4.4 step 2).
// BETWEEN and startsWith have no single-operator negation and are reported
// as not representable; callers surface ErrUnsupportedQuery.
func negate(o Operator) (Operator, bool) {
	switch o {
	case OpEq:
		return OpNe, true
	case OpNe:
		return OpEq, true
	case OpLt:
		return OpGe, true
	case OpLe:
		return OpGt, true
	case OpGt:
		return OpLe, true
	case OpGe:
		return OpLt, true
	case OpExists:
		return OpNotExists, true
	case OpNotExists:
		return OpExists, true
	default:
		return o, false
	}
}
