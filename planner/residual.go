package planner

import (
	"strings"

	"github.com/jacentio/dynamodap/attrmodel"
)

// Evaluate runs a resolved, possibly un-normalized Expr tree (NotExpr nodes
// included) directly against a decoded item, keyed by physical attribute
// name. It is used by property tests to check planner soundness against
// Normalize+EvaluateProducts without distributing to DNF. A NotExpr is
// evaluated by pushing the negation down to the leaves the way Normalize
// does, so a negated comparison on an absent attribute is false.
func Evaluate(e Expr, item map[string]any) bool {
	switch v := e.(type) {
	case *Leaf:
		return evaluateLeaf(v, item)
	case *AndExpr:
		for _, c := range v.X {
			if !Evaluate(c, item) {
				return false
			}
		}
		return true
	case *OrExpr:
		for _, c := range v.X {
			if Evaluate(c, item) {
				return true
			}
		}
		return false
	case *NotExpr:
		pushed, err := pushNot(v)
		if err != nil {
			return false
		}
		return Evaluate(pushed, item)
	default:
		return false
	}
}

// EvaluateProduct reports whether every term in p holds against item: the
// "product holds" half of spec §4.5's "ANY product holds" = "ALL terms
// hold" residual re-check.
func EvaluateProduct(p Product, item map[string]any) bool {
	for _, t := range p {
		if !evaluateLeaf(t, item) {
			return false
		}
	}
	return true
}

// EvaluateProducts reports whether any product in products holds against
// item. This is filterWith (spec §4.5): the in-process re-check applied
// after a store Query/Scan returns items for a KeyCondition whose OR-ed
// residual filter only narrows, never replaces, the exact semantics.
func EvaluateProducts(products []Product, item map[string]any) bool {
	for _, p := range products {
		if EvaluateProduct(p, item) {
			return true
		}
	}
	return false
}

func evaluateLeaf(t *Leaf, item map[string]any) bool {
	v, present := item[t.Attr.Name]
	switch t.Op {
	case OpExists:
		return present
	case OpNotExists:
		return !present
	}
	if !present {
		return false
	}
	switch t.Op {
	case OpEq:
		return compareEqual(t.Attr, v, t.Value)
	case OpNe:
		return !compareEqual(t.Attr, v, t.Value)
	case OpLt:
		return compareOrdered(t.Attr, v, t.Value) < 0
	case OpLe:
		return compareOrdered(t.Attr, v, t.Value) <= 0
	case OpGt:
		return compareOrdered(t.Attr, v, t.Value) > 0
	case OpGe:
		return compareOrdered(t.Attr, v, t.Value) >= 0
	case OpBetween:
		return compareOrdered(t.Attr, v, t.Value) >= 0 && compareOrdered(t.Attr, v, t.High) <= 0
	case OpStartsWith:
		vs, ok1 := v.(string)
		ls, ok2 := t.Value.(string)
		return ok1 && ok2 && strings.HasPrefix(vs, ls)
	default:
		return false
	}
}

func compareEqual(attr *attrmodel.Attribute, a, b any) bool {
	if attr.Comparator != nil {
		return attr.Comparator(a, b) == 0
	}
	return a == b
}

func compareOrdered(attr *attrmodel.Attribute, a, b any) int {
	if attr.Comparator != nil {
		return attr.Comparator(a, b)
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	return 0
}
