package planner

import (
	"fmt"

	"github.com/jacentio/dynamodap/attrmodel"
)

// Expr is a node in a boolean filter tree: AndExpr, OrExpr, NotExpr, or
// *Leaf. Trees are built by Parse (over SCIM attribute paths) and turned
// into a table-bound tree by Resolve (over *attrmodel.Attribute).
type Expr interface {
	exprNode()
}

// AndExpr is a conjunction of two or more sub-expressions.
type AndExpr struct{ X []Expr }

func (*AndExpr) exprNode() {}

// OrExpr is a disjunction of two or more sub-expressions.
type OrExpr struct{ X []Expr }

func (*OrExpr) exprNode() {}

// NotExpr negates its sub-expression.
type NotExpr struct{ X Expr }

func (*NotExpr) exprNode() {}

// Leaf is an atomic comparison (attribute-path, operator, literal). Path is
// populated by the parser; Attr is filled in by Resolve once the path has
// been mapped through a TableDescriptor. Value holds the single literal for
// every operator except OpBetween, which also uses High.
type Leaf struct {
	Path  string
	Attr  *attrmodel.Attribute
	Op    Operator
	Value any
	High  any
}

func (*Leaf) exprNode() {}

// Resolve maps every leaf's attribute path through table, replacing Path
// with a bound Attr and validating that the operator is meaningful for that
// attribute. Unknown paths and operator/type mismatches return
// ErrUnsupportedQuery (spec §4.4 step 1): the planner never guesses intent.
func Resolve(table *attrmodel.TableDescriptor, e Expr) (Expr, error) {
	switch v := e.(type) {
	case *Leaf:
		attr, ok := table.Resolve(v.Path)
		if !ok {
			return nil, fmt.Errorf("%w: unknown attribute path %q", ErrUnsupportedQuery, v.Path)
		}
		if v.Op == OpStartsWith && attr.Kind != attrmodel.KindString {
			return nil, fmt.Errorf("%w: startsWith on non-string attribute %q", ErrUnsupportedQuery, v.Path)
		}
		if (v.Op == OpLt || v.Op == OpLe || v.Op == OpGt || v.Op == OpGe || v.Op == OpBetween) && attr.Comparator == nil {
			return nil, fmt.Errorf("%w: attribute %q has no ordering and cannot be compared", ErrUnsupportedQuery, v.Path)
		}
		return &Leaf{Path: v.Path, Attr: attr, Op: v.Op, Value: v.Value, High: v.High}, nil
	case *AndExpr:
		out := make([]Expr, len(v.X))
		for i, c := range v.X {
			r, err := Resolve(table, c)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &AndExpr{X: out}, nil
	case *OrExpr:
		out := make([]Expr, len(v.X))
		for i, c := range v.X {
			r, err := Resolve(table, c)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &OrExpr{X: out}, nil
	case *NotExpr:
		r, err := Resolve(table, v.X)
		if err != nil {
			return nil, err
		}
		return &NotExpr{X: r}, nil
	default:
		return nil, fmt.Errorf("planner: unknown expression node %T", e)
	}
}
