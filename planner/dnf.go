package planner

import (
	"fmt"
	"sort"

	"github.com/jacentio/dynamodap/attrmodel"
)

// Product is one conjunction in disjunctive normal form: a set of terms
// that must all hold.
type Product []*Leaf

// Normalize resolves expr's attribute paths against table and reduces it to
// disjunctive normal form (spec §4.4 steps 1-3): negations pushed to
// leaves, a != b split into (a < b) OR (a > b), contradictory products
// dropped, and exact-duplicate products collapsed.
func Normalize(table *attrmodel.TableDescriptor, expr Expr) ([]Product, error) {
	resolved, err := Resolve(table, expr)
	if err != nil {
		return nil, err
	}

	pushed, err := pushNot(resolved)
	if err != nil {
		return nil, err
	}

	split := splitNotEqual(pushed)

	raw := toDNF(split)

	return dedupe(raw), nil
}

func pushNot(e Expr) (Expr, error) {
	switch v := e.(type) {
	case *Leaf:
		return v, nil
	case *AndExpr:
		out := make([]Expr, len(v.X))
		for i, c := range v.X {
			r, err := pushNot(c)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &AndExpr{X: out}, nil
	case *OrExpr:
		out := make([]Expr, len(v.X))
		for i, c := range v.X {
			r, err := pushNot(c)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return &OrExpr{X: out}, nil
	case *NotExpr:
		switch inner := v.X.(type) {
		case *Leaf:
			nop, ok := negate(inner.Op)
			if !ok {
				return nil, fmt.Errorf("%w: cannot negate operator %v on %q", ErrUnsupportedQuery, inner.Op, inner.Path)
			}
			return pushNot(&Leaf{Path: inner.Path, Attr: inner.Attr, Op: nop, Value: inner.Value, High: inner.High})
		case *AndExpr:
			negs := make([]Expr, len(inner.X))
			for i, c := range inner.X {
				negs[i] = &NotExpr{X: c}
			}
			return pushNot(&OrExpr{X: negs})
		case *OrExpr:
			negs := make([]Expr, len(inner.X))
			for i, c := range inner.X {
				negs[i] = &NotExpr{X: c}
			}
			return pushNot(&AndExpr{X: negs})
		case *NotExpr:
			return pushNot(inner.X)
		default:
			return nil, fmt.Errorf("planner: unknown expression node %T", inner)
		}
	default:
		return nil, fmt.Errorf("planner: unknown expression node %T", e)
	}
}

// splitNotEqual replaces every OpNe leaf with an OR of the two sides the
// store can actually express (spec §4.4 step 2). This may multiply the
// final product count.
func splitNotEqual(e Expr) Expr {
	switch v := e.(type) {
	case *Leaf:
		if v.Op != OpNe {
			return v
		}
		return &OrExpr{X: []Expr{
			&Leaf{Path: v.Path, Attr: v.Attr, Op: OpLt, Value: v.Value},
			&Leaf{Path: v.Path, Attr: v.Attr, Op: OpGt, Value: v.Value},
		}}
	case *AndExpr:
		out := make([]Expr, len(v.X))
		for i, c := range v.X {
			out[i] = splitNotEqual(c)
		}
		return &AndExpr{X: out}
	case *OrExpr:
		out := make([]Expr, len(v.X))
		for i, c := range v.X {
			out[i] = splitNotEqual(c)
		}
		return &OrExpr{X: out}
	default:
		return e
	}
}

// toDNF distributes And over Or to produce the raw (pre-dedup) set of
// products. And{} (empty conjunction) is the identity product [] and Or{}
// (empty disjunction) contributes no products.
func toDNF(e Expr) []Product {
	switch v := e.(type) {
	case *Leaf:
		return []Product{{v}}
	case *AndExpr:
		acc := []Product{{}}
		for _, c := range v.X {
			childProducts := toDNF(c)
			var next []Product
			for _, p := range acc {
				for _, q := range childProducts {
					merged := make(Product, 0, len(p)+len(q))
					merged = append(merged, p...)
					merged = append(merged, q...)
					next = append(next, merged)
				}
			}
			acc = next
		}
		return acc
	case *OrExpr:
		var out []Product
		for _, c := range v.X {
			out = append(out, toDNF(c)...)
		}
		return out
	default:
		return nil
	}
}

// dedupe drops contradictory products (the same attribute equated to two
// different literals) and collapses exact term-set duplicates, preserving
// first-seen order (spec §4.4 step 3).
func dedupe(products []Product) []Product {
	seen := make(map[string]bool, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if isContradictory(p) {
			continue
		}
		key := productKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func isContradictory(p Product) bool {
	eqValues := make(map[*attrmodel.Attribute]any)
	for _, t := range p {
		if t.Op != OpEq {
			continue
		}
		if existing, ok := eqValues[t.Attr]; ok {
			if existing != t.Value {
				return true
			}
			continue
		}
		eqValues[t.Attr] = t.Value
	}
	return false
}

func productKey(p Product) string {
	terms := make([]string, len(p))
	for i, t := range p {
		terms[i] = fmt.Sprintf("%s|%d|%v|%v", t.Path, t.Op, t.Value, t.High)
	}
	sort.Strings(terms)
	return fmt.Sprint(terms)
}
