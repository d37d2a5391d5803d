package planner

import (
	"fmt"

	"github.com/jacentio/dynamodap/attrmodel"
)

// PlanKind distinguishes the two shapes a Plan can take.
type PlanKind int

const (
	// UsingQueries means the filter is served by one or more index-backed
	// partition queries, each with an optional sort-key range and a
	// residual post-filter.
	UsingQueries PlanKind = iota

	// UsingScan means no disjunct could be served by an index; the filter
	// is applied in full as a Scan FilterExpression.
	UsingScan
)

// KeyCondition is the portion of a plan handled by the store's index
// lookup: a partition equality plus an optional sort-key range.
type KeyCondition struct {
	Index     attrmodel.Index
	Partition *Leaf // always Op == OpEq
	Sort      *Leaf // nil if the index has no usable sort term
}

// identity is the merge key for "products that resolve to the identical
// KeyCondition" (spec §4.4 step 5).
func (k KeyCondition) identity() string {
	sortPart := "-"
	if k.Sort != nil {
		sortPart = fmt.Sprintf("%v|%v|%v", k.Sort.Op, k.Sort.Value, k.Sort.High)
	}
	return fmt.Sprintf("%s/%s=%v|%s", k.Index.Name, k.Partition.Attr.Name, k.Partition.Value, sortPart)
}

// PlannedQuery is one store-side Query: a KeyCondition plus the list of
// residual products (OR-ed together as the store FilterExpression and
// re-checked in-process via EvaluateProducts).
type PlannedQuery struct {
	KeyCondition KeyCondition
	Residuals    []Product
}

// Plan is the QueryPlanner's output (spec §4.4).
type Plan struct {
	Kind PlanKind

	// Queries holds one entry per distinct KeyCondition, in first-seen
	// order (spec §9 Note 2), only when Kind == UsingQueries.
	Queries []PlannedQuery

	// Products is the full normalized DNF this plan was built from. It is
	// kept regardless of Kind so Plan.Accepts can express the exact
	// accepted-set semantics the plan over-approximates via the store and
	// tightens back via the residual filter (spec §8 "Planner soundness").
	Products []Product
}

// Accepts reports whether item would be accepted by this plan's filter,
// independent of how the plan is executed against the store.
func (p *Plan) Accepts(item map[string]any) bool {
	return EvaluateProducts(p.Products, item)
}

// BuildPlan selects an index per product, merges products that land on the same
// KeyCondition, and caps the number of distinct KeyConditions at
// maxQueries (spec §4.4 steps 4-6). products should already be normalized
// DNF (see Normalize).
func BuildPlan(table *attrmodel.TableDescriptor, products []Product, maxQueries int) (*Plan, error) {
	if len(products) == 0 {
		// The filter is unsatisfiable (every disjunct was contradictory);
		// a zero-query plan matches nothing and costs no store round-trip.
		return &Plan{Kind: UsingQueries, Products: products}, nil
	}

	type choice struct {
		kc       KeyCondition
		residual Product
	}
	choices := make([]choice, 0, len(products))
	for _, p := range products {
		kc, residual, ok := chooseIndex(table, p)
		if !ok {
			return &Plan{Kind: UsingScan, Products: products}, nil
		}
		choices = append(choices, choice{kc: kc, residual: residual})
	}

	order := make([]string, 0, len(choices))
	byIdentity := make(map[string]*PlannedQuery, len(choices))
	for _, c := range choices {
		id := c.kc.identity()
		pq, ok := byIdentity[id]
		if !ok {
			pq = &PlannedQuery{KeyCondition: c.kc}
			byIdentity[id] = pq
			order = append(order, id)
		}
		pq.Residuals = append(pq.Residuals, c.residual)
	}

	if len(order) > maxQueries {
		return nil, fmt.Errorf("%w: %d key conditions exceeds max of %d", ErrQueryRequiresTooManyOperations, len(order), maxQueries)
	}

	queries := make([]PlannedQuery, len(order))
	for i, id := range order {
		queries[i] = *byIdentity[id]
	}

	return &Plan{Kind: UsingQueries, Queries: queries, Products: products}, nil
}

// chooseIndex picks the best index for a single product, in table's index
// declaration order (spec §4.4 step 4): among indexes with a partition
// term equated in the product, prefer one whose sort attribute also has an
// indexable comparator term; ties (and the no-sort-match case) fall back to
// declaration order. ok is false if no index has a usable partition term.
func chooseIndex(table *attrmodel.TableDescriptor, p Product) (KeyCondition, Product, bool) {
	var withSort, withoutSort *KeyCondition

	for _, idx := range table.Indexes {
		partitionTerm := findEq(p, idx.Partition)
		if partitionTerm == nil {
			continue
		}
		kc := KeyCondition{Index: idx, Partition: partitionTerm}
		if idx.Sort != nil {
			if sortTerm := findIndexable(p, idx.Sort); sortTerm != nil {
				kc.Sort = sortTerm
				if withSort == nil {
					k := kc
					withSort = &k
				}
				continue
			}
		}
		if withoutSort == nil {
			k := kc
			withoutSort = &k
		}
	}

	var chosen *KeyCondition
	switch {
	case withSort != nil:
		chosen = withSort
	case withoutSort != nil:
		chosen = withoutSort
	default:
		return KeyCondition{}, nil, false
	}

	residual := make(Product, 0, len(p))
	for _, t := range p {
		if t == chosen.Partition || (chosen.Sort != nil && t == chosen.Sort) {
			continue
		}
		residual = append(residual, t)
	}
	return *chosen, residual, true
}

func findEq(p Product, attr *attrmodel.Attribute) *Leaf {
	if attr == nil {
		return nil
	}
	for _, t := range p {
		if t.Attr == attr && t.Op == OpEq {
			return t
		}
	}
	return nil
}

func findIndexable(p Product, attr *attrmodel.Attribute) *Leaf {
	if attr == nil {
		return nil
	}
	for _, t := range p {
		if t.Attr == attr && t.Op.indexable() {
			return t
		}
	}
	return nil
}
