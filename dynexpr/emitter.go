// Package dynexpr lowers a planner.KeyCondition and its residual products
// to DynamoDB-native expression syntax, via
// github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression (the same
// package 2lar-b2's QueryBuilder wraps). The expression package already
// generates fresh, deterministic "#n"/":v" placeholders per build, which is
// exactly what spec §4.3 asks the ExpressionBuilder/DynamoExpressionEmitter
// to provide; this package is a thin domain adapter on top of it rather
// than a hand-rolled placeholder allocator.
package dynexpr

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/dynamodap/attrmodel"
	"github.com/jacentio/dynamodap/planner"
)

// QueryExpression is the emitted form of one planner.PlannedQuery: a key
// condition string, an optional filter string for the OR-ed residuals, and
// their shared name/value maps.
type QueryExpression struct {
	KeyCondition     string
	Filter           string
	ExpressionNames  map[string]string
	ExpressionValues map[string]types.AttributeValue
}

// EmitQuery lowers one PlannedQuery to store-native expression strings.
func EmitQuery(pq planner.PlannedQuery) (QueryExpression, error) {
	keyCond, err := keyConditionBuilder(pq.KeyCondition)
	if err != nil {
		return QueryExpression{}, err
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	// An empty residual product always holds, so the OR of the residuals
	// needs no store-side filter as soon as any one of them is empty.
	hasResidual := len(pq.Residuals) > 0
	for _, r := range pq.Residuals {
		if len(r) == 0 {
			hasResidual = false
			break
		}
	}
	if hasResidual {
		filterCond, err := residualsCondition(pq.Residuals)
		if err != nil {
			return QueryExpression{}, err
		}
		builder = builder.WithFilter(filterCond)
	}

	expr, err := builder.Build()
	if err != nil {
		return QueryExpression{}, fmt.Errorf("dynexpr: build query expression: %w", err)
	}

	out := QueryExpression{
		KeyCondition:     *expr.KeyCondition(),
		ExpressionNames:  expr.Names(),
		ExpressionValues: expr.Values(),
	}
	if hasResidual {
		out.Filter = *expr.Filter()
	}
	return out, nil
}

// ScanExpression is the emitted form of a full-scan plan (spec §4.4 "emit
// UsingScan with the full DNF as filter").
type ScanExpression struct {
	Filter           string
	ExpressionNames  map[string]string
	ExpressionValues map[string]types.AttributeValue
}

// EmitScan lowers a full DNF (the products of a UsingScan plan) to a single
// store-native FilterExpression. When excludeSecondaryItems is true, the
// filter additionally requires the scanned pk to begin with "ai#" (spec
// §4.7 getAll).
func EmitScan(products []planner.Product, excludeSecondaryItems bool) (ScanExpression, error) {
	cond, err := residualsCondition(products)
	if err != nil {
		return ScanExpression{}, err
	}
	if excludeSecondaryItems {
		cond = cond.And(expression.Name("pk").BeginsWith("ai#"))
	}

	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return ScanExpression{}, fmt.Errorf("dynexpr: build scan expression: %w", err)
	}

	return ScanExpression{
		Filter:           *expr.Filter(),
		ExpressionNames:  expr.Names(),
		ExpressionValues: expr.Values(),
	}, nil
}

// residualsCondition builds the OR of ANDs condition for a list of
// products, used both as the store-side best-effort filter and (conceptually)
// mirrors planner.EvaluateProducts' in-process semantics (spec §4.5).
func residualsCondition(products []planner.Product) (expression.ConditionBuilder, error) {
	var combined *expression.ConditionBuilder
	for _, p := range products {
		cond, err := productCondition(p)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		if combined == nil {
			combined = &cond
			continue
		}
		next := combined.Or(cond)
		combined = &next
	}
	if combined == nil {
		return expression.ConditionBuilder{}, fmt.Errorf("dynexpr: no products to build a condition from")
	}
	return *combined, nil
}

func productCondition(p planner.Product) (expression.ConditionBuilder, error) {
	var combined *expression.ConditionBuilder
	for _, term := range p {
		cond, err := termCondition(term)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		if combined == nil {
			combined = &cond
			continue
		}
		next := combined.And(cond)
		combined = &next
	}
	if combined == nil {
		return expression.ConditionBuilder{}, fmt.Errorf("dynexpr: empty product")
	}
	return *combined, nil
}

func termCondition(t *planner.Leaf) (expression.ConditionBuilder, error) {
	name := expression.Name(t.Attr.Name)
	switch t.Op {
	case planner.OpEq:
		return name.Equal(expression.Value(t.Value)), nil
	case planner.OpNe:
		return name.NotEqual(expression.Value(t.Value)), nil
	case planner.OpLt:
		return name.LessThan(expression.Value(t.Value)), nil
	case planner.OpLe:
		return name.LessThanEqual(expression.Value(t.Value)), nil
	case planner.OpGt:
		return name.GreaterThan(expression.Value(t.Value)), nil
	case planner.OpGe:
		return name.GreaterThanEqual(expression.Value(t.Value)), nil
	case planner.OpBetween:
		return name.Between(expression.Value(t.Value), expression.Value(t.High)), nil
	case planner.OpStartsWith:
		s, ok := t.Value.(string)
		if !ok {
			return expression.ConditionBuilder{}, fmt.Errorf("dynexpr: startsWith requires a string literal on %q", t.Attr.Name)
		}
		return expression.BeginsWith(name, s), nil
	case planner.OpExists:
		return expression.AttributeExists(name), nil
	case planner.OpNotExists:
		return expression.AttributeNotExists(name), nil
	default:
		return expression.ConditionBuilder{}, fmt.Errorf("dynexpr: unsupported operator %v in filter context", t.Op)
	}
}

// keyConditionBuilder renders a KeyCondition's partition equality and
// optional sort-key range the way DynamoDB key conditions require: no OR,
// no NotEqual, no attribute_exists -- just =, <, <=, >, >=, BETWEEN, and
// begins_with (spec §4.3's "store key context" column).
//
// A PrimaryKeyIndex carries no physical partition attribute of its own --
// it models a lookup by one of the accounts table's unique attributes via
// the fan-out pk (spec §4.2: "an unnamed partition-only index over a
// synthesized 'uniqueness' attribute derived from pk"). Its Partition leaf
// therefore still names the logical attribute (e.g. "user_name"), which
// must be rewritten here to the physical condition DynamoDB will actually
// accept: pk = UniquenessPrefix + literal.
func keyConditionBuilder(kc planner.KeyCondition) (expression.KeyConditionBuilder, error) {
	kcb, err := partitionConditionBuilder(kc)
	if err != nil {
		return expression.KeyConditionBuilder{}, err
	}
	if kc.Sort == nil {
		return kcb, nil
	}

	sortName := kc.Sort.Attr.Name
	var sortCond expression.KeyConditionBuilder
	switch kc.Sort.Op {
	case planner.OpEq:
		sortCond = expression.Key(sortName).Equal(expression.Value(kc.Sort.Value))
	case planner.OpLt:
		sortCond = expression.Key(sortName).LessThan(expression.Value(kc.Sort.Value))
	case planner.OpLe:
		sortCond = expression.Key(sortName).LessThanEqual(expression.Value(kc.Sort.Value))
	case planner.OpGt:
		sortCond = expression.Key(sortName).GreaterThan(expression.Value(kc.Sort.Value))
	case planner.OpGe:
		sortCond = expression.Key(sortName).GreaterThanEqual(expression.Value(kc.Sort.Value))
	case planner.OpBetween:
		sortCond = expression.Key(sortName).Between(expression.Value(kc.Sort.Value), expression.Value(kc.Sort.High))
	case planner.OpStartsWith:
		s, ok := kc.Sort.Value.(string)
		if !ok {
			return expression.KeyConditionBuilder{}, fmt.Errorf("dynexpr: startsWith sort key requires a string literal on %q", sortName)
		}
		sortCond = expression.Key(sortName).BeginsWith(s)
	default:
		return expression.KeyConditionBuilder{}, fmt.Errorf("dynexpr: operator %v cannot drive a sort-key condition", kc.Sort.Op)
	}

	return kcb.And(sortCond), nil
}

// partitionConditionBuilder renders the KeyCondition's partition equality.
// Any index kind other than PrimaryKeyIndex keys on its own physical
// partition attribute directly; a PrimaryKeyIndex keys on pk, with the
// literal rewritten through Index.Unique.UniquenessValueFrom (spec §4.2).
func partitionConditionBuilder(kc planner.KeyCondition) (expression.KeyConditionBuilder, error) {
	if kc.Index.Kind != attrmodel.PrimaryKeyIndex {
		return expression.Key(kc.Partition.Attr.Name).Equal(expression.Value(kc.Partition.Value)), nil
	}

	if kc.Index.Unique == nil {
		return expression.KeyConditionBuilder{}, fmt.Errorf("dynexpr: primary key index %q has no Unique attribute", kc.Partition.Attr.Name)
	}
	literal, ok := kc.Partition.Value.(string)
	if !ok {
		return expression.KeyConditionBuilder{}, fmt.Errorf("dynexpr: primary key index on %q requires a string literal", kc.Index.Unique.Name)
	}
	return expression.Key("pk").Equal(expression.Value(kc.Index.Unique.UniquenessValueFrom(literal))), nil
}
