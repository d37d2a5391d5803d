// Package attrmodel describes the typed attributes and index layout of a
// DynamoDB-backed entity, independent of any particular entity's Go type.
package attrmodel

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Kind identifies the physical DynamoDB type an Attribute encodes to.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

// Comparator orders two decoded values of the same Attribute, for sort-key
// attributes used by the query planner and for in-memory result sorting.
// It returns a negative number, zero, or a positive number the way
// sort.Interface-adjacent comparators conventionally do.
type Comparator func(a, b any) int

// Attribute is an immutable descriptor for one physical column. Attributes
// are constructed once per TableDescriptor (by the function that builds
// it) and compared by pointer identity inside the planner, never by value.
type Attribute struct {
	// Name is the physical column name, e.g. "userName".
	Name string

	// Kind is the attribute's native DynamoDB type.
	Kind Kind

	// UniquenessPrefix is non-empty for attributes that participate in the
	// accounts fan-out (§3): "ai#", "un#", "em#", "pn#". Empty for
	// attributes that are never used to derive a pk.
	UniquenessPrefix string

	// Comparator orders decoded values of this attribute; nil if this
	// attribute can never be a sort key or a getAll sort target.
	Comparator Comparator
}

// HashName returns the expression-attribute-name placeholder for this
// attribute, e.g. "#userName".
func (a *Attribute) HashName() string {
	return "#" + a.Name
}

// ColonName returns the base expression-attribute-value placeholder for
// this attribute, e.g. ":userName". Callers that need more than one
// occurrence in a single expression append a numeric suffix.
func (a *Attribute) ColonName() string {
	return ":" + a.Name
}

// Encode converts a decoded Go value to its DynamoDB wire representation.
func (a *Attribute) Encode(v any) (types.AttributeValue, error) {
	switch a.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("attrmodel: %s expects a string, got %T", a.Name, v)
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case KindNumber:
		switch n := v.(type) {
		case int64:
			return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)}, nil
		case float64:
			return &types.AttributeValueMemberN{Value: fmt.Sprintf("%g", n)}, nil
		default:
			return nil, fmt.Errorf("attrmodel: %s expects a number, got %T", a.Name, v)
		}
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("attrmodel: %s expects a bool, got %T", a.Name, v)
		}
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	default:
		return nil, fmt.Errorf("attrmodel: %s has unknown kind", a.Name)
	}
}

// Decode converts a DynamoDB wire value back to a Go value.
func (a *Attribute) Decode(av types.AttributeValue) (any, error) {
	switch a.Kind {
	case KindString:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("attrmodel: %s: expected S, got %T", a.Name, av)
		}
		return s.Value, nil
	case KindNumber:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("attrmodel: %s: expected N, got %T", a.Name, av)
		}
		return n.Value, nil
	case KindBool:
		b, ok := av.(*types.AttributeValueMemberBOOL)
		if !ok {
			return nil, fmt.Errorf("attrmodel: %s: expected BOOL, got %T", a.Name, av)
		}
		return b.Value, nil
	default:
		return nil, fmt.Errorf("attrmodel: %s has unknown kind", a.Name)
	}
}

// IsUnique reports whether this attribute carries a uniqueness prefix and
// therefore derives a fan-out pk.
func (a *Attribute) IsUnique() bool {
	return a.UniquenessPrefix != ""
}

// UniquenessValueFrom returns the pk value for this attribute's fan-out
// item, e.g. UniquenessPrefix "un#" + value "alice" -> "un#alice". The
// mapping is injective: distinct values never collide onto the same pk
// because the prefix namespaces each unique attribute.
func (a *Attribute) UniquenessValueFrom(value string) string {
	return a.UniquenessPrefix + value
}
