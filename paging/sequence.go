// Package paging wraps the AWS SDK's Query/Scan paginators in a single
// lazy, restart-unsafe sequence (spec §4.6). It is the generalization of
// the paginator loop the teacher repeats verbatim across Store.Query,
// Store.queryChildrenSingleShard, and the per-shard goroutines in
// Store.QueryAllChildren: build a *dynamodb.QueryPaginator (or
// *dynamodb.ScanPaginator), call NextPage until HasMorePages is false,
// unmarshal each page's items. PaginationHelpers generalizes that loop
// across both request kinds and exposes it as a pull-based Sequence
// instead of forcing every caller to buffer the whole result set.
package paging

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// QueryPaginator is the subset of *dynamodb.QueryPaginator this package
// consumes, so tests can fake it without a live table.
type QueryPaginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ScanPaginator is the subset of *dynamodb.ScanPaginator this package
// consumes.
type ScanPaginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Sequence is a one-shot, forward-only walk over a DynamoDB paginator's
// pages. It is restart-unsafe: once exhausted (or once an error is
// returned), a Sequence must be discarded, matching the teacher's
// paginator loops, which never rewind.
type Sequence struct {
	next func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error)
	done bool
}

// NewQuerySequence wraps a QueryPaginator (typically dynamodb.NewQueryPaginator)
// as a page-at-a-time Sequence.
func NewQuerySequence(p QueryPaginator) *Sequence {
	return &Sequence{
		next: func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
			if !p.HasMorePages() {
				return nil, false, nil
			}
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, false, fmt.Errorf("paging: query next page: %w", err)
			}
			return page.Items, true, nil
		},
	}
}

// NewScanSequence wraps a ScanPaginator (typically dynamodb.NewScanPaginator)
// as a page-at-a-time Sequence.
func NewScanSequence(p ScanPaginator) *Sequence {
	return &Sequence{
		next: func(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
			if !p.HasMorePages() {
				return nil, false, nil
			}
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, false, fmt.Errorf("paging: scan next page: %w", err)
			}
			return page.Items, true, nil
		},
	}
}

// Next pulls the next page's raw items. The second return value is false
// once the sequence is exhausted; callers must stop calling Next at that
// point.
func (s *Sequence) Next(ctx context.Context) ([]map[string]types.AttributeValue, bool, error) {
	if s.done {
		return nil, false, nil
	}
	items, ok, err := s.next(ctx)
	if err != nil {
		s.done = true
		return nil, false, err
	}
	if !ok {
		s.done = true
		return nil, false, nil
	}
	return items, true, nil
}

// Collect drains the whole sequence and unmarshals every raw item into a
// T, matching the teacher's eager Store.Query/queryChildrenSingleShard
// loops. Prefer Next directly when the caller wants to stream pages
// instead of buffering the whole result set.
func Collect[T any](ctx context.Context, s *Sequence) ([]T, error) {
	var out []T
	for {
		items, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		for _, raw := range items {
			var v T
			if err := attributevalue.UnmarshalMap(raw, &v); err != nil {
				return nil, fmt.Errorf("paging: unmarshal item: %w", err)
			}
			out = append(out, v)
		}
	}
}

// CollectRaw drains the whole sequence without unmarshaling, for callers
// (like the planner's residual filter) that need the raw attribute-value
// map to re-evaluate a filter in process.
func CollectRaw(ctx context.Context, s *Sequence) ([]map[string]types.AttributeValue, error) {
	var out []map[string]types.AttributeValue
	for {
		items, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, items...)
	}
}
