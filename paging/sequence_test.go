package paging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/dynamodap/paging"
)

type fakeQueryPaginator struct {
	pages [][]map[string]types.AttributeValue
	pos   int
	err   error
}

func (f *fakeQueryPaginator) HasMorePages() bool { return f.pos < len(f.pages) }

func (f *fakeQueryPaginator) NextPage(ctx context.Context, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[f.pos]
	f.pos++
	return &dynamodb.QueryOutput{Items: page}, nil
}

func TestSequence_CollectRaw_DrainsAllPages(t *testing.T) {
	fake := &fakeQueryPaginator{
		pages: [][]map[string]types.AttributeValue{
			{{"pk": &types.AttributeValueMemberS{Value: "a"}}},
			{{"pk": &types.AttributeValueMemberS{Value: "b"}}, {"pk": &types.AttributeValueMemberS{Value: "c"}}},
		},
	}
	seq := paging.NewQuerySequence(fake)

	items, err := paging.CollectRaw(context.Background(), seq)
	if err != nil {
		t.Fatalf("CollectRaw: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items across 2 pages, got %d", len(items))
	}
}

func TestSequence_Next_ReturnsFalseOnceExhausted(t *testing.T) {
	fake := &fakeQueryPaginator{pages: [][]map[string]types.AttributeValue{{{"pk": &types.AttributeValueMemberS{Value: "a"}}}}}
	seq := paging.NewQuerySequence(fake)

	_, ok, err := seq.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first page ok, got ok=%v err=%v", ok, err)
	}
	_, ok, err = seq.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("expected sequence exhausted, got ok=%v err=%v", ok, err)
	}
	// Calling Next again after exhaustion must stay false, not panic or loop.
	_, ok, err = seq.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("expected sequence to remain exhausted, got ok=%v err=%v", ok, err)
	}
}

func TestSequence_Next_PropagatesError(t *testing.T) {
	fake := &fakeQueryPaginator{pages: [][]map[string]types.AttributeValue{{}}, err: errors.New("boom")}
	seq := paging.NewQuerySequence(fake)

	_, _, err := seq.Next(context.Background())
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	// A Sequence that returned an error is restart-unsafe: it must not
	// retry the failing page.
	_, ok, err := seq.Next(context.Background())
	if ok || err != nil {
		t.Fatalf("expected the sequence to stay dead after an error, got ok=%v err=%v", ok, err)
	}
}
