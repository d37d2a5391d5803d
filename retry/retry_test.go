package retry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/dynamodap/retry"
)

var errConflict = errors.New("version conflict")
var errOther = errors.New("some other failure")

func isConflict(err error) bool { return errors.Is(err, errConflict) }

func TestLoop_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result := retry.Loop(context.Background(), 3, isConflict, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 42, nil
	})
	if !result.Ok || result.Value != 42 {
		t.Fatalf("expected success with value 42, got %+v", result)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestLoop_RetriesOnConflictThenSucceeds(t *testing.T) {
	calls := 0
	result := retry.Loop(context.Background(), 3, isConflict, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if calls < 3 {
			return "", errConflict
		}
		return "done", nil
	})
	if !result.Ok || result.Value != "done" {
		t.Fatalf("expected eventual success, got %+v", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestLoop_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	result := retry.Loop(context.Background(), 5, isConflict, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errOther
	})
	if result.Ok {
		t.Fatal("expected failure")
	}
	if !errors.Is(result.Err, errOther) {
		t.Fatalf("expected errOther, got %v", result.Err)
	}
	if calls != 1 {
		t.Fatalf("expected a non-retryable error to stop after one attempt, got %d", calls)
	}
}

func TestLoop_ExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	result := retry.Loop(context.Background(), 3, isConflict, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errConflict
	})
	if result.Ok {
		t.Fatal("expected failure after exhausting attempts")
	}
	if !errors.Is(result.Err, errConflict) {
		t.Fatalf("expected the last error to be errConflict, got %v", result.Err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly maxAttempts=3 calls, got %d", calls)
	}
}

func TestLoop_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := retry.Loop(ctx, 5, isConflict, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return 0, errConflict
	})
	if result.Ok {
		t.Fatal("expected failure")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", result.Err)
	}
	if calls != 1 {
		t.Fatalf("expected cancellation to be observed before a second attempt, got %d calls", calls)
	}
}

func TestLoop_ZeroValueDefaultsAreUsable(t *testing.T) {
	calls := 0
	result := retry.Loop(context.Background(), 0, isConflict, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 7, nil
	})
	if !result.Ok || result.Value != 7 {
		t.Fatalf("expected defaults to produce a usable loop, got %+v", result)
	}
}
