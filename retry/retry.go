// Package retry provides the bounded retry loop used around optimistic
// version-conflict updates (spec §4.9). It generalizes the
// attempt-count-loop 2lar-b2's UpdateNodeWithRetry/
// UpdateNodeWithEdgesRetry hand-roll per call site into a single reusable
// helper, since this domain has several call sites (account patch,
// password update, unique-attribute change) that all want the same
// "fetch, mutate, save, retry on version conflict" shape. Unlike the
// teacher's backoff-bearing retry, spec §4.9/§5 are explicit that this
// loop "sleeps nothing between attempts" and "does not cap wall-clock
// time, only attempts" -- the retries exist purely to re-read past an
// optimistic-concurrency race, not to ride out contention, so there is no
// delay to generalize here.
package retry

import "context"

// DefaultMaxAttempts is the bound spec §4.9 assigns a RetryLoop when the
// caller doesn't override it.
const DefaultMaxAttempts = 3

// Result is the Success(T)|Failure(err) sum type spec §4.9 asks the retry
// loop to produce: exactly one of Value or Err is meaningful, signaled by
// Ok.
type Result[T any] struct {
	Value T
	Err   error
	Ok    bool
}

// Success builds an Ok Result.
func Success[T any](v T) Result[T] { return Result[T]{Value: v, Ok: true} }

// Failure builds a failed Result.
func Failure[T any](err error) Result[T] { return Result[T]{Err: err} }

// Retryable reports whether an error returned from an attempt warrants
// another attempt. Callers typically pass something like
// func(err error) bool { return errors.Is(err, store.ErrVersionConflict) }.
type Retryable func(err error) bool

// Loop runs attempt up to maxAttempts times, retrying immediately --
// spec §4.9: "The loop sleeps nothing between attempts; the retries are
// purely to handle optimistic-concurrency races" -- whenever retryable
// returns true for the attempt's error. It stops early on success, on a
// non-retryable error, or once ctx is done.
func Loop[T any](ctx context.Context, maxAttempts int, retryable Retryable, attempt func(ctx context.Context, attemptNum int) (T, error)) Result[T] {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return Failure[T](err)
		}

		v, err := attempt(ctx, i)
		if err == nil {
			return Success(v)
		}
		lastErr = err

		if !retryable(err) || i == maxAttempts-1 {
			return Failure[T](err)
		}
	}
	return Failure[T](lastErr)
}
