package store

import "errors"

var (
	// ErrNotFound is returned when an account, link, or delegation doesn't exist.
	ErrNotFound = errors.New("store: entity not found")

	// ErrConflict signals a uniqueness violation on create, or an
	// optimistic-concurrency failure on update/delete that survived
	// RetryLoop's attempts (spec §7).
	ErrConflict = errors.New("store: conflict")

	// ErrVersionConflict is the retryable form of ErrConflict: an
	// update/delete transaction was cancelled because the observed
	// version no longer matched. retry.Loop treats this as retryable;
	// AccountStore surfaces ErrConflict only after attempts are exhausted.
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrUnsupportedQuery is surfaced when the planner cannot express a
	// filter (spec §7).
	ErrUnsupportedQuery = errors.New("store: unsupported query")

	// ErrQueryRequiresTooManyOperations is surfaced when a plan would
	// exceed Config.MaxQueries (spec §7).
	ErrQueryRequiresTooManyOperations = errors.New("store: query requires too many operations")

	// ErrQueryRequiresTableScan is surfaced when a filter can only be
	// served by Scan and Config.AllowTableScans is false (spec §6, §7).
	ErrQueryRequiresTableScan = errors.New("store: query requires a table scan")

	// errEmptyTransaction guards UpdateBuilder.Build against submitting a
	// no-op transaction (spec §4.8).
	errEmptyTransaction = errors.New("store: update produced an empty transaction")
)
