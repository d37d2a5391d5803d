package store

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mapTransactionError maps a TransactWriteItems error to the store's
// sentinel errors. Unlike the teacher's mapCreateTransactionError /
// mapUpdateTransactionError, which distinguish cancellation reasons by
// transaction-item index (parent-check vs entity-put vs unique-constraint),
// this domain has no parent/child nesting, so every ConditionalCheckFailed
// cancellation reason -- whichever item it came from -- means the same
// thing: either the accountId already exists, a unique attribute is
// already taken, or the observed version has moved on. All three collapse
// to the same retry/conflict handling (spec §7), so the mapping doesn't
// need index bookkeeping.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return ErrVersionConflict
			}
		}
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrVersionConflict
	}

	return err
}
