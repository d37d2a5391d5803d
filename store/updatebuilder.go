package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UpdateBuilder assembles the TransactWriteItem set for one account
// mutation (spec §4.8). It generalizes the teacher's
// updateWithUniqueConstraints, which open-codes the same put/delete/replace
// decisions inline per mutation; here they're factored into
// HandleUniqueAttribute so Update, Patch, and UpdatePassword can all share
// it. Unlike the teacher, which issues a partial UpdateExpression SET
// against the existing item, this builder always replaces the whole item
// via Put -- every fan-out item in this domain already carries the
// complete payload (spec §3 fan-out integrity), so there's no "merge a few
// changed fields" step to express.
type UpdateBuilder struct {
	accountsTable   string
	accountID       string
	observedVersion int64
	items           []types.TransactWriteItem
}

// NewUpdateBuilder starts a builder bound to one account's observed
// version. Every conditional write this builder emits is pinned to
// (observedVersion, accountID), matching spec §4.7 step 3's per-case
// precondition.
func NewUpdateBuilder(accountsTable, accountID string, observedVersion int64) *UpdateBuilder {
	return &UpdateBuilder{
		accountsTable:   accountsTable,
		accountID:       accountID,
		observedVersion: observedVersion,
	}
}

// versionCondition is the precondition bound to every replace/delete of an
// existing fan-out item: the account hasn't moved past the version this
// mutation observed, and the pk truly belongs to this accountId (guards
// against an extremely unlikely uniqueness-value reuse race).
func (b *UpdateBuilder) versionCondition() (string, map[string]string, map[string]types.AttributeValue) {
	return "#version = :expected_version AND #account_id = :account_id",
		map[string]string{"#version": "version", "#account_id": "account_id"},
		map[string]types.AttributeValue{
			":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(b.observedVersion, 10)},
			":account_id":       &types.AttributeValueMemberS{Value: b.accountID},
		}
}

// HandleUniqueAttribute appends the put/delete/replace needed to move one
// unique attribute from oldValue to newValue (spec §4.7 step 3's four-case
// table). item is the fully-computed new payload, with "pk" about to be
// overwritten per case; prefix is the attribute's uniqueness prefix
// (attrmodel.Attribute.UniquenessPrefix).
func (b *UpdateBuilder) HandleUniqueAttribute(prefix, oldValue, newValue string, item map[string]types.AttributeValue) {
	switch {
	case oldValue == "" && newValue == "":
		// Neither before nor after: nothing to do.
		return

	case oldValue == "" && newValue != "":
		// Added: put the new secondary item, failing if it's already taken.
		b.items = append(b.items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(b.accountsTable),
				Item:                withPK(item, prefix+newValue),
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})

	case oldValue != "" && newValue == "":
		// Removed: delete the old secondary item under the version precondition.
		condExpr, names, values := b.versionCondition()
		b.items = append(b.items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:                 aws.String(b.accountsTable),
				Key:                       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: prefix + oldValue}},
				ConditionExpression:       aws.String(condExpr),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			},
		})

	case oldValue == newValue:
		// Unchanged: replace the same secondary item in place.
		condExpr, names, values := b.versionCondition()
		b.items = append(b.items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(b.accountsTable),
				Item:                      withPK(item, prefix+oldValue),
				ConditionExpression:       aws.String(condExpr),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			},
		})

	default:
		// Changed: delete the old pointer, put the new one.
		condExpr, names, values := b.versionCondition()
		b.items = append(b.items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:                 aws.String(b.accountsTable),
				Key:                       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: prefix + oldValue}},
				ConditionExpression:       aws.String(condExpr),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			},
		})
		b.items = append(b.items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(b.accountsTable),
				Item:                withPK(item, prefix+newValue),
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})
	}
}

// ReplaceMainItem appends the mandatory main-item ("ai#" prefixed) replace
// under the version precondition (spec §4.7 step 4: "Always include a
// replace of the main item with version precondition").
func (b *UpdateBuilder) ReplaceMainItem(item map[string]types.AttributeValue, accountIDPrefix string) {
	condExpr, names, values := b.versionCondition()
	b.items = append(b.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 aws.String(b.accountsTable),
			Item:                      withPK(item, accountIDPrefix),
			ConditionExpression:       aws.String(condExpr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	})
}

// Build returns the assembled transaction, failing fast if it would be
// empty (spec §4.8: "Fail fast ... if the resulting transaction would be
// empty").
func (b *UpdateBuilder) Build() ([]types.TransactWriteItem, error) {
	if len(b.items) == 0 {
		return nil, errEmptyTransaction
	}
	return b.items, nil
}

// withPK returns a shallow copy of item with "pk" set to pk, so the same
// payload map can be reused across several fan-out items without one
// write's pk leaking into another's.
func withPK(item map[string]types.AttributeValue, pk string) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item)+1)
	for k, v := range item {
		out[k] = v
	}
	out["pk"] = &types.AttributeValueMemberS{Value: pk}
	return out
}
