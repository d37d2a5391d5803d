package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/dynamodap/attrmodel"
	"github.com/jacentio/dynamodap/dynexpr"
	"github.com/jacentio/dynamodap/paging"
	"github.com/jacentio/dynamodap/planner"
	"github.com/jacentio/dynamodap/retry"
)

const (
	accountIDPrefix   = "ai#"
	userNamePrefix    = "un#"
	emailPrefix       = "em#"
	phonePrefix       = "pn#"
)

// AccountAttributes is the logical shape of an account (spec §3). The
// "attributes" open bag carries any additional SCIM attributes the caller
// wants round-tripped; it is opaque to the store beyond JSON
// serialization.
type AccountAttributes struct {
	AccountID  string
	UserName   string
	Email      string
	Phone      string
	Password   string
	Active     bool
	Created    int64
	Updated    int64
	Version    int64
	Attributes map[string]any
}

// AccountSubject is the narrow projection verifyPassword returns (spec
// §4.7: "a projection limited to accountId, userName, password, active").
type AccountSubject struct {
	AccountID string
	UserName  string
	Password  string
	Active    bool
}

func accountAttribute(name string, uniquenessPrefix string) *attrmodel.Attribute {
	return &attrmodel.Attribute{
		Name:             name,
		Kind:             attrmodel.KindString,
		UniquenessPrefix: uniquenessPrefix,
		Comparator:       stringAttrComparator,
	}
}

func stringAttrComparator(a, b any) int {
	as, _ := a.(string)
	bs, _ := b.(string)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func numericAttrComparator(a, b any) int {
	af, aok := numericStringToFloat(a)
	bf, bok := numericStringToFloat(b)
	if !aok || !bok {
		return stringAttrComparator(a, b)
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func numericStringToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// accountsTableDescriptor builds the TableDescriptor the planner resolves
// getAll filters against: four PrimaryKeyIndex entries, one per unique
// attribute, per spec §4.2 ("For the accounts table, four primary-key
// indexes are exposed, one per unique attribute"). Each PrimaryKeyIndex
// sets Unique to the same attribute as Partition -- the emitter needs it
// to lower the logical "attr = literal" term to the actual physical
// lookup, "pk = UniquenessPrefix + literal" (spec §4.2: a primary-key
// index is "an unnamed partition-only index over a synthesized
// 'uniqueness' attribute derived from pk").
func accountsTableDescriptor() *attrmodel.TableDescriptor {
	accountID := accountAttribute("account_id", accountIDPrefix)
	userName := accountAttribute("user_name", userNamePrefix)
	email := accountAttribute("email", emailPrefix)
	phone := accountAttribute("phone", phonePrefix)
	active := &attrmodel.Attribute{Name: "active", Kind: attrmodel.KindBool}
	created := &attrmodel.Attribute{Name: "created", Kind: attrmodel.KindNumber, Comparator: numericAttrComparator}
	updated := &attrmodel.Attribute{Name: "updated", Kind: attrmodel.KindNumber, Comparator: numericAttrComparator}

	return attrmodel.NewTableDescriptor("curity-accounts", []attrmodel.Index{
		{Name: "by-accountId", Kind: attrmodel.PrimaryKeyIndex, Partition: accountID, Unique: accountID},
		{Name: "by-userName", Kind: attrmodel.PrimaryKeyIndex, Partition: userName, Unique: userName},
		{Name: "by-email", Kind: attrmodel.PrimaryKeyIndex, Partition: email, Unique: email},
		{Name: "by-phone", Kind: attrmodel.PrimaryKeyIndex, Partition: phone, Unique: phone},
	}, map[string]*attrmodel.Attribute{
		"accountId": accountID,
		"userName":  userName,
		"email":     email,
		"phone":     phone,
		"active":    active,
		"created":   created,
		"updated":   updated,
	})
}

// AccountStore implements the operations of spec §4.7 over the fan-out
// item design of spec §3.
type AccountStore struct {
	client *dynamodb.Client
	config Config
	table  *attrmodel.TableDescriptor
}

// NewAccountStore builds an AccountStore bound to cfg.AccountsTable.
func NewAccountStore(client *dynamodb.Client, cfg Config) *AccountStore {
	cfg.validate()
	return &AccountStore{client: client, config: cfg, table: accountsTableDescriptor()}
}

// marshalAccountItem renders the common fan-out payload (everything but
// "pk", which callers set per fan-out item via withPK) -- spec §3's fan-out
// integrity invariant that every item shares the same payload.
func marshalAccountItem(a AccountAttributes) (map[string]types.AttributeValue, error) {
	blob, err := json.Marshal(a.Attributes)
	if err != nil {
		return nil, fmt.Errorf("store: marshal attributes blob: %w", err)
	}

	item := map[string]types.AttributeValue{
		"account_id": &types.AttributeValueMemberS{Value: a.AccountID},
		"user_name":  &types.AttributeValueMemberS{Value: a.UserName},
		"active":     &types.AttributeValueMemberBOOL{Value: a.Active},
		"created":    &types.AttributeValueMemberN{Value: strconv.FormatInt(a.Created, 10)},
		"updated":    &types.AttributeValueMemberN{Value: strconv.FormatInt(a.Updated, 10)},
		"version":    &types.AttributeValueMemberN{Value: strconv.FormatInt(a.Version, 10)},
		"attributes": &types.AttributeValueMemberS{Value: string(blob)},
	}
	if a.Email != "" {
		item["email"] = &types.AttributeValueMemberS{Value: a.Email}
	}
	if a.Phone != "" {
		item["phone"] = &types.AttributeValueMemberS{Value: a.Phone}
	}
	if a.Password != "" {
		item["password"] = &types.AttributeValueMemberS{Value: a.Password}
	}
	return item, nil
}

func unmarshalAccountItem(raw map[string]types.AttributeValue) (AccountAttributes, error) {
	var a AccountAttributes
	if v, ok := raw["account_id"].(*types.AttributeValueMemberS); ok {
		a.AccountID = v.Value
	}
	if v, ok := raw["user_name"].(*types.AttributeValueMemberS); ok {
		a.UserName = v.Value
	}
	if v, ok := raw["email"].(*types.AttributeValueMemberS); ok {
		a.Email = v.Value
	}
	if v, ok := raw["phone"].(*types.AttributeValueMemberS); ok {
		a.Phone = v.Value
	}
	if v, ok := raw["password"].(*types.AttributeValueMemberS); ok {
		a.Password = v.Value
	}
	if v, ok := raw["active"].(*types.AttributeValueMemberBOOL); ok {
		a.Active = v.Value
	}
	if v, ok := raw["created"].(*types.AttributeValueMemberN); ok {
		a.Created, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["updated"].(*types.AttributeValueMemberN); ok {
		a.Updated, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		a.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["attributes"].(*types.AttributeValueMemberS); ok && v.Value != "" {
		if err := json.Unmarshal([]byte(v.Value), &a.Attributes); err != nil {
			return AccountAttributes{}, fmt.Errorf("store: unmarshal attributes blob: %w", err)
		}
	}
	return a, nil
}

// Create implements spec §4.7 create: generate an id, assemble 2-4
// fan-out items, submit as one transaction guarded by
// attribute_not_exists(pk).
func (s *AccountStore) Create(ctx context.Context, attrs AccountAttributes) (AccountAttributes, error) {
	now := time.Now().Unix()
	attrs.AccountID = uuid.NewString()
	attrs.Version = 0
	attrs.Created = now
	attrs.Updated = now

	item, err := marshalAccountItem(attrs)
	if err != nil {
		return AccountAttributes{}, err
	}

	var items []types.TransactWriteItem
	putFanOut := func(pk string) {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.config.AccountsTable),
				Item:                withPK(item, pk),
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			},
		})
	}

	putFanOut(accountIDPrefix + attrs.AccountID)
	putFanOut(userNamePrefix + attrs.UserName)
	if attrs.Email != "" {
		putFanOut(emailPrefix + attrs.Email)
	}
	if attrs.Phone != "" {
		putFanOut(phonePrefix + attrs.Phone)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if mapped := mapTransactionError(err); mapped != nil {
		if errors.Is(mapped, ErrVersionConflict) {
			return AccountAttributes{}, ErrConflict
		}
		return AccountAttributes{}, mapped
	}
	return attrs, nil
}

func (s *AccountStore) getByPK(ctx context.Context, pk string) (*AccountAttributes, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.AccountsTable),
		Key:            map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	a, err := unmarshalAccountItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID returns the main item, strongly consistent.
func (s *AccountStore) GetByID(ctx context.Context, accountID string) (*AccountAttributes, error) {
	return s.getByPK(ctx, accountIDPrefix+accountID)
}

// GetByUserName returns the userName secondary item's full payload.
func (s *AccountStore) GetByUserName(ctx context.Context, userName string) (*AccountAttributes, error) {
	return s.getByPK(ctx, userNamePrefix+userName)
}

// GetByEmail returns the email secondary item's full payload.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*AccountAttributes, error) {
	return s.getByPK(ctx, emailPrefix+email)
}

// GetByPhone returns the phone secondary item's full payload.
func (s *AccountStore) GetByPhone(ctx context.Context, phone string) (*AccountAttributes, error) {
	return s.getByPK(ctx, phonePrefix+phone)
}

func retryableVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// buildAccountTransaction appends the three unique-attribute decisions
// (userName, email, phone) plus
// the main-item replace to an UpdateBuilder, given the observed and
// computed attribute sets (spec §4.7 step 3-4).
func buildAccountTransaction(accountsTable string, observed, computed AccountAttributes) ([]types.TransactWriteItem, error) {
	item, err := marshalAccountItem(computed)
	if err != nil {
		return nil, err
	}

	b := NewUpdateBuilder(accountsTable, computed.AccountID, observed.Version)
	b.HandleUniqueAttribute(userNamePrefix, observed.UserName, computed.UserName, item)
	b.HandleUniqueAttribute(emailPrefix, observed.Email, computed.Email, item)
	b.HandleUniqueAttribute(phonePrefix, observed.Phone, computed.Phone, item)
	b.ReplaceMainItem(item, accountIDPrefix+computed.AccountID)
	return b.Build()
}

// Update implements spec §4.7 update, wrapped in RetryLoop. A nil,nil
// return means the account didn't exist (idempotent no-op).
func (s *AccountStore) Update(ctx context.Context, accountID string, newAttrs AccountAttributes) (*AccountAttributes, error) {
	result := retry.Loop(ctx, s.config.RetryAttempts, retryableVersionConflict,
		func(ctx context.Context, attemptNum int) (*AccountAttributes, error) {
			observed, err := s.GetByID(ctx, accountID)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}

			computed := newAttrs
			computed.AccountID = accountID
			computed.Version = observed.Version + 1
			computed.Created = observed.Created
			computed.Updated = time.Now().Unix()
			computed.Password = observed.Password

			items, err := buildAccountTransaction(s.config.AccountsTable, *observed, computed)
			if err != nil {
				return nil, err
			}

			_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
			if mapped := mapTransactionError(err); mapped != nil {
				return nil, mapped
			}
			return &computed, nil
		})

	if !result.Ok {
		if errors.Is(result.Err, ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, result.Err
	}
	return result.Value, nil
}

// PatchFunc mutates an AccountAttributes in place, representing a SCIM
// AttributeUpdate's additions/replacements/deletions applied onto the
// observed attributes. Any Password field it sets is discarded --
// updatePassword is the only path that may change the password (spec
// §4.7 patch note).
type PatchFunc func(*AccountAttributes)

// Patch implements spec §4.7 patch: identical transaction shape to
// Update, but the new attribute set comes from applying patch to the
// observed attributes rather than being supplied wholesale.
func (s *AccountStore) Patch(ctx context.Context, accountID string, patch PatchFunc) (*AccountAttributes, error) {
	result := retry.Loop(ctx, s.config.RetryAttempts, retryableVersionConflict,
		func(ctx context.Context, attemptNum int) (*AccountAttributes, error) {
			observed, err := s.GetByID(ctx, accountID)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}

			computed := *observed
			patch(&computed)
			computed.AccountID = accountID
			computed.Version = observed.Version + 1
			computed.Created = observed.Created
			computed.Updated = time.Now().Unix()
			computed.Password = observed.Password // password changes are patch-silent; use UpdatePassword

			items, err := buildAccountTransaction(s.config.AccountsTable, *observed, computed)
			if err != nil {
				return nil, err
			}

			_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
			if mapped := mapTransactionError(err); mapped != nil {
				return nil, mapped
			}
			return &computed, nil
		})

	if !result.Ok {
		if errors.Is(result.Err, ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, result.Err
	}
	return result.Value, nil
}

// Delete implements spec §4.7 delete, wrapped in RetryLoop. Absence is a
// success no-op (idempotent delete). A condition failure on the delete
// transaction maps to ErrVersionConflict, which RetryLoop retries by
// re-reading the main item; once RetryAttempts are used up it is surfaced
// as ErrConflict.
func (s *AccountStore) Delete(ctx context.Context, accountID string) error {
	result := retry.Loop(ctx, s.config.RetryAttempts, retryableVersionConflict,
		func(ctx context.Context, attemptNum int) (struct{}, error) {
			observed, err := s.GetByID(ctx, accountID)
			if errors.Is(err, ErrNotFound) {
				return struct{}{}, nil
			}
			if err != nil {
				return struct{}{}, err
			}

			condExpr := "version = :expected_version AND account_id = :account_id"
			exprValues := map[string]types.AttributeValue{
				":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(observed.Version, 10)},
				":account_id":       &types.AttributeValueMemberS{Value: accountID},
			}

			del := func(pk string) types.TransactWriteItem {
				return types.TransactWriteItem{
					Delete: &types.Delete{
						TableName:                 aws.String(s.config.AccountsTable),
						Key:                       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: pk}},
						ConditionExpression:       aws.String(condExpr),
						ExpressionAttributeValues: exprValues,
					},
				}
			}

			items := []types.TransactWriteItem{del(accountIDPrefix + accountID), del(userNamePrefix + observed.UserName)}
			if observed.Email != "" {
				items = append(items, del(emailPrefix+observed.Email))
			}
			if observed.Phone != "" {
				items = append(items, del(phonePrefix+observed.Phone))
			}

			_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
			if mapped := mapTransactionError(err); mapped != nil {
				return struct{}{}, mapped
			}
			return struct{}{}, nil
		})

	if !result.Ok {
		if errors.Is(result.Err, ErrVersionConflict) {
			return ErrConflict
		}
		return result.Err
	}
	return nil
}

// UpdatePassword implements spec §4.7 updatePassword, wrapped in
// RetryLoop.
func (s *AccountStore) UpdatePassword(ctx context.Context, userName, newPassword string) error {
	result := retry.Loop(ctx, s.config.RetryAttempts, retryableVersionConflict,
		func(ctx context.Context, attemptNum int) (struct{}, error) {
			observed, err := s.GetByUserName(ctx, userName)
			if errors.Is(err, ErrNotFound) {
				return struct{}{}, nil
			}
			if err != nil {
				return struct{}{}, err
			}

			computed := *observed
			computed.Password = newPassword
			computed.Version = observed.Version + 1
			computed.Updated = time.Now().Unix()

			item, err := marshalAccountItem(computed)
			if err != nil {
				return struct{}{}, err
			}

			b := NewUpdateBuilder(s.config.AccountsTable, computed.AccountID, observed.Version)
			b.ReplaceMainItem(item, accountIDPrefix+computed.AccountID)
			b.HandleUniqueAttribute(userNamePrefix, observed.UserName, computed.UserName, item)
			if observed.Email != "" {
				b.HandleUniqueAttribute(emailPrefix, observed.Email, computed.Email, item)
			}
			if observed.Phone != "" {
				b.HandleUniqueAttribute(phonePrefix, observed.Phone, computed.Phone, item)
			}
			items, err := b.Build()
			if err != nil {
				return struct{}{}, err
			}

			_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
			if mapped := mapTransactionError(err); mapped != nil {
				return struct{}{}, mapped
			}
			return struct{}{}, nil
		})

	if !result.Ok {
		if errors.Is(result.Err, ErrVersionConflict) {
			return ErrConflict
		}
		return result.Err
	}
	return nil
}

// VerifyPassword implements spec §4.7 verifyPassword: the store never
// checks the password itself, only returns the subject for the caller to
// check. Absent or inactive accounts return (nil, nil).
func (s *AccountStore) VerifyPassword(ctx context.Context, userName string) (*AccountSubject, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.config.AccountsTable),
		Key:                  map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: userNamePrefix + userName}},
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("account_id, user_name, password, active"),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	a, err := unmarshalAccountItem(out.Item)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, nil
	}
	return &AccountSubject{AccountID: a.AccountID, UserName: a.UserName, Password: a.Password, Active: a.Active}, nil
}

// ResourceQuery is the input to GetAll (spec §4.7 getAll).
type ResourceQuery struct {
	Filter     string
	SortBy     string
	Descending bool
	Start      int
	Count      int
}

// GetAll implements spec §4.7 getAll: plan → emit → paginate → residual
// filter → sort → drop/take.
func (s *AccountStore) GetAll(ctx context.Context, q ResourceQuery) ([]AccountAttributes, error) {
	// An empty filter means "every account" -- there is no DNF to plan, so
	// this always resolves to a full scan gated on ai# rather than a
	// zero-product plan (which would mean "matches nothing").
	if q.Filter == "" {
		if !s.config.AllowTableScans {
			return nil, ErrQueryRequiresTableScan
		}
		rawItems, err := s.scanAllAccounts(ctx)
		if err != nil {
			return nil, err
		}
		return s.finishGetAll(rawItems, nil, nil, q)
	}

	expr, err := planner.Parse(q.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedQuery, err)
	}
	products, err := planner.Normalize(s.table, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedQuery, err)
	}

	plan, err := planner.BuildPlan(s.table, products, s.config.MaxQueries)
	if err != nil {
		if errors.Is(err, planner.ErrQueryRequiresTooManyOperations) {
			return nil, fmt.Errorf("%w: %v", ErrQueryRequiresTooManyOperations, err)
		}
		return nil, err
	}

	var rawItems []map[string]types.AttributeValue
	switch plan.Kind {
	case planner.UsingScan:
		if !s.config.AllowTableScans {
			return nil, ErrQueryRequiresTableScan
		}
		rawItems, err = s.scanWithPlan(ctx, plan)
		if err != nil {
			return nil, err
		}

	case planner.UsingQueries:
		rawItems, err = s.queryWithPlan(ctx, plan)
		if err != nil {
			return nil, err
		}
	}

	return s.finishGetAll(rawItems, products, plan, q)
}

// scanAllAccounts is the empty-filter fast path: a plain scan gated to
// main items only, no residual filter needed. There is no predicate to
// lower through dynexpr here (an empty DNF has no "always true" product),
// so the ai# guard is built directly.
func (s *AccountStore) scanAllAccounts(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	seq := paging.NewScanSequence(dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.config.AccountsTable),
		FilterExpression: aws.String("begins_with(#pk, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": "pk",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: accountIDPrefix},
		},
	}))
	return paging.CollectRaw(ctx, seq)
}

func (s *AccountStore) scanWithPlan(ctx context.Context, plan *planner.Plan) ([]map[string]types.AttributeValue, error) {
	scanExpr, err := dynexpr.EmitScan(plan.Products, true)
	if err != nil {
		return nil, err
	}
	seq := paging.NewScanSequence(dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.AccountsTable),
		FilterExpression:          aws.String(scanExpr.Filter),
		ExpressionAttributeNames:  scanExpr.ExpressionNames,
		ExpressionAttributeValues: scanExpr.ExpressionValues,
	}))
	return paging.CollectRaw(ctx, seq)
}

// queryWithPlan issues one store Query per KeyCondition and merges results
// by pk in first-seen order (spec §9 Note 2).
func (s *AccountStore) queryWithPlan(ctx context.Context, plan *planner.Plan) ([]map[string]types.AttributeValue, error) {
	var rawItems []map[string]types.AttributeValue
	seen := map[string]bool{}
	for _, pq := range plan.Queries {
		queryExpr, err := dynexpr.EmitQuery(pq)
		if err != nil {
			return nil, err
		}
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.AccountsTable),
			IndexName:                 indexNameOrNil(pq.KeyCondition.Index),
			KeyConditionExpression:    aws.String(queryExpr.KeyCondition),
			ExpressionAttributeNames:  queryExpr.ExpressionNames,
			ExpressionAttributeValues: queryExpr.ExpressionValues,
		}
		if queryExpr.Filter != "" {
			input.FilterExpression = aws.String(queryExpr.Filter)
		}
		seq := paging.NewQuerySequence(dynamodb.NewQueryPaginator(s.client, input))
		pageItems, err := paging.CollectRaw(ctx, seq)
		if err != nil {
			return nil, err
		}
		for _, raw := range pageItems {
			if pk, ok := raw["pk"].(*types.AttributeValueMemberS); ok {
				if seen[pk.Value] {
					continue
				}
				seen[pk.Value] = true
			}
			rawItems = append(rawItems, raw)
		}
	}
	return rawItems, nil
}

// finishGetAll applies the residual filter (spec §4.5), then sorts and
// drop/takes the result (spec §4.7 getAll).
func (s *AccountStore) finishGetAll(rawItems []map[string]types.AttributeValue, products []planner.Product, plan *planner.Plan, q ResourceQuery) ([]AccountAttributes, error) {
	results := make([]AccountAttributes, 0, len(rawItems))
	for _, raw := range rawItems {
		if len(products) > 0 && plan != nil {
			if !plan.Accepts(rawItemAsGenericMap(raw)) {
				continue
			}
		}
		a, err := unmarshalAccountItem(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}

	sortAccounts(results, q.SortBy, q.Descending)

	start := q.Start
	if start < 0 {
		start = 0
	}
	if start > len(results) {
		start = len(results)
	}
	end := len(results)
	if q.Count > 0 && start+q.Count < end {
		end = start + q.Count
	}
	return results[start:end], nil
}

func indexNameOrNil(idx attrmodel.Index) *string {
	if idx.Kind == attrmodel.PrimaryKeyIndex {
		return nil
	}
	return aws.String(idx.Name)
}

// rawItemAsGenericMap turns a raw DynamoDB item into the
// map[string]any the planner's residual evaluator consumes (spec §4.5).
func rawItemAsGenericMap(raw map[string]types.AttributeValue) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			out[k] = tv.Value
		case *types.AttributeValueMemberN:
			out[k] = tv.Value
		case *types.AttributeValueMemberBOOL:
			out[k] = tv.Value
		}
	}
	return out
}

func sortAccounts(items []AccountAttributes, sortBy string, descending bool) {
	if sortBy == "" {
		return
	}
	less := func(i, j int) bool {
		var cmp int
		switch sortBy {
		case "userName":
			cmp = stringAttrComparator(items[i].UserName, items[j].UserName)
		case "email":
			cmp = stringAttrComparator(items[i].Email, items[j].Email)
		case "created":
			cmp = numericAttrComparator(strconv.FormatInt(items[i].Created, 10), strconv.FormatInt(items[j].Created, 10))
		case "updated":
			cmp = numericAttrComparator(strconv.FormatInt(items[i].Updated, 10), strconv.FormatInt(items[j].Updated, 10))
		default:
			cmp = stringAttrComparator(items[i].AccountID, items[j].AccountID)
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	}
	sort.SliceStable(items, less)
}
