package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/dynamodap/attrmodel"
	"github.com/jacentio/dynamodap/dynexpr"
	"github.com/jacentio/dynamodap/paging"
	"github.com/jacentio/dynamodap/planner"
)

// Delegation is an OAuth/OIDC authorization-flow record (spec §3): a
// single-item entity, illustrating the plain case the fan-out design of
// AccountAttributes is the exception to.
type Delegation struct {
	ID                    string
	Status                string
	Owner                 string
	ClientID              string
	AuthorizationCodeHash string
	Expires               int64
	Authentication        map[string]any
	Consent               map[string]any
	Claims                map[string]any
}

func delegationAttribute(name string) *attrmodel.Attribute {
	return &attrmodel.Attribute{Name: name, Kind: attrmodel.KindString, Comparator: stringAttrComparator}
}

// delegationsTableDescriptor builds the TableDescriptor getAll's planner
// resolves filters against: one partition-and-sort index per
// (owner,status) and (clientId,status) pair, plus a partition-only index
// on the authorization code hash for the one-shot code lookup (spec §3).
func delegationsTableDescriptor() *attrmodel.TableDescriptor {
	owner := delegationAttribute("owner")
	status := delegationAttribute("status")
	clientID := delegationAttribute("clientId")
	authHash := delegationAttribute("authorizationCodeHash")
	expires := &attrmodel.Attribute{Name: "expires", Kind: attrmodel.KindNumber, Comparator: numericAttrComparator}

	return attrmodel.NewTableDescriptor("curity-delegations", []attrmodel.Index{
		{Name: "owner-status-index", Kind: attrmodel.PartitionAndSort, Partition: owner, Sort: status},
		{Name: "clientId-status-index", Kind: attrmodel.PartitionAndSort, Partition: clientID, Sort: status},
		{Name: "authorization-hash-index", Kind: attrmodel.PartitionOnly, Partition: authHash},
	}, map[string]*attrmodel.Attribute{
		"owner":                 owner,
		"status":                status,
		"clientId":              clientID,
		"authorizationCodeHash": authHash,
		"expires":               expires,
	})
}

// DelegationStore implements single-item CRUD plus a planner-backed getAll
// over curity-delegations (spec §3, §4.7 analog for delegations).
type DelegationStore struct {
	client *dynamodb.Client
	config Config
	table  *attrmodel.TableDescriptor
}

// NewDelegationStore builds a DelegationStore bound to cfg.DelegationsTable.
func NewDelegationStore(client *dynamodb.Client, cfg Config) *DelegationStore {
	cfg.validate()
	return &DelegationStore{client: client, config: cfg, table: delegationsTableDescriptor()}
}

func marshalDelegation(d Delegation) (map[string]types.AttributeValue, error) {
	auth, err := json.Marshal(d.Authentication)
	if err != nil {
		return nil, fmt.Errorf("store: marshal authentication blob: %w", err)
	}
	consent, err := json.Marshal(d.Consent)
	if err != nil {
		return nil, fmt.Errorf("store: marshal consent blob: %w", err)
	}
	claims, err := json.Marshal(d.Claims)
	if err != nil {
		return nil, fmt.Errorf("store: marshal claims blob: %w", err)
	}

	item := map[string]types.AttributeValue{
		"id":             &types.AttributeValueMemberS{Value: d.ID},
		"status":         &types.AttributeValueMemberS{Value: d.Status},
		"owner":          &types.AttributeValueMemberS{Value: d.Owner},
		"expires":        &types.AttributeValueMemberN{Value: strconv.FormatInt(d.Expires, 10)},
		"authentication": &types.AttributeValueMemberS{Value: string(auth)},
		"consent":        &types.AttributeValueMemberS{Value: string(consent)},
		"claims":         &types.AttributeValueMemberS{Value: string(claims)},
	}
	// clientId and authorizationCodeHash are index keys, where DynamoDB
	// rejects an empty string, so they are written only when set.
	if d.ClientID != "" {
		item["clientId"] = &types.AttributeValueMemberS{Value: d.ClientID}
	}
	if d.AuthorizationCodeHash != "" {
		item["authorizationCodeHash"] = &types.AttributeValueMemberS{Value: d.AuthorizationCodeHash}
	}
	return item, nil
}

func unmarshalDelegation(raw map[string]types.AttributeValue) (Delegation, error) {
	var d Delegation
	if v, ok := raw["id"].(*types.AttributeValueMemberS); ok {
		d.ID = v.Value
	}
	if v, ok := raw["status"].(*types.AttributeValueMemberS); ok {
		d.Status = v.Value
	}
	if v, ok := raw["owner"].(*types.AttributeValueMemberS); ok {
		d.Owner = v.Value
	}
	if v, ok := raw["clientId"].(*types.AttributeValueMemberS); ok {
		d.ClientID = v.Value
	}
	if v, ok := raw["authorizationCodeHash"].(*types.AttributeValueMemberS); ok {
		d.AuthorizationCodeHash = v.Value
	}
	if v, ok := raw["expires"].(*types.AttributeValueMemberN); ok {
		d.Expires, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["authentication"].(*types.AttributeValueMemberS); ok && v.Value != "" {
		if err := json.Unmarshal([]byte(v.Value), &d.Authentication); err != nil {
			return Delegation{}, fmt.Errorf("store: unmarshal authentication blob: %w", err)
		}
	}
	if v, ok := raw["consent"].(*types.AttributeValueMemberS); ok && v.Value != "" {
		if err := json.Unmarshal([]byte(v.Value), &d.Consent); err != nil {
			return Delegation{}, fmt.Errorf("store: unmarshal consent blob: %w", err)
		}
	}
	if v, ok := raw["claims"].(*types.AttributeValueMemberS); ok && v.Value != "" {
		if err := json.Unmarshal([]byte(v.Value), &d.Claims); err != nil {
			return Delegation{}, fmt.Errorf("store: unmarshal claims blob: %w", err)
		}
	}
	return d, nil
}

// Create persists a new delegation, generating an id if the caller left
// one unset.
func (s *DelegationStore) Create(ctx context.Context, d Delegation) (Delegation, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	item, err := marshalDelegation(d)
	if err != nil {
		return Delegation{}, err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.DelegationsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return Delegation{}, ErrConflict
		}
		return Delegation{}, err
	}
	return d, nil
}

// GetByID retrieves a delegation by its partition key.
func (s *DelegationStore) GetByID(ctx context.Context, id string) (*Delegation, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.DelegationsTable),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	d, err := unmarshalDelegation(out.Item)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Update replaces a delegation wholesale. Delegations carry no version
// counter in this domain (spec §3: only accounts need optimistic
// concurrency, since only accounts fan out across multiple items sharing
// state); a plain conditional Put on existence is enough.
func (s *DelegationStore) Update(ctx context.Context, d Delegation) (*Delegation, error) {
	item, err := marshalDelegation(d)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.DelegationsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Delete removes a delegation; deletion is idempotent.
func (s *DelegationStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.DelegationsTable),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	return err
}

// FindByAuthorizationCodeHash resolves the one-shot authorization code
// lookup via authorization-hash-index.
func (s *DelegationStore) FindByAuthorizationCodeHash(ctx context.Context, hash string) (*Delegation, error) {
	results, err := s.GetAll(ctx, ResourceQuery{Filter: fmt.Sprintf("authorizationCodeHash eq %q", hash)})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return &results[0], nil
}

// GetAll implements the same plan → emit → paginate → residual filter →
// sort → drop/take shape as AccountStore.GetAll (spec §4.7 getAll),
// specialized to the single-item delegation payload.
func (s *DelegationStore) GetAll(ctx context.Context, q ResourceQuery) ([]Delegation, error) {
	if q.Filter == "" {
		if !s.config.AllowTableScans {
			return nil, ErrQueryRequiresTableScan
		}
		rawItems, err := s.scanAll(ctx)
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

func (s *DelegationStore) scanAll(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	seq := paging.NewScanSequence(dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.config.DelegationsTable),
	}))
	return paging.CollectRaw(ctx, seq)
}

func (s *DelegationStore) scanWithPlan(ctx context.Context, plan *planner.Plan) ([]map[string]types.AttributeValue, error) {
	scanExpr, err := dynexpr.EmitScan(plan.Products, false)
	if err != nil {
		return nil, err
	}
	seq := paging.NewScanSequence(dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.DelegationsTable),
		FilterExpression:          aws.String(scanExpr.Filter),
		ExpressionAttributeNames:  scanExpr.ExpressionNames,
		ExpressionAttributeValues: scanExpr.ExpressionValues,
	}))
	return paging.CollectRaw(ctx, seq)
}

func (s *DelegationStore) queryWithPlan(ctx context.Context, plan *planner.Plan) ([]map[string]types.AttributeValue, error) {
	var rawItems []map[string]types.AttributeValue
	seen := map[string]bool{}
	for _, pq := range plan.Queries {
		queryExpr, err := dynexpr.EmitQuery(pq)
		if err != nil {
			return nil, err
		}
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.DelegationsTable),
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
			if id, ok := raw["id"].(*types.AttributeValueMemberS); ok {
				if seen[id.Value] {
					continue
				}
				seen[id.Value] = true
			}
			rawItems = append(rawItems, raw)
		}
	}
	return rawItems, nil
}

func (s *DelegationStore) finishGetAll(rawItems []map[string]types.AttributeValue, products []planner.Product, plan *planner.Plan, q ResourceQuery) ([]Delegation, error) {
	results := make([]Delegation, 0, len(rawItems))
	for _, raw := range rawItems {
		if len(products) > 0 && plan != nil {
			if !plan.Accepts(rawItemAsGenericMap(raw)) {
				continue
			}
		}
		d, err := unmarshalDelegation(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}

	sortDelegations(results, q.SortBy, q.Descending)

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

func sortDelegations(items []Delegation, sortBy string, descending bool) {
	if sortBy == "" {
		return
	}
	less := func(i, j int) bool {
		var cmp int
		switch sortBy {
		case "owner":
			cmp = stringAttrComparator(items[i].Owner, items[j].Owner)
		case "status":
			cmp = stringAttrComparator(items[i].Status, items[j].Status)
		case "clientId":
			cmp = stringAttrComparator(items[i].ClientID, items[j].ClientID)
		case "expires":
			cmp = numericAttrComparator(strconv.FormatInt(items[i].Expires, 10), strconv.FormatInt(items[j].Expires, 10))
		default:
			cmp = stringAttrComparator(items[i].ID, items[j].ID)
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	}
	sort.SliceStable(items, less)
}
