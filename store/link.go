package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/dynamodap/paging"
)

// Link is the subordinate account-linking entity (spec §3): single-item
// CRUD plus one secondary-index query, illustrating the simple pattern
// against which AccountStore's fan-out is the exception, not the rule.
type Link struct {
	LinkedAccountID         string
	LinkedAccountDomainName string
	LocalAccountID          string
	LinkingAccountManager   string
	Created                 int64
}

func (l Link) pk() string {
	return l.LinkedAccountID + "@" + l.LinkedAccountDomainName
}

// LinkStore implements single-item CRUD and the list-links-index query
// over curity-links (spec §3, §6).
type LinkStore struct {
	client *dynamodb.Client
	config Config
}

// NewLinkStore builds a LinkStore bound to cfg.LinksTable.
func NewLinkStore(client *dynamodb.Client, cfg Config) *LinkStore {
	cfg.validate()
	return &LinkStore{client: client, config: cfg}
}

func marshalLink(l Link) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":                      &types.AttributeValueMemberS{Value: l.pk()},
		"local_account_id":        &types.AttributeValueMemberS{Value: l.LocalAccountID},
		"linking_account_manager": &types.AttributeValueMemberS{Value: l.LinkingAccountManager},
		"created":                 &types.AttributeValueMemberN{Value: strconv.FormatInt(l.Created, 10)},
	}
}

func unmarshalLink(raw map[string]types.AttributeValue) Link {
	var l Link
	if v, ok := raw["pk"].(*types.AttributeValueMemberS); ok {
		if at := strings.IndexByte(v.Value, '@'); at >= 0 {
			l.LinkedAccountID = v.Value[:at]
			l.LinkedAccountDomainName = v.Value[at+1:]
		}
	}
	if v, ok := raw["local_account_id"].(*types.AttributeValueMemberS); ok {
		l.LocalAccountID = v.Value
	}
	if v, ok := raw["linking_account_manager"].(*types.AttributeValueMemberS); ok {
		l.LinkingAccountManager = v.Value
	}
	if v, ok := raw["created"].(*types.AttributeValueMemberN); ok {
		l.Created, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	return l
}

// CreateLink persists a new link under an attribute_not_exists(pk)
// precondition -- the same fail-fast-on-collision shape as AccountStore's
// fan-out puts, just without a transaction since only one item is written.
func (s *LinkStore) CreateLink(ctx context.Context, l Link) (Link, error) {
	l.Created = time.Now().Unix()
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.LinksTable),
		Item:                marshalLink(l),
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return Link{}, ErrConflict
		}
		return Link{}, err
	}
	return l, nil
}

// GetLink retrieves a link by its (linkedAccountId, linkedAccountDomainName)
// composite key.
func (s *LinkStore) GetLink(ctx context.Context, linkedAccountID, linkedAccountDomainName string) (*Link, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.LinksTable),
		Key:       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: linkedAccountID + "@" + linkedAccountDomainName}},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	l := unmarshalLink(out.Item)
	return &l, nil
}

// DeleteLink removes a link; deletion is idempotent.
func (s *LinkStore) DeleteLink(ctx context.Context, linkedAccountID, linkedAccountDomainName string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.LinksTable),
		Key:       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: linkedAccountID + "@" + linkedAccountDomainName}},
	})
	return err
}

// ListLinks queries the list-links-index for every link belonging to a
// local account, optionally narrowed to one linkingAccountManager (spec §3:
// "A secondary index (localAccountId, linkingAccountManager) → pk supports
// listLinks").
func (s *LinkStore) ListLinks(ctx context.Context, localAccountID, linkingAccountManager string) ([]Link, error) {
	keyCond := expression.Key("local_account_id").Equal(expression.Value(localAccountID))
	if linkingAccountManager != "" {
		keyCond = keyCond.And(expression.Key("linking_account_manager").Equal(expression.Value(linkingAccountManager)))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}

	seq := paging.NewQuerySequence(dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.LinksTable),
		IndexName:                 aws.String("list-links-index"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}))

	rawItems, err := paging.CollectRaw(ctx, seq)
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(rawItems))
	for _, raw := range rawItems {
		links = append(links, unmarshalLink(raw))
	}
	return links, nil
}
