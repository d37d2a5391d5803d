package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewDefaultClient loads the AWS SDK's default configuration chain
// (environment, shared config, IMDS) and returns a *dynamodb.Client ready
// for use by AccountStore/LinkStore/DelegationStore. Grounded on the
// teacher's e2e TestMain, which does the same config.LoadDefaultConfig +
// dynamodb.NewFromConfig dance to stand up a client for tests; this is the
// non-test equivalent for real callers that don't want to wire the SDK
// themselves.
func NewDefaultClient(ctx context.Context, optFns ...func(*config.LoadOptions) error) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("store: load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}
