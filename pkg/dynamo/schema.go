package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const tableWaitTimeout = 2 * time.Minute

// EnsureTable creates the table with its three indexes when it does not exist yet.
// Used against local stacks; production tables are provisioned outside the service.
func EnsureTable(ctx context.Context, client API, name string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		logger.Debug("table exists", zap.String("table", name))
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table: %w", err)
	}

	if _, err := client.CreateTable(ctx, createTableInput(name)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableWaitTimeout); err != nil {
		return fmt.Errorf("wait for table: %w", err)
	}
	logger.Info("table created", zap.String("table", name))
	return nil
}

func createTableInput(name string) *dynamodb.CreateTableInput {
	attr := func(n string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(n), AttributeType: types.ScalarAttributeTypeS}
	}
	index := func(idx, pk, sk string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName: aws.String(idx),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			attr(AttrPK), attr(AttrSK),
			attr(AttrGSI2PK), attr(AttrGSI2SK),
			attr(AttrGSI3PK), attr(AttrGSI3SK),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(AttrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			index(IndexGSI1, AttrSK, AttrPK),
			index(IndexGSI2, AttrGSI2PK, AttrGSI2SK),
			index(IndexGSI3, AttrGSI3PK, AttrGSI3SK),
		},
	}
}
