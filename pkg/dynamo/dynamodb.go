package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of *dynamodb.Client used by DynamoTable and EnsureTable.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoTable implements Table on a DynamoDB table.
type DynamoTable struct {
	client API
	name   string
}

var _ Table = (*DynamoTable)(nil)

// NewDynamoTable creates a table accessor.
func NewDynamoTable(client API, name string) *DynamoTable {
	return &DynamoTable{client: client, name: name}
}

// Name returns the table name.
func (t *DynamoTable) Name() string { return t.name }

func (k Key) attributes() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// Get loads one item.
func (t *DynamoTable) Get(ctx context.Context, key Key, out any) (bool, error) {
	res, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.name),
		Key:       key.attributes(),
	})
	if err != nil {
		return false, fmt.Errorf("get item: %w", err)
	}
	if res.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal item: %w", err)
	}
	return true, nil
}

// Query reads all pages until the limit is reached.
func (t *DynamoTable) Query(ctx context.Context, q Query, out any) error {
	pkAttr, skAttr, err := indexKeys(q.Index)
	if err != nil {
		return err
	}
	cond := expression.Key(pkAttr).Equal(expression.Value(q.Partition))
	if q.Sort != nil {
		sk := expression.Key(skAttr)
		switch q.Sort.Op {
		case SortEqual:
			cond = cond.And(sk.Equal(expression.Value(q.Sort.Value)))
		case SortBeginsWith:
			cond = cond.And(sk.BeginsWith(q.Sort.Value))
		case SortLessThan:
			cond = cond.And(sk.LessThan(expression.Value(q.Sort.Value)))
		}
	}
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build key condition: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(q.Limit)
	}

	var items []map[string]types.AttributeValue
	pager := dynamodb.NewQueryPaginator(t.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		items = append(items, page.Items...)
		if q.Limit > 0 && int32(len(items)) >= q.Limit {
			items = items[:q.Limit]
			break
		}
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("unmarshal items: %w", err)
	}
	return nil
}

// Put overwrites an item.
func (t *DynamoTable) Put(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// TransactPut writes up to 100 items atomically.
func (t *DynamoTable) TransactPut(ctx context.Context, items ...TransactItem) error {
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		av, err := attributevalue.MarshalMap(it.Item)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		put := &types.Put{
			TableName: aws.String(t.name),
			Item:      av,
		}
		if it.MustNotExist {
			put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
			put.ExpressionAttributeNames = map[string]string{"#pk": AttrPK}
		}
		writes = append(writes, types.TransactWriteItem{Put: put})
	}
	_, err := t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return fmt.Errorf("transact write: %w", conditionError(err))
	}
	return nil
}

// Update sets attributes on an existing item.
func (t *DynamoTable) Update(ctx context.Context, key Key, fields map[string]any) error {
	return t.UpdateIf(ctx, key, nil, fields)
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateIf sets attributes on an existing item whose expect attributes match.
func (t *DynamoTable) UpdateIf(ctx context.Context, key Key, expect, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	var upd expression.UpdateBuilder
	for _, name := range sortedNames(fields) {
		upd = upd.Set(expression.Name(name), expression.Value(fields[name]))
	}
	cond := expression.AttributeExists(expression.Name(AttrPK))
	for _, name := range sortedNames(expect) {
		cond = cond.And(expression.Name(name).Equal(expression.Value(expect[name])))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(cond).
		Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       key.attributes(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return fmt.Errorf("update item: %w", conditionError(err))
	}
	return nil
}

// Delete removes an item.
func (t *DynamoTable) Delete(ctx context.Context, key Key) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       key.attributes(),
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// conditionError maps rejected conditions onto ErrConditionFailed.
func conditionError(err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrConditionFailed
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return ErrConditionFailed
			}
		}
	}
	return err
}
