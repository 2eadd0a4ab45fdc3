package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	API // unimplemented calls panic

	queries  []*dynamodb.QueryInput
	pages    [][]map[string]types.AttributeValue
	update   *dynamodb.UpdateItemInput
	transact *dynamodb.TransactWriteItemsInput
	err      error
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	page := len(f.queries) - 1
	out := &dynamodb.QueryOutput{Items: f.pages[page]}
	if page+1 < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{AttrPK: &types.AttributeValueMemberS{Value: "next"}}
	}
	return out, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.update = in
	return &dynamodb.UpdateItemOutput{}, f.err
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transact = in
	return &dynamodb.TransactWriteItemsOutput{}, f.err
}

func testItem(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: pk},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func TestDynamoTable_QueryPagesUntilLimit(t *testing.T) {
	api := &fakeAPI{pages: [][]map[string]types.AttributeValue{
		{testItem("P", "A#1")},
		{testItem("P", "A#2"), testItem("P", "A#3")},
		{testItem("P", "A#4")},
	}}
	table := NewDynamoTable(api, "main")

	var out []Key
	err := table.Query(context.Background(), Query{Index: IndexGSI2, Partition: "P", Sort: BeginsWith("A#"), Limit: 2}, &out)
	require.NoError(t, err)
	assert.Equal(t, []Key{{PK: "P", SK: "A#1"}, {PK: "P", SK: "A#2"}}, out)
	assert.Len(t, api.queries, 2)

	in := api.queries[0]
	assert.Equal(t, "main", aws.ToString(in.TableName))
	assert.Equal(t, IndexGSI2, aws.ToString(in.IndexName))
	assert.Contains(t, aws.ToString(in.KeyConditionExpression), "begins_with")
}

func TestDynamoTable_UpdateIsConditional(t *testing.T) {
	api := &fakeAPI{}
	table := NewDynamoTable(api, "main")

	require.NoError(t, table.Update(context.Background(), Key{PK: "P", SK: "S"}, map[string]any{"name": "x", "tier": "free"}))
	require.NotNil(t, api.update)
	assert.Contains(t, aws.ToString(api.update.ConditionExpression), "attribute_exists")
	assert.Contains(t, aws.ToString(api.update.UpdateExpression), "SET")
	assert.Len(t, api.update.ExpressionAttributeValues, 2)

	api.update = nil
	require.NoError(t, table.Update(context.Background(), Key{PK: "P", SK: "S"}, nil))
	assert.Nil(t, api.update, "empty updates are skipped")

	require.NoError(t, table.UpdateIf(context.Background(), Key{PK: "P", SK: "S"},
		map[string]any{"status": "sent"}, map[string]any{"status": "accepted"}))
	assert.Contains(t, aws.ToString(api.update.ConditionExpression), "attribute_exists")
	assert.Contains(t, aws.ToString(api.update.ConditionExpression), "AND")
	assert.Len(t, api.update.ExpressionAttributeValues, 2)

	api.err = &types.ConditionalCheckFailedException{Message: aws.String("nope")}
	err := table.Update(context.Background(), Key{PK: "P", SK: "S"}, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrConditionFailed)
}

func TestDynamoTable_TransactPut(t *testing.T) {
	api := &fakeAPI{}
	table := NewDynamoTable(api, "main")

	err := table.TransactPut(context.Background(),
		TransactItem{Item: Keys{PK: "A", SK: "A"}},
		TransactItem{Item: Keys{PK: "B", SK: "B"}, MustNotExist: true},
	)
	require.NoError(t, err)
	require.Len(t, api.transact.TransactItems, 2)
	assert.Nil(t, api.transact.TransactItems[0].Put.ConditionExpression)
	assert.Equal(t, "attribute_not_exists(#pk)", aws.ToString(api.transact.TransactItems[1].Put.ConditionExpression))

	api.err = &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
		{Code: aws.String("None")},
		{Code: aws.String("ConditionalCheckFailed")},
	}}
	err = table.TransactPut(context.Background(), TransactItem{Item: Keys{PK: "B", SK: "B"}, MustNotExist: true})
	assert.ErrorIs(t, err, ErrConditionFailed)
}
