// Package dynamo wraps the single logical table behind a narrow get/query/put/update/delete
// contract. DynamoTable talks to DynamoDB; MemoryTable keeps items in process for tests and
// local runs. Both marshal through attributevalue so items look the same either way.
package dynamo

import (
	"context"
	"errors"
	"fmt"
)

// Primary key and index attribute names.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrGSI2PK = "GSI2PK"
	AttrGSI2SK = "GSI2SK"
	AttrGSI3PK = "GSI3PK"
	AttrGSI3SK = "GSI3SK"

	// IndexGSI1 is the inverted primary key (SK, PK).
	IndexGSI1 = "GSI1"
	IndexGSI2 = "GSI2"
	IndexGSI3 = "GSI3"
)

// ErrConditionFailed is returned when a conditional write is rejected, either because the item
// is missing (update) or already present (reserved put). Callers cannot tell the two apart from
// a concurrent modification.
var ErrConditionFailed = errors.New("dynamo: condition failed")

// Key addresses one item by its primary key.
type Key struct {
	PK string
	SK string
}

// Keys are the derived key attributes persisted alongside an entity. Embed it in an item struct
// so attributevalue flattens the fields next to the entity's own attributes.
type Keys struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI2PK string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK string `dynamodbav:"GSI2SK,omitempty"`
	GSI3PK string `dynamodbav:"GSI3PK,omitempty"`
	GSI3SK string `dynamodbav:"GSI3SK,omitempty"`
}

// Key returns the primary key part.
func (k Keys) Key() Key {
	return Key{PK: k.PK, SK: k.SK}
}

// SortOp is the comparison applied to the sort key of a query.
type SortOp int

const (
	SortEqual SortOp = iota
	SortBeginsWith
	SortLessThan
)

// SortCondition narrows a query on the sort key of the queried index.
type SortCondition struct {
	Op    SortOp
	Value string
}

// Equal matches the sort key exactly.
func Equal(v string) *SortCondition { return &SortCondition{Op: SortEqual, Value: v} }

// BeginsWith matches sort keys with the given prefix.
func BeginsWith(prefix string) *SortCondition { return &SortCondition{Op: SortBeginsWith, Value: prefix} }

// LessThan matches sort keys ordered strictly before v.
func LessThan(v string) *SortCondition { return &SortCondition{Op: SortLessThan, Value: v} }

// Query selects items sharing a partition key on the table or one of its indexes.
// Results come back in ascending sort key order.
type Query struct {
	Index     string // empty for the base table
	Partition string
	Sort      *SortCondition
	Limit     int32 // zero means no limit
}

// TransactItem is one put inside TransactPut. MustNotExist rejects the whole
// transaction if an item with the same primary key is already stored.
type TransactItem struct {
	Item         any
	MustNotExist bool
}

// Table is the access contract used by the repositories.
type Table interface {
	// Get loads one item into out. It reports false when the item does not exist.
	Get(ctx context.Context, key Key, out any) (bool, error)
	// Query decodes matching items into out, which must point to a slice.
	Query(ctx context.Context, q Query, out any) error
	// Put overwrites the item.
	Put(ctx context.Context, item any) error
	// TransactPut writes all items or none.
	TransactPut(ctx context.Context, items ...TransactItem) error
	// Update sets the given attributes on an existing item. It returns ErrConditionFailed
	// when the item does not exist, so deleted records are never resurrected.
	Update(ctx context.Context, key Key, fields map[string]any) error
	// UpdateIf is Update that also requires every attribute in expect to hold the given
	// value. A mismatch returns ErrConditionFailed and leaves the item untouched.
	UpdateIf(ctx context.Context, key Key, expect, fields map[string]any) error
	// Delete removes the item. Deleting a missing item is not an error.
	Delete(ctx context.Context, key Key) error
}

// indexKeys returns the partition and sort attribute names of an index.
func indexKeys(index string) (string, string, error) {
	switch index {
	case "":
		return AttrPK, AttrSK, nil
	case IndexGSI1:
		return AttrSK, AttrPK, nil
	case IndexGSI2:
		return AttrGSI2PK, AttrGSI2SK, nil
	case IndexGSI3:
		return AttrGSI3PK, AttrGSI3SK, nil
	default:
		return "", "", fmt.Errorf("dynamo: unknown index %q", index)
	}
}
