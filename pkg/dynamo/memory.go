package dynamo

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// MemoryTable implements Table in process. Index membership follows DynamoDB:
// an item appears in an index only if it carries both index key attributes.
type MemoryTable struct {
	mu    sync.RWMutex
	items map[Key]item
}

var _ Table = (*MemoryTable)(nil)

// NewMemoryTable returns an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{items: make(map[Key]item)}
}

// Len returns the number of stored items.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Get loads one item.
func (t *MemoryTable) Get(ctx context.Context, key Key, out any) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	it, ok := t.items[key]
	if !ok {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(it, out); err != nil {
		return false, fmt.Errorf("unmarshal item: %w", err)
	}
	return true, nil
}

// Query scans the stored items for the partition and sorts them by sort key.
func (t *MemoryTable) Query(ctx context.Context, q Query, out any) error {
	pkAttr, skAttr, err := indexKeys(q.Index)
	if err != nil {
		return err
	}

	t.mu.RLock()
	type match struct {
		sk, pk, tsk string
		it          item
	}
	var matches []match
	for k, it := range t.items {
		pk, ok := stringAttr(it, pkAttr)
		if !ok || pk != q.Partition {
			continue
		}
		sk, ok := stringAttr(it, skAttr)
		if !ok || !sortMatches(q.Sort, sk) {
			continue
		}
		matches = append(matches, match{sk: sk, pk: k.PK, tsk: k.SK, it: it})
	}
	t.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].sk != matches[j].sk {
			return matches[i].sk < matches[j].sk
		}
		if matches[i].pk != matches[j].pk {
			return matches[i].pk < matches[j].pk
		}
		return matches[i].tsk < matches[j].tsk
	})
	if q.Limit > 0 && int32(len(matches)) > q.Limit {
		matches = matches[:q.Limit]
	}
	items := make([]item, len(matches))
	for i, m := range matches {
		items[i] = m.it
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("unmarshal items: %w", err)
	}
	return nil
}

// Put overwrites an item.
func (t *MemoryTable) Put(ctx context.Context, v any) error {
	it, key, err := marshalItem(v)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.items[key] = it
	t.mu.Unlock()
	return nil
}

// TransactPut checks every condition before writing anything.
func (t *MemoryTable) TransactPut(ctx context.Context, items ...TransactItem) error {
	type write struct {
		key Key
		it  item
	}
	writes := make([]write, 0, len(items))
	for _, ti := range items {
		it, key, err := marshalItem(ti.Item)
		if err != nil {
			return err
		}
		writes = append(writes, write{key: key, it: it})
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, ti := range items {
		if _, exists := t.items[writes[i].key]; ti.MustNotExist && exists {
			return fmt.Errorf("transact write: %w", ErrConditionFailed)
		}
	}
	for _, w := range writes {
		t.items[w.key] = w.it
	}
	return nil
}

// Update merges attributes into an existing item.
func (t *MemoryTable) Update(ctx context.Context, key Key, fields map[string]any) error {
	return t.UpdateIf(ctx, key, nil, fields)
}

// UpdateIf merges attributes into an existing item whose expect attributes match.
func (t *MemoryTable) UpdateIf(ctx context.Context, key Key, expect, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	delta, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	want, err := attributevalue.MarshalMap(expect)
	if err != nil {
		return fmt.Errorf("marshal condition: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.items[key]
	if !ok {
		return fmt.Errorf("update item: %w", ErrConditionFailed)
	}
	for k, v := range want {
		if !reflect.DeepEqual(current[k], v) {
			return fmt.Errorf("update item: %w", ErrConditionFailed)
		}
	}
	merged := make(item, len(current)+len(delta))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	t.items[key] = merged
	return nil
}

// Delete removes an item.
func (t *MemoryTable) Delete(ctx context.Context, key Key) error {
	t.mu.Lock()
	delete(t.items, key)
	t.mu.Unlock()
	return nil
}

func marshalItem(v any) (item, Key, error) {
	it, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, Key{}, fmt.Errorf("marshal item: %w", err)
	}
	pk, okPK := stringAttr(it, AttrPK)
	sk, okSK := stringAttr(it, AttrSK)
	if !okPK || !okSK {
		return nil, Key{}, fmt.Errorf("marshal item: missing %s/%s", AttrPK, AttrSK)
	}
	return it, Key{PK: pk, SK: sk}, nil
}

func stringAttr(it item, name string) (string, bool) {
	s, ok := it[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func sortMatches(c *SortCondition, sk string) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case SortEqual:
		return sk == c.Value
	case SortBeginsWith:
		return strings.HasPrefix(sk, c.Value)
	case SortLessThan:
		return sk < c.Value
	}
	return false
}
