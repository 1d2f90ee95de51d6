package dynamodb

import (
	"context"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "thoughtweb/pkg/errors"
)

// fakeTable emulates the three calls the store makes. Query returns one
// item per page so pagination is exercised.
type fakeTable struct {
	t     *testing.T
	items map[itemKey]snapshotItem
	err   error
}

func newFakeTable(t *testing.T) *fakeTable {
	return &fakeTable{t: t, items: make(map[itemKey]snapshotItem)}
}

func (f *fakeTable) decodeKey(av map[string]types.AttributeValue) itemKey {
	var k itemKey
	require.NoError(f.t, attributevalue.UnmarshalMap(av, &k))
	return k
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	assert.True(f.t, *in.ConsistentRead)
	item, ok := f.items[f.decodeKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	av, err := attributevalue.MarshalMap(item)
	require.NoError(f.t, err)
	return &dynamodb.GetItemOutput{Item: av}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	assert.Contains(f.t, *in.UpdateExpression, "SET")
	assert.Contains(f.t, *in.UpdateExpression, "ADD")

	k := f.decodeKey(in.Key)
	item := f.items[k]
	item.PK, item.SK = k.PK, k.SK
	for _, v := range in.ExpressionAttributeValues {
		if b, ok := v.(*types.AttributeValueMemberB); ok {
			item.Data = b.Value
		}
	}
	item.Version++
	f.items[k] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	keys := make([]itemKey, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].SK < keys[j].SK })

	start := 0
	if in.ExclusiveStartKey != nil {
		after := f.decodeKey(in.ExclusiveStartKey)
		for i, k := range keys {
			if k == after {
				start = i + 1
			}
		}
	}
	if start >= len(keys) {
		return &dynamodb.QueryOutput{}, nil
	}

	av, err := attributevalue.MarshalMap(keys[start])
	require.NoError(f.t, err)
	out := &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{av}}
	if start+1 < len(keys) {
		out.LastEvaluatedKey = av
	}
	return out, nil
}

func TestStore_SaveLoad(t *testing.T) {
	table := newFakeTable(t)
	s := NewStore(table, "thoughtweb-test", "", nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "memories", []byte("first")))
	require.NoError(t, s.Save(ctx, "memories", []byte("second")))

	got, err := s.Load(ctx, "memories")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assert.Equal(t, 2, table.items[itemKey{PK: DefaultPartition, SK: "memories"}].Version)
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(newFakeTable(t), "thoughtweb-test", "", nil)

	_, err := s.Load(context.Background(), "connections")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_Keys(t *testing.T) {
	table := newFakeTable(t)
	s := NewStore(table, "thoughtweb-test", "tenant-a", nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "memories", []byte("m")))
	require.NoError(t, s.Save(ctx, "connections", []byte("c")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"connections", "memories"}, keys)
}

func TestStore_MapsAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want pkgerrors.ErrorType
	}{
		{"missing table", &smithy.GenericAPIError{Code: "ResourceNotFoundException"}, pkgerrors.ErrorTypeUnavailable},
		{"bad request", &smithy.GenericAPIError{Code: "ValidationException", Message: "bad key"}, pkgerrors.ErrorTypeValidation},
		{"throttled", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"}, pkgerrors.ErrorTypeStorage},
		{"canceled", context.Canceled, pkgerrors.ErrorTypeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newFakeTable(t)
			table.err = tt.err
			s := NewStore(table, "thoughtweb-test", "", nil)

			err := s.Save(context.Background(), "memories", []byte("x"))
			require.Error(t, err)
			assert.Equal(t, tt.want, pkgerrors.GetAppError(err).Type)
		})
	}
}
