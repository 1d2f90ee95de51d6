// Package dynamodb stores snapshots in a DynamoDB single-table layout:
// every snapshot is one item under a shared partition key.
package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"thoughtweb/application/ports"
	pkgerrors "thoughtweb/pkg/errors"
)

var _ ports.SnapshotStore = (*Store)(nil)

// DefaultPartition groups the snapshots of one deployment.
const DefaultPartition = "SNAPSHOT"

// API is the part of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type itemKey struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

type snapshotItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      []byte `dynamodbav:"Data"`
	Version   int    `dynamodbav:"Version"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// Store is a SnapshotStore backed by a DynamoDB table with PK/SK keys.
type Store struct {
	client    API
	tableName string
	partition string
	logger    *zap.Logger
	now       func() time.Time
}

// NewStore creates a store over tableName. An empty partition uses
// DefaultPartition.
func NewStore(client API, tableName, partition string, logger *zap.Logger) *Store {
	if partition == "" {
		partition = DefaultPartition
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		partition: partition,
		logger:    logger,
		now:       time.Now,
	}
}

// Save writes data under key and increments the item's version.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	k, err := s.key(key)
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal snapshot key").WithCause(err)
	}

	update := expression.
		Set(expression.Name("Data"), expression.Value(data)).
		Set(expression.Name("UpdatedAt"), expression.Value(s.now().UTC().Format(time.RFC3339Nano))).
		Add(expression.Name("Version"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build update expression").WithCause(err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       k,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return s.mapError("save", err)
	}

	s.logger.Debug("Snapshot saved",
		zap.String("table", s.tableName),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load reads the snapshot under key with a consistent read.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	k, err := s.key(key)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to marshal snapshot key").WithCause(err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, s.mapError("load", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("snapshot " + key)
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewStorageError("load", err)
	}
	return item.Data, nil
}

// Keys lists the snapshot keys stored in the partition.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(s.partition))
	proj := expression.NamesList(expression.Name("SK"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithProjection(proj).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build key condition").WithCause(err)
	}

	keys := make([]string, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, s.mapError("keys", err)
		}

		var page []itemKey
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewStorageError("keys", err)
		}
		for _, k := range page {
			keys = append(keys, k.SK)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return keys, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *Store) key(key string) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(itemKey{PK: s.partition, SK: key})
}

// mapError turns SDK failures into application errors. Throttling stays a
// storage error so the resilience layer retries it.
func (s *Store) mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewCanceledError(op+" snapshot", err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		s.logger.Warn("DynamoDB request failed",
			zap.String("operation", op),
			zap.String("code", ae.ErrorCode()),
			zap.String("message", ae.ErrorMessage()),
		)
		switch ae.ErrorCode() {
		case "ResourceNotFoundException":
			return pkgerrors.NewUnavailableError("dynamodb table " + s.tableName).WithCause(err)
		case "ValidationException":
			return pkgerrors.NewValidationError(ae.ErrorMessage())
		}
	}
	return pkgerrors.NewStorageError(op, err)
}
