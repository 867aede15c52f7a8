package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/relaynet/gateway/persistence/driver/aws/internal/awsx"
	"github.com/relaynet/gateway/persistence/kv"
)

// KeyValueStore is an implementation of [kv.Store] that persists keyspaces in a
// DynamoDB table.
//
// Expiry times are written to a numeric attribute that the table's native
// time-to-live feature is configured to use, so expired pairs are eventually
// removed by DynamoDB itself. Reads filter out expired pairs that have not
// yet been removed.
type KeyValueStore struct {
	// Client is the DynamoDB client to use.
	Client *dynamodb.Client

	// Table is the table name used for storage of key/value pairs.
	Table string

	// DecorateGetItem is an optional function that is called before each
	// DynamoDB "GetItem" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateGetItem func(*dynamodb.GetItemInput) []func(*dynamodb.Options)

	// DecorateQuery is an optional function that is called before each DynamoDB
	// "Query" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateQuery func(*dynamodb.QueryInput) []func(*dynamodb.Options)

	// DecoratePutItem is an optional function that is called before each
	// DynamoDB "PutItem" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecoratePutItem func(*dynamodb.PutItemInput) []func(*dynamodb.Options)

	// DecorateDeleteItem is an optional function that is called before each
	// DynamoDB "DeleteItem" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateDeleteItem func(*dynamodb.DeleteItemInput) []func(*dynamodb.Options)
}

const (
	kvKeyspaceAttr  = "Keyspace"
	kvKeyAttr       = "Key"
	kvValueAttr     = "Value"
	kvExpiresAtAttr = "ExpiresAt"
)

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	return &keyspace{
		store: s,
		name:  &types.AttributeValueMemberS{Value: name},
	}, ctx.Err()
}

type keyspace struct {
	store *KeyValueStore
	name  *types.AttributeValueMemberS
}

func (ks *keyspace) itemKey(k []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		kvKeyspaceAttr: ks.name,
		kvKeyAttr:      &types.AttributeValueMemberB{Value: k},
	}
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	out, err := awsx.Do(
		ctx,
		ks.store.Client.GetItem,
		ks.store.DecorateGetItem,
		&dynamodb.GetItemInput{
			TableName:            aws.String(ks.store.Table),
			Key:                  ks.itemKey(k),
			ConsistentRead:       aws.Bool(true),
			ProjectionExpression: aws.String(`#V, #E`),
			ExpressionAttributeNames: map[string]string{
				"#V": kvValueAttr,
				"#E": kvExpiresAtAttr,
			},
		},
	)
	if err != nil || out.Item == nil {
		return nil, err
	}

	if expired, err := isExpired(out.Item); expired || err != nil {
		return nil, err
	}

	v, err := getAttr[*types.AttributeValueMemberB](out.Item, kvValueAttr)
	if err != nil {
		return nil, err
	}

	return v.Value, nil
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	// Only the expiry attribute is requested to avoid fetching the value.
	out, err := awsx.Do(
		ctx,
		ks.store.Client.GetItem,
		ks.store.DecorateGetItem,
		&dynamodb.GetItemInput{
			TableName:            aws.String(ks.store.Table),
			Key:                  ks.itemKey(k),
			ConsistentRead:       aws.Bool(true),
			ProjectionExpression: aws.String(`#K, #E`),
			ExpressionAttributeNames: map[string]string{
				"#K": kvKeyAttr,
				"#E": kvExpiresAtAttr,
			},
		},
	)
	if err != nil || out.Item == nil {
		return false, err
	}

	expired, err := isExpired(out.Item)
	return !expired, err
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte, expiresAt time.Time) error {
	if len(v) == 0 {
		_, err := awsx.Do(
			ctx,
			ks.store.Client.DeleteItem,
			ks.store.DecorateDeleteItem,
			&dynamodb.DeleteItemInput{
				TableName: aws.String(ks.store.Table),
				Key:       ks.itemKey(k),
			},
		)
		return err
	}

	item := ks.itemKey(k)
	item[kvValueAttr] = &types.AttributeValueMemberB{Value: v}

	if !expiresAt.IsZero() {
		item[kvExpiresAtAttr] = &types.AttributeValueMemberN{
			Value: strconv.FormatInt(expiresAt.Unix(), 10),
		}
	}

	_, err := awsx.Do(
		ctx,
		ks.store.Client.PutItem,
		ks.store.DecoratePutItem,
		&dynamodb.PutItemInput{
			TableName: aws.String(ks.store.Table),
			Item:      item,
		},
	)

	return err
}

func (ks *keyspace) Range(
	ctx context.Context,
	fn kv.RangeFunc,
) error {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(ks.store.Table),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String(`#S = :S`),
		FilterExpression:       aws.String(`attribute_not_exists(#E) OR #E > :N`),
		ProjectionExpression:   aws.String(`#K, #V`),
		ExpressionAttributeNames: map[string]string{
			"#S": kvKeyspaceAttr,
			"#K": kvKeyAttr,
			"#V": kvValueAttr,
			"#E": kvExpiresAtAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":S": ks.name,
			":N": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(time.Now().Unix(), 10),
			},
		},
	}

	for {
		out, err := awsx.Do(
			ctx,
			ks.store.Client.Query,
			ks.store.DecorateQuery,
			in,
		)
		if err != nil {
			return err
		}

		for _, item := range out.Items {
			key, err := getAttr[*types.AttributeValueMemberB](item, kvKeyAttr)
			if err != nil {
				return err
			}

			value, err := getAttr[*types.AttributeValueMemberB](item, kvValueAttr)
			if err != nil {
				return err
			}

			ok, err := fn(ctx, key.Value, value.Value)
			if !ok || err != nil {
				return err
			}
		}

		if out.LastEvaluatedKey == nil {
			return nil
		}

		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (ks *keyspace) Close() error {
	return nil
}

// isExpired returns true if the item's expiry attribute is present and is not
// after the current time.
//
// DynamoDB's time-to-live granularity is one second, so the comparison is
// performed on Unix timestamps.
func isExpired(item map[string]types.AttributeValue) (bool, error) {
	if _, ok := item[kvExpiresAtAttr]; !ok {
		return false, nil
	}

	attr, err := getAttr[*types.AttributeValueMemberN](item, kvExpiresAtAttr)
	if err != nil {
		return false, err
	}

	unix, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return false, err
	}

	return unix <= time.Now().Unix(), nil
}

// CreateKeyValueStoreTable creates a DynamoDB table for use with
// [KeyValueStore] and enables its time-to-live feature.
func CreateKeyValueStoreTable(
	ctx context.Context,
	client *dynamodb.Client,
	table string,
	decorators ...func(*dynamodb.CreateTableInput) []func(*dynamodb.Options),
) error {
	_, err := awsx.Do(
		ctx,
		client.CreateTable,
		func(in *dynamodb.CreateTableInput) []func(*dynamodb.Options) {
			var options []func(*dynamodb.Options)
			for _, dec := range decorators {
				options = append(options, dec(in)...)
			}

			return options
		},
		&dynamodb.CreateTableInput{
			TableName: aws.String(table),
			AttributeDefinitions: []types.AttributeDefinition{
				{
					AttributeName: aws.String(kvKeyspaceAttr),
					AttributeType: types.ScalarAttributeTypeS,
				},
				{
					AttributeName: aws.String(kvKeyAttr),
					AttributeType: types.ScalarAttributeTypeB,
				},
			},
			KeySchema: []types.KeySchemaElement{
				{
					AttributeName: aws.String(kvKeyspaceAttr),
					KeyType:       types.KeyTypeHash,
				},
				{
					AttributeName: aws.String(kvKeyAttr),
					KeyType:       types.KeyTypeRange,
				},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	)

	if errors.As(err, new(*types.ResourceInUseException)) {
		return nil
	}

	if err != nil {
		return err
	}

	_, err = client.UpdateTimeToLive(
		ctx,
		&dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(table),
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: aws.String(kvExpiresAtAttr),
				Enabled:       aws.Bool(true),
			},
		},
	)

	return err
}
