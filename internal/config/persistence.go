package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dogmatiq/ferrite"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/telemetry/instrumentedpersistence"
	dynamodbdriver "github.com/relaynet/gateway/persistence/driver/aws/dynamodb"
	s3driver "github.com/relaynet/gateway/persistence/driver/aws/s3"
	"github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/persistence/driver/postgres"
)

var (
	ledgerBackend = ferrite.
			Enum("GATEWAY_LEDGER_BACKEND", "the storage backend used for the collection ledger").
			WithMembers("memory", "dynamodb", "postgres").
			WithDefault("memory").
			Required(ferrite.WithRegistry(FerriteRegistry))

	dynamoDBTable = ferrite.
			String("GATEWAY_DYNAMODB_TABLE", "the name of the DynamoDB table used for the collection ledger").
			WithDefault("gateway-ledger").
			Required(ferrite.WithRegistry(FerriteRegistry))

	postgresDSN = ferrite.
			String("GATEWAY_POSTGRES_DSN", "the PostgreSQL connection string used for the collection ledger").
			Optional(ferrite.WithRegistry(FerriteRegistry))

	objectStoreBucket = ferrite.
				String("GATEWAY_OBJECT_STORE_BUCKET", "the S3 bucket in which parcels are stored, an in-memory store is used if it is not set").
				Optional(ferrite.WithRegistry(FerriteRegistry))

	awsEndpoint = ferrite.
			URL("GATEWAY_AWS_ENDPOINT", "a custom endpoint for the AWS services, such as a local emulator").
			Optional(ferrite.WithRegistry(FerriteRegistry))

	ledgerReapInterval = ferrite.
				Duration("GATEWAY_LEDGER_REAP_INTERVAL", "the interval at which expired collection ledger records are removed").
				WithDefault(ledger.DefaultReapInterval).
				WithMinimum(time.Second).
				Required(ferrite.WithRegistry(FerriteRegistry))
)

func (c *Config) finalizePersistence(ctx context.Context) error {
	if c.UseEnv {
		if c.Persistence.Keyspaces == nil {
			if err := c.keyValueStoreFromEnv(ctx); err != nil {
				return err
			}
		}

		if c.Persistence.Objects == nil {
			if err := c.objectStoreFromEnv(ctx); err != nil {
				return err
			}
		}

		if c.Persistence.ReapInterval == 0 {
			c.Persistence.ReapInterval = ledgerReapInterval.Value()
		}
	}

	if c.Persistence.Keyspaces == nil {
		c.Telemetry.Logger.Warn("no key/value store is configured, using an in-memory store")
		c.Persistence.Keyspaces = &memory.KeyValueStore{}
	}

	if c.Persistence.Objects == nil {
		c.Telemetry.Logger.Warn("no object store is configured, using an in-memory store")
		c.Persistence.Objects = &memory.ObjectStore{}
	}

	if c.Persistence.ReapInterval == 0 {
		c.Persistence.ReapInterval = ledger.DefaultReapInterval
	}

	c.Persistence.Keyspaces = &instrumentedpersistence.KeyValueStore{
		Next:      c.Persistence.Keyspaces,
		Telemetry: c.Telemetry,
	}

	c.Persistence.Objects = &instrumentedpersistence.ObjectStore{
		Next:      c.Persistence.Objects,
		Telemetry: c.Telemetry,
	}

	return nil
}

func (c *Config) keyValueStoreFromEnv(ctx context.Context) error {
	switch ledgerBackend.Value() {
	case "dynamodb":
		cfg, err := c.awsConfig(ctx)
		if err != nil {
			return err
		}

		client := dynamodb.NewFromConfig(
			cfg,
			func(o *dynamodb.Options) {
				if u, ok := awsEndpoint.Value(); ok {
					o.BaseEndpoint = aws.String(u.String())
				}
			},
		)
		table := dynamoDBTable.Value()

		c.Persistence.Keyspaces = &dynamodbdriver.KeyValueStore{
			Client: client,
			Table:  table,
		}
		c.Persistence.CreateSchema = func(ctx context.Context) error {
			return dynamodbdriver.CreateKeyValueStoreTable(ctx, client, table)
		}

	case "postgres":
		dsn, ok := postgresDSN.Value()
		if !ok {
			return fmt.Errorf("GATEWAY_POSTGRES_DSN must be set when GATEWAY_LEDGER_BACKEND is %q", "postgres")
		}

		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return fmt.Errorf("unable to open PostgreSQL database: %w", err)
		}

		c.Persistence.Keyspaces = &postgres.KeyValueStore{DB: db}
		c.Persistence.CreateSchema = func(ctx context.Context) error {
			return postgres.CreateKeyValueStoreSchema(ctx, db)
		}
		c.Persistence.Close = db.Close
	}

	return nil
}

func (c *Config) objectStoreFromEnv(ctx context.Context) error {
	bucket, ok := objectStoreBucket.Value()
	if !ok {
		return nil
	}

	cfg, err := c.awsConfig(ctx)
	if err != nil {
		return err
	}

	client := s3.NewFromConfig(
		cfg,
		func(o *s3.Options) {
			if u, ok := awsEndpoint.Value(); ok {
				o.BaseEndpoint = aws.String(u.String())
				o.UsePathStyle = true
			}
		},
	)

	c.Persistence.Objects = &s3driver.ObjectStore{
		Client: client,
		Bucket: bucket,
	}

	createSchema := c.Persistence.CreateSchema
	c.Persistence.CreateSchema = func(ctx context.Context) error {
		if createSchema != nil {
			if err := createSchema(ctx); err != nil {
				return err
			}
		}
		return s3driver.CreateBucket(ctx, client, bucket)
	}

	return nil
}

func (c *Config) awsConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS configuration: %w", err)
	}
	return cfg, nil
}
