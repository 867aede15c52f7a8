package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/relaynet/gateway/persistence/kv"
)

// KeyValueStore is an implementation of [kv.Store] that stores keyspaces in a
// PostgreSQL database.
type KeyValueStore struct {
	DB *sql.DB
}

var _ kv.Purger = (*KeyValueStore)(nil)

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	return &keyspace{
		Name: name,
		DB:   s.DB,
	}, ctx.Err()
}

// Purge removes all expired key/value pairs from every keyspace.
func (s *KeyValueStore) Purge(ctx context.Context) (int, error) {
	res, err := s.DB.ExecContext(
		ctx,
		`DELETE FROM gateway.kv
		WHERE expires_at IS NOT NULL
		AND expires_at <= $1`,
		time.Now(),
	)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

type keyspace struct {
	Name string
	DB   *sql.DB
}

func (ks *keyspace) Get(ctx context.Context, k []byte) (v []byte, err error) {
	row := ks.DB.QueryRowContext(
		ctx,
		`SELECT
			value
		FROM gateway.kv
		WHERE keyspace = $1
		AND key = $2
		AND (expires_at IS NULL OR expires_at > $3)`,
		ks.Name,
		k,
		time.Now(),
	)

	err = row.Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return v, err
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (ok bool, err error) {
	row := ks.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM gateway.kv
			WHERE keyspace = $1
			AND key = $2
			AND (expires_at IS NULL OR expires_at > $3)
		)`,
		ks.Name,
		k,
		time.Now(),
	)

	err = row.Scan(&ok)
	return ok, err
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte, expiresAt time.Time) error {
	if len(v) == 0 {
		_, err := ks.DB.ExecContext(
			ctx,
			`DELETE FROM gateway.kv
			WHERE keyspace = $1
			AND key = $2`,
			ks.Name,
			k,
		)

		return err
	}

	var exp sql.NullTime
	if !expiresAt.IsZero() {
		exp = sql.NullTime{Time: expiresAt, Valid: true}
	}

	_, err := ks.DB.ExecContext(
		ctx,
		`INSERT INTO gateway.kv AS o (
			keyspace,
			key,
			value,
			expires_at
		) VALUES (
			$1, $2, $3, $4
		) ON CONFLICT (keyspace, key) DO UPDATE SET
			value = $3,
			expires_at = $4
		`,
		ks.Name,
		k,
		v,
		exp,
	)

	return err
}

func (ks *keyspace) Range(
	ctx context.Context,
	fn kv.RangeFunc,
) error {
	rows, err := ks.DB.QueryContext(
		ctx,
		`SELECT
			key,
			value
		FROM gateway.kv
		WHERE keyspace = $1
		AND (expires_at IS NULL OR expires_at > $2)`,
		ks.Name,
		time.Now(),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			k []byte
			v []byte
		)
		if err = rows.Scan(&k, &v); err != nil {
			return err
		}

		ok, err := fn(ctx, k, v)
		if !ok || err != nil {
			return err
		}
	}

	return rows.Err()
}

func (ks *keyspace) Close() error {
	return nil
}

// CreateKeyValueStoreSchema creates the PostgreSQL schema elements required by
// [KeyValueStore].
func CreateKeyValueStoreSchema(
	ctx context.Context,
	db *sql.DB,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS gateway`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS gateway.kv (
			keyspace   TEXT NOT NULL,
			key        BYTEA NOT NULL,
			value      BYTEA NOT NULL,
			expires_at TIMESTAMPTZ,

			PRIMARY KEY (keyspace, key)
		)`,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		`CREATE INDEX IF NOT EXISTS kv_expires_at
		ON gateway.kv (expires_at)
		WHERE expires_at IS NOT NULL`,
	); err != nil {
		return err
	}

	return tx.Commit()
}
