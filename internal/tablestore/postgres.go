package tablestore

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore хранит все таблицы в одной таблице PostgreSQL entities.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore подключается к PostgreSQL и применяет миграции.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Table возвращает таблицу с указанным именем.
func (s *PostgresStore) Table(name string) Table {
	return &postgresTable{pool: s.pool, name: name}
}

// Close закрывает пул соединений с БД.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresTable struct {
	pool *pgxpool.Pool
	name string
}

func (t *postgresTable) Get(ctx context.Context, partitionKey, rowKey string) (*Entity, error) {
	var e *Entity
	err := withRetry(ctx, func() error {
		row := t.pool.QueryRow(ctx,
			`SELECT etag, properties, updated_at
			 FROM entities
			 WHERE table_name = $1 AND partition_key = $2 AND row_key = $3`,
			t.name, partitionKey, rowKey,
		)

		var (
			etag      uuid.UUID
			raw       []byte
			updatedAt time.Time
		)
		if err := row.Scan(&etag, &raw, &updatedAt); err != nil {
			return err
		}

		props, err := decodeProperties(raw)
		if err != nil {
			return err
		}

		e = &Entity{
			PartitionKey: partitionKey,
			RowKey:       rowKey,
			ETag:         etag.String(),
			Timestamp:    updatedAt.UTC(),
			Properties:   props,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (t *postgresTable) Insert(ctx context.Context, e Entity) error {
	raw, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	_, err = t.pool.Exec(ctx,
		`INSERT INTO entities (table_name, partition_key, row_key, etag, properties)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.name, e.PartitionKey, e.RowKey, uuid.New(), raw,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, e.PartitionKey, e.RowKey)
		}
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (t *postgresTable) Replace(ctx context.Context, e Entity) error {
	expected, err := uuid.Parse(e.ETag)
	if err != nil {
		return ErrConflict
	}

	raw, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	cmdTag, err := t.pool.Exec(ctx,
		`UPDATE entities
		 SET properties = $4, etag = $5, updated_at = now()
		 WHERE table_name = $1 AND partition_key = $2 AND row_key = $3 AND etag = $6`,
		t.name, e.PartitionKey, e.RowKey, raw, uuid.New(), expected,
	)
	if err != nil {
		return fmt.Errorf("replace entity: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = t.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM entities WHERE table_name = $1 AND partition_key = $2 AND row_key = $3)`,
		t.name, e.PartitionKey, e.RowKey,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check entity: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (t *postgresTable) Query(ctx context.Context, partitionKey, continuation string, limit int) (Page, error) {
	after, err := decodeRowKeyToken(continuation)
	if err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		limit = 1000
	}

	var page Page
	err = withRetry(ctx, func() error {
		rows, err := t.pool.Query(ctx,
			`SELECT row_key, etag, properties, updated_at
			 FROM entities
			 WHERE table_name = $1 AND partition_key = $2 AND row_key > $3
			 ORDER BY row_key
			 LIMIT $4`,
			t.name, partitionKey, after, limit+1,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		page = Page{}
		for rows.Next() {
			var (
				rowKey    string
				etag      uuid.UUID
				raw       []byte
				updatedAt time.Time
			)
			if err := rows.Scan(&rowKey, &etag, &raw, &updatedAt); err != nil {
				return fmt.Errorf("scan entity: %w", err)
			}
			props, err := decodeProperties(raw)
			if err != nil {
				return err
			}
			page.Entities = append(page.Entities, Entity{
				PartitionKey: partitionKey,
				RowKey:       rowKey,
				ETag:         etag.String(),
				Timestamp:    updatedAt.UTC(),
				Properties:   props,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return Page{}, fmt.Errorf("query entities: %w", err)
	}

	if len(page.Entities) > limit {
		page.Entities = page.Entities[:limit]
		page.Continuation = encodeRowKeyToken(page.Entities[limit-1].RowKey)
	}
	return page, nil
}

func decodeProperties(raw []byte) (Properties, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	props := Properties{}
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	return props, nil
}

// withRetry повторяет только чтения: запись с ETag повторять нельзя.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || !isTransient(err) || i == len(delays) {
			return err
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
