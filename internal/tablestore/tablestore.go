// Package tablestore предоставляет доступ к секционированному хранилищу таблиц
// (ключ раздела + ключ строки) с оптимистичной блокировкой по ETag.
package tablestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound возвращается, если строка с указанными ключами отсутствует.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict возвращается, если строка изменилась с момента чтения.
	ErrConflict = errors.New("entity was modified concurrently")
	// ErrAlreadyExists возвращается при вставке строки с уже существующими ключами.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrInvalidContinuation возвращается при повреждённом токене продолжения.
	ErrInvalidContinuation = errors.New("invalid continuation token")
)

// Entity описывает строку таблицы.
type Entity struct {
	PartitionKey string
	RowKey       string
	ETag         string
	Timestamp    time.Time
	Properties   Properties
}

// Page содержит одну страницу результатов сканирования раздела.
type Page struct {
	Entities []Entity
	// Continuation пуст, если страниц больше нет.
	Continuation string
}

// Table описывает операции над одной таблицей хранилища.
type Table interface {
	Get(ctx context.Context, partitionKey, rowKey string) (*Entity, error)
	Insert(ctx context.Context, e Entity) error
	// Replace заменяет строку целиком, если её ETag совпадает с e.ETag.
	Replace(ctx context.Context, e Entity) error
	Query(ctx context.Context, partitionKey, continuation string, limit int) (Page, error)
}

// Store открывает таблицы одного хранилища.
type Store interface {
	Table(name string) Table
	Close() error
}

// Open выбирает реализацию хранилища по строке подключения.
func Open(ctx context.Context, connectionString string) (Store, error) {
	switch {
	case connectionString == "":
		return nil, errors.New("storage connection string is empty")
	case strings.HasPrefix(connectionString, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(connectionString, "postgres://"), strings.HasPrefix(connectionString, "postgresql://"):
		return NewPostgresStore(ctx, connectionString)
	case strings.Contains(connectionString, "AccountName="), strings.Contains(connectionString, "UseDevelopmentStorage=true"):
		return NewAzureStore(connectionString)
	default:
		return nil, fmt.Errorf("unsupported storage connection string")
	}
}

// ScanPartition читает все строки раздела, запрашивая страницы до исчерпания токена продолжения.
func ScanPartition(ctx context.Context, t Table, partitionKey string, pageSize int) ([]Entity, error) {
	var (
		all   []Entity
		token string
	)
	for {
		page, err := t.Query(ctx, partitionKey, token, pageSize)
		if err != nil {
			return nil, fmt.Errorf("query partition %q: %w", partitionKey, err)
		}
		all = append(all, page.Entities...)

		if page.Continuation == "" {
			return all, nil
		}
		token = page.Continuation
	}
}

func encodeRowKeyToken(rowKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rowKey))
}

func decodeRowKeyToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContinuation, err)
	}
	return string(b), nil
}
