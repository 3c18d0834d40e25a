package tablestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore хранит таблицы в памяти процесса. Используется в тестах и при локальной разработке.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*MemoryTable
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*MemoryTable)}
}

// Table возвращает таблицу с указанным именем, создавая её при первом обращении.
func (s *MemoryStore) Table(name string) Table {
	return s.MemoryTable(name)
}

// MemoryTable возвращает конкретную реализацию таблицы.
func (s *MemoryStore) MemoryTable(name string) *MemoryTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		t = &MemoryTable{partitions: make(map[string]map[string]Entity)}
		s.tables[name] = t
	}
	return t
}

// Close ничего не делает.
func (s *MemoryStore) Close() error { return nil }

// MemoryTable хранит таблицу в памяти.
type MemoryTable struct {
	mu         sync.RWMutex
	partitions map[string]map[string]Entity
}

func (t *MemoryTable) Get(_ context.Context, partitionKey, rowKey string) (*Entity, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.partitions[partitionKey][rowKey]
	if !ok {
		return nil, ErrNotFound
	}
	e.Properties = e.Properties.clone()
	return &e, nil
}

func (t *MemoryTable) Insert(_ context.Context, e Entity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, ok := t.partitions[e.PartitionKey]
	if !ok {
		rows = make(map[string]Entity)
		t.partitions[e.PartitionKey] = rows
	}
	if _, exists := rows[e.RowKey]; exists {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, e.PartitionKey, e.RowKey)
	}

	e.ETag = uuid.NewString()
	e.Timestamp = time.Now().UTC()
	e.Properties = e.Properties.clone()
	rows[e.RowKey] = e
	return nil
}

func (t *MemoryTable) Replace(_ context.Context, e Entity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.partitions[e.PartitionKey][e.RowKey]
	if !ok {
		return ErrNotFound
	}
	if current.ETag != e.ETag {
		return ErrConflict
	}

	e.ETag = uuid.NewString()
	e.Timestamp = time.Now().UTC()
	e.Properties = e.Properties.clone()
	t.partitions[e.PartitionKey][e.RowKey] = e
	return nil
}

func (t *MemoryTable) Query(_ context.Context, partitionKey, continuation string, limit int) (Page, error) {
	after, err := decodeRowKeyToken(continuation)
	if err != nil {
		return Page{}, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := t.partitions[partitionKey]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		if continuation == "" || k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var page Page
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
		page.Continuation = encodeRowKeyToken(keys[limit-1])
	}

	page.Entities = make([]Entity, 0, len(keys))
	for _, k := range keys {
		e := rows[k]
		e.Properties = e.Properties.clone()
		page.Entities = append(page.Entities, e)
	}
	return page, nil
}
