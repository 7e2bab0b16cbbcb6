// internal/storage/memory.go
package storage

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"hr-toolkit/internal/model"
)

// Policy is the acceptance rule of one in-memory collection. Allowed lists
// known columns (empty allows any column). Accept, when set, runs after the
// built-in checks and may reject with any error.
type Policy struct {
	Required []string
	Allowed  []string
	Accept   func(model.Record) error
}

// MemoryStore is an in-process CollectionStore for offline runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	policies map[string]Policy
	rows     map[string]map[string]model.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]Policy),
		rows:     make(map[string]map[string]model.Record),
	}
}

// SetPolicy installs the acceptance rule for collection.
func (m *MemoryStore) SetPolicy(collection string, p Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[collection] = p
}

// Len returns the number of rows stored in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[collection])
}

func (m *MemoryStore) Insert(_ context.Context, collection string, rec model.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(collection, rec, true); err != nil {
		return "", err
	}

	row := rec.Clone()
	if row == nil {
		row = model.Record{}
	}
	var id string
	if v := row[IDColumn]; v != nil {
		id = fmt.Sprint(v)
	}
	if id == "" {
		id = uuid.NewString()
		row[IDColumn] = id
	}
	if m.rows[collection] == nil {
		m.rows[collection] = make(map[string]model.Record)
	}
	if _, dup := m.rows[collection][id]; dup {
		return "", &RejectionError{Collection: collection, Kind: model.RejectInvalidValue, Column: IDColumn, Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	m.rows[collection][id] = row
	return id, nil
}

func (m *MemoryStore) Select(_ context.Context, collection string, filter Filter) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range filter {
		if !m.allowed(collection, k) {
			return nil, unknownColumn(collection, k)
		}
	}

	ids := make([]string, 0, len(m.rows[collection]))
	for id := range m.rows[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []model.Record{}
	for _, id := range ids {
		row := m.rows[collection][id]
		if matches(row, filter) {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, patch model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(patch) == 0 {
		return fmt.Errorf("%s: empty update", collection)
	}
	if err := m.check(collection, patch, false); err != nil {
		return err
	}
	row, ok := m.rows[collection][id]
	if !ok {
		return fmt.Errorf("%s: update: %w", collection, ErrNotFound)
	}
	for k, v := range patch {
		row[k] = v
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[collection][id]; !ok {
		return fmt.Errorf("%s: delete: %w", collection, ErrNotFound)
	}
	delete(m.rows[collection], id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// check applies the collection policy; required fields only apply to inserts.
func (m *MemoryStore) check(collection string, rec model.Record, insert bool) error {
	p, ok := m.policies[collection]
	if !ok {
		return nil
	}
	for _, k := range rec.Keys() {
		if k != IDColumn && !m.allowed(collection, k) {
			return unknownColumn(collection, k)
		}
	}
	if insert {
		for _, req := range p.Required {
			if v, ok := rec[req]; !ok || v == nil {
				return &RejectionError{
					Collection: collection,
					Kind:       model.RejectMissingRequired,
					Column:     req,
					Code:       "23502",
					Message:    fmt.Sprintf("null value in column %q of relation %q violates not-null constraint", req, collection),
				}
			}
		}
	}
	if p.Accept != nil {
		return p.Accept(rec)
	}
	return nil
}

func (m *MemoryStore) allowed(collection, column string) bool {
	p, ok := m.policies[collection]
	if !ok || len(p.Allowed) == 0 || column == IDColumn {
		return true
	}
	for _, a := range p.Allowed {
		if a == column {
			return true
		}
	}
	return false
}

func unknownColumn(collection, column string) error {
	return &RejectionError{
		Collection: collection,
		Kind:       model.RejectUnknownColumn,
		Column:     column,
		Code:       "42703",
		Message:    fmt.Sprintf("column %q of relation %q does not exist", column, collection),
	}
}

func matches(row model.Record, filter Filter) bool {
	for k, want := range filter {
		got, ok := row[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) && fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

var _ CollectionStore = (*MemoryStore)(nil)
