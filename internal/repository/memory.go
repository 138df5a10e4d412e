package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"natours/api/internal/apperr"
	"natours/api/internal/query"
	"natours/api/internal/resource"
)

// Memory is an in-process binding used by tests and the "memory" driver.
type Memory struct {
	mu      sync.RWMutex
	records map[string]resource.Record
	order   []string
	unique  []string
}

func NewMemory(desc *resource.Descriptor) *Memory {
	return &Memory{
		records: make(map[string]resource.Record),
		unique:  desc.UniqueFields(),
	}
}

func (m *Memory) Find(_ context.Context, q FindQuery) ([]resource.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []resource.Record
	for _, id := range m.order {
		rec := m.records[id]
		if matches(rec, q.Filter) {
			hits = append(hits, rec)
		}
	}
	if len(q.Sort) > 0 {
		slices.SortStableFunc(hits, func(a, b resource.Record) int {
			for _, s := range q.Sort {
				cmp := sortValue(a, b, s.Field)
				if s.Desc {
					cmp = -cmp
				}
				if cmp != 0 {
					return cmp
				}
			}
			return 0
		})
	}

	if q.Skip >= len(hits) {
		return []resource.Record{}, nil
	}
	hits = hits[q.Skip:]
	if q.Limit > 0 && q.Limit < len(hits) {
		hits = hits[:q.Limit]
	}
	out := make([]resource.Record, len(hits))
	for i, rec := range hits {
		out[i] = project(deepCopy(rec), q.Projection)
	}
	return out, nil
}

func (m *Memory) Count(_ context.Context, f query.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, rec := range m.records {
		if matches(rec, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) FindByID(_ context.Context, id string, p query.Projection) (resource.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return project(deepCopy(rec), p), nil
}

func (m *Memory) Create(_ context.Context, rec resource.Record) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := rec.ID()
	if id == "" {
		return nil, apperr.Validation(resource.IDField, "is required")
	}
	if _, exists := m.records[id]; exists {
		return nil, apperr.ErrConflict
	}
	stored := deepCopy(rec)
	for k, v := range stored {
		if v == nil {
			delete(stored, k)
		}
	}
	if err := m.checkUnique(id, stored); err != nil {
		return nil, err
	}
	m.records[id] = stored
	m.order = append(m.order, id)
	return deepCopy(stored), nil
}

func (m *Memory) UpdateByID(_ context.Context, id string, changes resource.Record) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return nil, apperr.ErrNotFound
	}
	return m.apply(id, changes)
}

func (m *Memory) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.records, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

func (m *Memory) FindOneAndUpdate(_ context.Context, f query.Filter, changes resource.Record) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		if matches(m.records[id], f) {
			return m.apply(id, changes)
		}
	}
	return nil, apperr.ErrNotFound
}

// apply must be called with the write lock held.
func (m *Memory) apply(id string, changes resource.Record) (resource.Record, error) {
	next := deepCopy(m.records[id])
	set, unset := splitChanges(changes)
	for k, v := range deepCopy(set) {
		next[k] = v
	}
	for _, k := range unset {
		delete(next, k)
	}
	if err := m.checkUnique(id, next); err != nil {
		return nil, err
	}
	m.records[id] = next
	return deepCopy(next), nil
}

func (m *Memory) checkUnique(id string, rec resource.Record) error {
	for _, field := range m.unique {
		v, ok := rec[field]
		if !ok {
			continue
		}
		for otherID, other := range m.records {
			if otherID == id {
				continue
			}
			if cmp, ok := compare(other[field], v); ok && cmp == 0 {
				return apperr.ErrConflict
			}
		}
	}
	return nil
}

func deepCopy(rec resource.Record) resource.Record {
	out := make(resource.Record, len(rec))
	for k, v := range rec {
		switch list := v.(type) {
		case []string:
			out[k] = slices.Clone(list)
		case []time.Time:
			out[k] = slices.Clone(list)
		case []any:
			out[k] = slices.Clone(list)
		default:
			out[k] = v
		}
	}
	return out
}
