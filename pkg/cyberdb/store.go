package cyberdb

import (
	"iter"
	"sync"

	"github.com/google/uuid"

	kberrors "github.com/redopsio/cyberkb/pkg/errors"
)

// Store is the entity-store contract the engine consumes. Feed is an
// idempotent create-or-merge keyed by the entity's natural key: fields not
// supplied must not overwrite previously stored values. Request returns a
// lazy sequence safe to consume while feeding other entities.
type Store interface {
	Feed(entity string, fields Fields) (*Record, error)
	Request(entity string, filters ...Filter) (iter.Seq[*Record], error)
	First(entity string, filters ...Filter) (*Record, error)
}

// MemStore is the reference in-memory Store implementation. Records keep
// insertion order, so iteration is deterministic.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]*Record
	index   map[string]map[string]*Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string][]*Record),
		index:   make(map[string]map[string]*Record),
	}
}

// Feed upserts a record by its natural key. Existing records are merged:
// supplied fields overwrite, omitted fields stay untouched, explicit nil
// clears.
func (s *MemStore) Feed(entity string, fields Fields) (*Record, error) {
	schema, ok := SchemaFor(entity)
	if !ok {
		return nil, kberrors.Newf(kberrors.KindNotFound, "cyberdb.Feed", "unknown entity %q", entity)
	}

	normalized := make(Fields, len(fields))
	for name, v := range fields {
		t, ok := schema.Fields[name]
		if !ok {
			return nil, kberrors.Newf(kberrors.KindInvalidInput, "cyberdb.Feed",
				"entity %s has no field %q", entity, name)
		}
		nv, err := normalizeValue(entity, name, t, v)
		if err != nil {
			return nil, err
		}
		normalized[name] = nv
	}

	key, err := naturalKey(schema, normalized)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.index[entity]
	if byKey == nil {
		byKey = make(map[string]*Record)
		s.index[entity] = byKey
	}

	if existing, ok := byKey[key]; ok {
		for name, v := range normalized {
			existing.fields[name] = v
		}
		return existing, nil
	}

	rec := &Record{
		id:     uuid.NewString(),
		entity: entity,
		fields: normalized,
	}
	byKey[key] = rec
	s.records[entity] = append(s.records[entity], rec)
	return rec, nil
}

// Request returns a lazy sequence over the entity's records matching all
// filters. The snapshot holds only record pointers, so even very large
// entities stream without materializing field data.
func (s *MemStore) Request(entity string, filters ...Filter) (iter.Seq[*Record], error) {
	if _, ok := SchemaFor(entity); !ok {
		return nil, kberrors.Newf(kberrors.KindNotFound, "cyberdb.Request", "unknown entity %q", entity)
	}

	s.mu.RLock()
	snapshot := make([]*Record, len(s.records[entity]))
	copy(snapshot, s.records[entity])
	s.mu.RUnlock()

	return func(yield func(*Record) bool) {
	next:
		for _, rec := range snapshot {
			for _, f := range filters {
				if !f.matches(rec) {
					continue next
				}
			}
			if !yield(rec) {
				return
			}
		}
	}, nil
}

// First returns the first record matching the filters, or nil when none does.
func (s *MemStore) First(entity string, filters ...Filter) (*Record, error) {
	seq, err := s.Request(entity, filters...)
	if err != nil {
		return nil, err
	}
	for rec := range seq {
		return rec, nil
	}
	return nil, nil
}
