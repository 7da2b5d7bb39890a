package store

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local DocumentStore. Every batch commits under a
// single lock, so readers and watchers never observe a partial batch.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	watchers    map[*memoryWatcher]struct{}
}

type memoryWatcher struct {
	query Query
	sub   *Subscription
	last  map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		watchers:    make(map[*memoryWatcher]struct{}),
	}
}

func (m *MemoryStore) NewID(string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "get", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: normalizeMap(data)}, nil
}

func (m *MemoryStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	b := m.Batch()
	b.Create(collection, id, data)
	return b.Commit(ctx)
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	b := m.Batch()
	b.Set(collection, id, data)
	return b.Commit(ctx)
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, updates ...Update) error {
	b := m.Batch()
	b.Update(collection, id, updates...)
	return b.Commit(ctx)
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	b := m.Batch()
	b.Delete(collection, id)
	return b.Commit(ctx)
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "query", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(q), nil
}

func (m *MemoryStore) Watch(ctx context.Context, q Query) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "watch", Err: err}
	}

	sub := newSubscription(ctx)
	w := &memoryWatcher{query: q, sub: sub}

	m.mu.Lock()
	docs := m.queryLocked(q)
	changes, index := diffDocuments(nil, docs)
	w.last = index
	sub.push(Snapshot{Docs: docs, Changes: changes})
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go sub.run(func() {
		m.mu.Lock()
		delete(m.watchers, w)
		m.mu.Unlock()
	})
	return sub, nil
}

func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

func (m *MemoryStore) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for w := range m.watchers {
		w.sub.Close()
	}
	return nil
}

type writeKind int

const (
	writeCreate writeKind = iota
	writeSet
	writeUpdate
	writeDelete
)

type memoryWrite struct {
	kind       writeKind
	collection string
	id         string
	data       map[string]interface{}
	updates    []Update
}

type memoryBatch struct {
	store  *MemoryStore
	writes []memoryWrite
}

func (b *memoryBatch) Create(collection, id string, data map[string]interface{}) {
	b.writes = append(b.writes, memoryWrite{kind: writeCreate, collection: collection, id: id, data: normalizeMap(data)})
}

func (b *memoryBatch) Set(collection, id string, data map[string]interface{}) {
	b.writes = append(b.writes, memoryWrite{kind: writeSet, collection: collection, id: id, data: normalizeMap(data)})
}

func (b *memoryBatch) Update(collection, id string, updates ...Update) {
	b.writes = append(b.writes, memoryWrite{kind: writeUpdate, collection: collection, id: id, updates: updates})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.writes = append(b.writes, memoryWrite{kind: writeDelete, collection: collection, id: id})
}

func (b *memoryBatch) Len() int {
	return len(b.writes)
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "commit", Err: err}
	}
	return b.store.commit(b.writes)
}

type docKey struct {
	collection string
	id         string
}

// commit validates every write against the current state plus the writes
// staged before it, and applies nothing if any precondition fails.
func (m *MemoryStore) commit(writes []memoryWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[docKey]map[string]interface{}, len(writes))
	order := make([]docKey, 0, len(writes))
	lookup := func(k docKey) (map[string]interface{}, bool) {
		if data, ok := staged[k]; ok {
			return data, data != nil
		}
		data, ok := m.collections[k.collection][k.id]
		return data, ok
	}
	stage := func(k docKey, data map[string]interface{}) {
		if _, ok := staged[k]; !ok {
			order = append(order, k)
		}
		staged[k] = data
	}

	touched := make(map[string]bool)
	for _, w := range writes {
		k := docKey{collection: w.collection, id: w.id}
		current, exists := lookup(k)

		switch w.kind {
		case writeCreate:
			if exists {
				return ErrAlreadyExists
			}
			stage(k, w.data)
		case writeSet:
			stage(k, w.data)
		case writeUpdate:
			if !exists {
				return ErrNotFound
			}
			next := normalizeMap(current)
			for _, u := range w.updates {
				setPath(next, u.Path, normalize(u.Value))
			}
			stage(k, next)
		case writeDelete:
			stage(k, nil)
		}
		touched[w.collection] = true
	}

	for _, k := range order {
		data := staged[k]
		coll := m.collections[k.collection]
		if data == nil {
			if coll != nil {
				delete(coll, k.id)
			}
			continue
		}
		if coll == nil {
			coll = make(map[string]map[string]interface{})
			m.collections[k.collection] = coll
		}
		coll[k.id] = data
	}

	m.notifyLocked(touched)
	return nil
}

func (m *MemoryStore) notifyLocked(touched map[string]bool) {
	for w := range m.watchers {
		if !touched[w.query.Collection] {
			continue
		}
		docs := m.queryLocked(w.query)
		changes, index := diffDocuments(w.last, docs)
		if len(changes) == 0 {
			continue
		}
		w.last = index
		w.sub.push(Snapshot{Docs: docs, Changes: changes})
	}
}

func (m *MemoryStore) queryLocked(q Query) []*Document {
	docs := make([]*Document, 0)
	for id, data := range m.collections[q.Collection] {
		if !matches(data, q.Filters) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := lookupPath(data, q.OrderBy); !ok {
				continue
			}
		}
		docs = append(docs, &Document{ID: id, Data: normalizeMap(data)})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := lookupPath(docs[i].Data, q.OrderBy)
			b, _ := lookupPath(docs[j].Data, q.OrderBy)
			if c := compareValues(a, b); c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].ID < docs[j].ID
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func matches(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		value, ok := lookupPath(data, f.Field)
		switch f.Op {
		case OpEqual:
			if !ok || !reflect.DeepEqual(value, f.Value) {
				return false
			}
		case OpArrayContains:
			items, isArray := value.([]interface{})
			if !ok || !isArray {
				return false
			}
			found := false
			for _, item := range items {
				if reflect.DeepEqual(item, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func lookupPath(data map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(data map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// compareValues orders values the way the document stores do for a single
// type. Nil sorts first.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1
			case x.After(y):
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return compareFloat(float64(x), float64(y))
		case float64:
			return compareFloat(float64(x), y)
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return compareFloat(x, float64(y))
		case float64:
			return compareFloat(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok && x != y {
			if !x {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
