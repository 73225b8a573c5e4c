package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It is used by tests and by the
// "memory" store driver for local runs. Values are stored as given, so native time.Time
// values stay native.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Fields
	closed      bool

	// NewID assigns identifiers to new documents. Tests may replace it before use.
	NewID func() string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]Fields, len(Collections)),
		NewID:       newID,
	}
	for _, c := range Collections {
		s.collections[c] = make(map[string]Fields)
	}
	return s
}

// Put stores a document under the given identifier as is, replacing any previous
// version. It is meant for seeding documents in tests.
func (s *MemoryStore) Put(collection string, id string, fields Fields) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection][id] = cloneFields(fields)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := s.check(ctx, "add", collection); err != nil {
		return "", err
	}
	if err := checkFields(fields); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.NewID()
	if _, exists := s.collections[collection][id]; exists {
		return "", &BackendError{Op: "add", Code: CodeUnknown, Err: fmt.Errorf("duplicate id %s", id)}
	}
	s.collections[collection][id] = cloneFields(fields)
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection string, id string) (Document, bool, error) {
	if err := s.check(ctx, "get", collection); err != nil {
		return Document{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.collections[collection][id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Fields: cloneFields(fields)}, true, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := s.check(ctx, "query", collection); err != nil {
		return nil, err
	}
	if err := checkQuery(q); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var docs []Document
	for id, fields := range s.collections[collection] {
		if matches(fields, q.Where) {
			docs = append(docs, Document{ID: id, Fields: cloneFields(fields)})
		}
	}
	s.mu.Unlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	return docs, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, id string, fields Fields) error {
	if err := s.check(ctx, "update", collection); err != nil {
		return err
	}
	if err := checkFields(fields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.collections[collection][id]
	if !ok {
		return NewNotFound("update", collection, id)
	}
	for k, v := range cloneFields(fields) {
		stored[k] = v
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection string, id string, field string, delta int64) error {
	if err := s.check(ctx, "increment", collection); err != nil {
		return err
	}
	if err := checkField(field); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.collections[collection][id]
	if !ok {
		return NewNotFound("increment", collection, id)
	}
	current, _ := toFloat(stored[field])
	next := int64(current) + delta
	if next < 0 {
		next = 0
	}
	stored[field] = next
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, id string) error {
	if err := s.check(ctx, "delete", collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.check(ctx, "ping", Contacts)
}

// Close makes every further call fail with CodeUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context, op string, collection string) error {
	if err := ctx.Err(); err != nil {
		return classify(op, err)
	}
	if err := checkCollection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &BackendError{Op: op, Code: CodeUnavailable, Err: fmt.Errorf("store closed")}
	}
	return nil
}

func matches(fields Fields, where []Filter) bool {
	for _, f := range where {
		s, ok := fields[f.Field].(string)
		if !ok || s != f.Value {
			return false
		}
	}
	return true
}

// compareValues orders nil first, then numbers, strings and times among themselves.
// Values of different kinds compare by their printed form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
