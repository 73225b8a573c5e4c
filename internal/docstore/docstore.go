// Package docstore is a small schemaless document store. Documents are JSON-like field
// maps grouped in collections and addressed by a store-assigned identifier. The only
// supported queries are equality filters combined with an optional order on one field.
package docstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Names of the collections known to the store.
const (
	Contacts     = "contacts"
	Interactions = "interactions"
)

// Collections lists all collections in the order in which backends set them up.
var Collections = []string{Contacts, Interactions}

// Fields is the content of a document. Values are nil, string, bool, numbers, time.Time,
// nested Fields/map[string]any, or []any. A nil value is stored as an explicit null.
type Fields = map[string]any

// Document is a stored document together with its identifier.
type Document struct {
	ID     string
	Fields Fields
}

// Filter matches documents whose field equals the value.
type Filter struct {
	Field string
	Value string
}

// Query selects documents of one collection.
type Query struct {
	Where      []Filter
	OrderBy    string
	Descending bool
}

// Store is implemented by all document store backends.
//
// Get reports a missing document with found == false and a nil error. Update and
// Increment fail with a BackendError of code CodeNotFound when the document does not
// exist. Delete of a missing document is not an error.
type Store interface {
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Get(ctx context.Context, collection string, id string) (doc Document, found bool, err error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Update(ctx context.Context, collection string, id string, fields Fields) error
	Increment(ctx context.Context, collection string, id string, field string, delta int64) error
	Delete(ctx context.Context, collection string, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// fieldName restricts field names to plain identifiers, so they can be turned into JSON
// paths safely.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// newID assigns identifiers to new documents.
func newID() string {
	return uuid.NewString()
}

func checkCollection(collection string) error {
	for _, c := range Collections {
		if c == collection {
			return nil
		}
	}
	return fmt.Errorf("unknown collection %q", collection)
}

func checkField(field string) error {
	if !fieldName.MatchString(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	return nil
}

func checkFields(fields Fields) error {
	for k := range fields {
		if err := checkField(k); err != nil {
			return err
		}
	}
	return nil
}

func checkQuery(q Query) error {
	for _, f := range q.Where {
		if err := checkField(f.Field); err != nil {
			return err
		}
	}
	if q.OrderBy != "" {
		return checkField(q.OrderBy)
	}
	return nil
}

// cloneValue returns a deep copy of a field value, so callers cannot mutate stored data.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

func cloneFields(fields Fields) Fields {
	return cloneValue(map[string]any(fields)).(map[string]any)
}
