// Package crm is the data access layer between the HTTP handlers and the document store.
// It owns field normalization, timestamp coercion and the maintenance of the
// denormalized fields: the contact name copied onto interactions and the interaction
// count kept on contacts.
//
// Every operation takes the caller's identity explicitly. Documents owned by another
// user are reported exactly like missing documents.
package crm

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
)

// Persisted field names.
const (
	fieldUserID       = "userId"
	fieldName         = "name"
	fieldEmail        = "email"
	fieldPhone        = "phone"
	fieldBirthday     = "birthday"
	fieldNotes        = "notes"
	fieldInteractions = "interactions"
	fieldContactID    = "contactId"
	fieldContactName  = "contactName"
	fieldTitle        = "title"
	fieldDate         = "date"
	fieldCreatedAt    = "createdAt"
	fieldUpdatedAt    = "updatedAt"
)

// Repository gives typed access to contacts and interactions.
type Repository struct {
	store docstore.Store
	log   zerolog.Logger
	now   func() time.Time
}

// New returns a repository on top of the store.
func New(store docstore.Store, log zerolog.Logger) *Repository {
	return &Repository{
		store: store,
		log:   log.With().Str("component", "crm").Logger(),
		now:   time.Now,
	}
}

// ValidationError reports a missing or invalid value. It is returned before any call to
// the store is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// OperationError wraps a failed store call with the name of the operation.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	if docstore.CodeOf(e.Err) == docstore.CodePermissionDenied {
		return "permission denied while " + e.Op
	}
	return fmt.Sprintf("error %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Err: err}
}

func notFound(op, collection, id string) error {
	return wrap(op, docstore.NewNotFound(op, collection, id))
}

func checkOwner(owner identity.Identity) error {
	if !owner.Valid() {
		return &ValidationError{Field: fieldUserID, Message: "must not be empty"}
	}
	return nil
}

// optional trims s and returns nil for an empty result, so the store writes an explicit
// null instead of keeping a stale value.
func optional(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func optionalDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func (r *Repository) nowUTC() time.Time {
	return r.now().UTC()
}
