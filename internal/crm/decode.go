package crm

import (
	"time"

	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/model"
	"gitlab.com/dirk.krummacker/relations-service/internal/timestamp"
)

func (r *Repository) decodeContact(doc docstore.Document) model.Contact {
	f := doc.Fields
	return model.Contact{
		Id:           doc.ID,
		UserId:       text(f[fieldUserID]),
		Name:         text(f[fieldName]),
		Email:        optionalText(f[fieldEmail]),
		Phone:        optionalText(f[fieldPhone]),
		Birthday:     r.optionalTime(docstore.Contacts, doc, fieldBirthday),
		Notes:        optionalText(f[fieldNotes]),
		Interactions: count(f[fieldInteractions]),
		CreatedAt:    r.requiredTime(docstore.Contacts, doc, fieldCreatedAt),
		UpdatedAt:    r.requiredTime(docstore.Contacts, doc, fieldUpdatedAt),
	}
}

func (r *Repository) decodeInteraction(doc docstore.Document) model.Interaction {
	f := doc.Fields
	return model.Interaction{
		Id:          doc.ID,
		UserId:      text(f[fieldUserID]),
		ContactId:   optionalText(f[fieldContactID]),
		ContactName: optionalText(f[fieldContactName]),
		Title:       text(f[fieldTitle]),
		Notes:       optionalText(f[fieldNotes]),
		Date:        r.requiredTime(docstore.Interactions, doc, fieldDate),
		CreatedAt:   r.requiredTime(docstore.Interactions, doc, fieldCreatedAt),
		UpdatedAt:   r.requiredTime(docstore.Interactions, doc, fieldUpdatedAt),
	}
}

// requiredTime coerces a timestamp field. A value that cannot be converted degrades to
// the current time and is logged, so one bad field does not fail a whole read.
func (r *Repository) requiredTime(collection string, doc docstore.Document, field string) time.Time {
	t, kind, err := timestamp.Coerce(doc.Fields[field], r.nowUTC())
	if err != nil {
		r.log.Warn().Err(err).
			Str("collection", collection).
			Str("id", doc.ID).
			Str("field", field).
			Stringer("shape", kind).
			Msg("could not coerce timestamp, using current time")
	}
	return t
}

// optionalTime is requiredTime for fields that may be absent or null.
func (r *Repository) optionalTime(collection string, doc docstore.Document, field string) *time.Time {
	if doc.Fields[field] == nil {
		return nil
	}
	t := r.requiredTime(collection, doc, field)
	return &t
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func optionalText(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func count(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
