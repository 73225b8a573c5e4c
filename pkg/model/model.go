// Package model contains the JSON documents exchanged with the relations service.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Contact is the data structure for a person that we know, as returned by the service.
// Email, phone, birthday and notes are null when not set.
type Contact struct {
	Id           string     `json:"id"`
	UserId       string     `json:"userId"`
	Name         string     `json:"name"`
	Email        *string    `json:"email"`
	Phone        *string    `json:"phone"`
	Birthday     *time.Time `json:"birthday"`
	Notes        *string    `json:"notes"`
	Interactions int        `json:"interactions"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Interaction is a dated encounter with a contact, as returned by the service. Lists carry
// a plain text preview of the notes, the detail view tells whether the contact still
// exists.
type Interaction struct {
	Id            string    `json:"id"`
	UserId        string    `json:"userId"`
	ContactId     *string   `json:"contactId"`
	ContactName   *string   `json:"contactName"`
	ContactExists *bool     `json:"contactExists,omitempty"`
	Title         string    `json:"title"`
	Notes         *string   `json:"notes"`
	NotesPreview  string    `json:"notesPreview,omitempty"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ContactRequest is the body for creating or updating a contact. In updates, fields that
// are missing stay unchanged and null or empty strings remove a value.
type ContactRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    Text    `json:"email,omitzero"`
	Phone    Text    `json:"phone,omitzero"`
	Birthday Date    `json:"birthday,omitzero"`
	Notes    Text    `json:"notes,omitzero"`
}

// InteractionRequest is the body for creating or updating an interaction. Notes are HTML.
type InteractionRequest struct {
	ContactId   *string `json:"contactId,omitempty"`
	ContactName *string `json:"contactName,omitempty"`
	Title       *string `json:"title,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Date        Date    `json:"date,omitzero"`
}

// Recount is the response of the interaction count repair.
type Recount struct {
	Id           string `json:"id"`
	Interactions int    `json:"interactions"`
}

// Text is an optional string in a request. Like Date, it tells a missing field apart from
// null.
type Text struct {
	String string
	Set    bool
	Valid  bool
}

// NewText returns a valid text.
func NewText(s string) Text {
	return Text{String: s, Set: true, Valid: true}
}

// IsZero reports whether the text was not present.
func (t Text) IsZero() bool {
	return !t.Set
}

// Patch returns nil if the text was not present, an empty string for null and the text
// otherwise.
func (t Text) Patch() *string {
	if !t.Set {
		return nil
	}
	s := ""
	if t.Valid {
		s = t.String
	}
	return &s
}

// UnmarshalJSON accepts null and strings.
func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{Set: true}
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &t.String); err != nil {
		return fmt.Errorf("value must be a string: %w", err)
	}
	t.Valid = true
	return nil
}

// MarshalJSON writes invalid texts as null.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String)
}

// Date is a calendar date or a point in time in a request. Set reports whether the field was
// present at all and Valid whether it carried a value rather than null or "".
type Date struct {
	Time  time.Time
	Set   bool
	Valid bool
}

// NewDate returns a valid date.
func NewDate(t time.Time) Date {
	return Date{Time: t, Set: true, Valid: true}
}

// IsZero reports whether the date was not present.
func (d Date) IsZero() bool {
	return !d.Set
}

// Ptr returns the time, or nil if the date is not valid.
func (d Date) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// UnmarshalJSON accepts null, an empty string, YYYY-MM-DD and RFC 3339.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{Set: true}
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time, d.Valid = t, true
	return nil
}

// MarshalJSON writes dates at midnight UTC as YYYY-MM-DD, other times as RFC 3339 and
// invalid dates as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	t := d.Time.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return json.Marshal(t.Format(time.DateOnly))
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// ParseDate parses YYYY-MM-DD as midnight UTC, or an RFC 3339 time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}
