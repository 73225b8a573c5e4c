package model

import "time"

// Contact is the data structure for a person that we know. Email, phone, birthday and
// notes are optional and nil when not set.
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

// NewContact holds the values of a contact to be created.
type NewContact struct {
	Name     string
	Email    string
	Phone    string
	Birthday *time.Time
	Notes    string
}

// ContactPatch holds the values of a partial contact update. Only non-nil fields are
// written. An empty string removes an optional value, ClearBirthday removes the birthday.
type ContactPatch struct {
	Name          *string
	Email         *string
	Phone         *string
	Birthday      *time.Time
	ClearBirthday bool
	Notes         *string
}

// IsEmpty reports whether the patch would not change anything.
func (p ContactPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Birthday == nil &&
		!p.ClearBirthday && p.Notes == nil
}

// Interaction is a dated encounter with a contact. ContactId is a soft reference that may
// point to a contact which no longer exists. ContactName is a copy of the contact's name
// taken when the interaction was written, or free text when there is no contact.
type Interaction struct {
	Id          string    `json:"id"`
	UserId      string    `json:"userId"`
	ContactId   *string   `json:"contactId"`
	ContactName *string   `json:"contactName"`
	Title       string    `json:"title"`
	Notes       *string   `json:"notes"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewInteraction holds the values of an interaction to be created. Notes are HTML.
type NewInteraction struct {
	ContactId   string
	ContactName string
	Title       string
	Notes       string
	Date        time.Time
}

// InteractionPatch holds the values of a partial interaction update. Only non-nil fields
// are written. An empty ContactId detaches the interaction from its contact.
type InteractionPatch struct {
	ContactId   *string
	ContactName *string
	Title       *string
	Notes       *string
	Date        *time.Time
}

// IsEmpty reports whether the patch would not change anything.
func (p InteractionPatch) IsEmpty() bool {
	return p.ContactId == nil && p.ContactName == nil && p.Title == nil && p.Notes == nil && p.Date == nil
}
