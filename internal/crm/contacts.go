package crm

import (
	"context"
	"sort"
	"strings"

	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	"gitlab.com/dirk.krummacker/relations-service/internal/model"
)

// AddContact stores a new contact owned by owner and returns its identifier. Text fields
// are trimmed, empty optional fields are stored as null and the interaction count starts
// at zero.
func (r *Repository) AddContact(ctx context.Context, owner identity.Identity, in model.NewContact) (string, error) {
	if err := checkOwner(owner); err != nil {
		return "", err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", &ValidationError{Field: fieldName, Message: "must not be empty"}
	}
	now := r.nowUTC()
	id, err := r.store.Add(ctx, docstore.Contacts, docstore.Fields{
		fieldUserID:       owner.UserID,
		fieldName:         name,
		fieldEmail:        optional(in.Email),
		fieldPhone:        optional(in.Phone),
		fieldBirthday:     optionalDate(in.Birthday),
		fieldNotes:        optional(in.Notes),
		fieldInteractions: 0,
		fieldCreatedAt:    now,
		fieldUpdatedAt:    now,
	})
	if err != nil {
		return "", wrap("adding contact", err)
	}
	r.log.Debug().Str("contact", id).Str("user", owner.UserID).Msg("contact added")
	return id, nil
}

// GetContact returns the contact with the given identifier. found is false if the
// contact does not exist or belongs to another user; this is not an error.
func (r *Repository) GetContact(ctx context.Context, owner identity.Identity, id string) (contact model.Contact, found bool, err error) {
	if err := checkOwner(owner); err != nil {
		return model.Contact{}, false, err
	}
	doc, found, err := r.store.Get(ctx, docstore.Contacts, id)
	if err != nil {
		return model.Contact{}, false, wrap("getting contact", err)
	}
	if !found {
		return model.Contact{}, false, nil
	}
	contact = r.decodeContact(doc)
	if contact.UserId != owner.UserID {
		return model.Contact{}, false, nil
	}
	return contact, true, nil
}

// GetContacts returns all contacts of owner ordered by name, ignoring case.
func (r *Repository) GetContacts(ctx context.Context, owner identity.Identity) ([]model.Contact, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, docstore.Contacts, docstore.Query{
		Where:   []docstore.Filter{{Field: fieldUserID, Value: owner.UserID}},
		OrderBy: fieldName,
	})
	if err != nil {
		return nil, wrap("getting contacts", err)
	}
	contacts := make([]model.Contact, 0, len(docs))
	for _, doc := range docs {
		c := r.decodeContact(doc)
		if c.UserId == owner.UserID {
			contacts = append(contacts, c)
		}
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
	})
	return contacts, nil
}

// UpdateContact writes the fields set in the patch and refreshes the update time.
func (r *Repository) UpdateContact(ctx context.Context, owner identity.Identity, id string, patch model.ContactPatch) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return &ValidationError{Message: "no values to be updated"}
	}
	fields := docstore.Fields{fieldUpdatedAt: r.nowUTC()}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return &ValidationError{Field: fieldName, Message: "must not be empty"}
		}
		fields[fieldName] = name
	}
	if patch.Email != nil {
		fields[fieldEmail] = optional(*patch.Email)
	}
	if patch.Phone != nil {
		fields[fieldPhone] = optional(*patch.Phone)
	}
	if patch.Notes != nil {
		fields[fieldNotes] = optional(*patch.Notes)
	}
	if patch.ClearBirthday {
		fields[fieldBirthday] = nil
	} else if patch.Birthday != nil {
		fields[fieldBirthday] = optionalDate(patch.Birthday)
	}

	if _, found, err := r.GetContact(ctx, owner, id); err != nil {
		return err
	} else if !found {
		return notFound("updating contact", docstore.Contacts, id)
	}
	if err := r.store.Update(ctx, docstore.Contacts, id, fields); err != nil {
		return wrap("updating contact", err)
	}
	return nil
}

// DeleteContact deletes the contact. Interactions referencing it are kept and from then
// on point to a contact that no longer exists.
func (r *Repository) DeleteContact(ctx context.Context, owner identity.Identity, id string) error {
	if _, found, err := r.GetContact(ctx, owner, id); err != nil {
		return err
	} else if !found {
		return notFound("deleting contact", docstore.Contacts, id)
	}
	if err := r.store.Delete(ctx, docstore.Contacts, id); err != nil {
		return wrap("deleting contact", err)
	}
	r.log.Debug().Str("contact", id).Str("user", owner.UserID).Msg("contact deleted")
	return nil
}

// RecountInteractions counts the interactions of owner that reference the contact and
// overwrites the contact's interaction count with the result. The counter is normally
// kept up to date incrementally; this repairs it after it drifted. Concurrent writers can
// make the written count stale.
func (r *Repository) RecountInteractions(ctx context.Context, owner identity.Identity, contactID string) (int, error) {
	if _, found, err := r.GetContact(ctx, owner, contactID); err != nil {
		return 0, err
	} else if !found {
		return 0, notFound("updating contact interaction count", docstore.Contacts, contactID)
	}
	docs, err := r.store.Query(ctx, docstore.Interactions, docstore.Query{
		Where: []docstore.Filter{
			{Field: fieldUserID, Value: owner.UserID},
			{Field: fieldContactID, Value: contactID},
		},
	})
	if err != nil {
		return 0, wrap("updating contact interaction count", err)
	}
	n := len(docs)
	if err := r.store.Update(ctx, docstore.Contacts, contactID, docstore.Fields{fieldInteractions: n}); err != nil {
		return 0, wrap("updating contact interaction count", err)
	}
	return n, nil
}

// adjustInteractionCount atomically adds delta to the interaction count of the contact.
// Contacts that do not exist or belong to another user are skipped: an interaction may
// outlive its contact.
func (r *Repository) adjustInteractionCount(ctx context.Context, owner identity.Identity, contactID string, delta int64) error {
	if contactID == "" {
		return nil
	}
	_, found, err := r.GetContact(ctx, owner, contactID)
	if err != nil {
		return err
	}
	if found {
		err = r.store.Increment(ctx, docstore.Contacts, contactID, fieldInteractions, delta)
	}
	if !found || docstore.IsNotFound(err) {
		r.log.Debug().Str("contact", contactID).Msg("interaction references a contact that no longer exists")
		return nil
	}
	return wrap("updating contact interaction count", err)
}
