package crm

import (
	"context"
	"sort"
	"strings"

	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	"gitlab.com/dirk.krummacker/relations-service/internal/model"
	"gitlab.com/dirk.krummacker/relations-service/internal/notes"
)

func validateInteraction(owner identity.Identity, in model.NewInteraction) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: fieldTitle, Message: "must not be empty"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: fieldDate, Message: "must be set"}
	}
	return nil
}

// richText returns nil for notes without visible text.
func richText(markup string) any {
	if notes.IsBlank(markup) {
		return nil
	}
	return strings.TrimSpace(markup)
}

// AddInteraction stores a new interaction and returns its identifier. The contact is
// optional. If it is given and no contact name was supplied, the name is copied from the
// contact. A contact name without a contact is kept as free text. The interaction count
// of the contact goes up by one; if that fails, the identifier of the stored interaction
// is returned together with the error.
func (r *Repository) AddInteraction(ctx context.Context, owner identity.Identity, in model.NewInteraction) (string, error) {
	if err := validateInteraction(owner, in); err != nil {
		return "", err
	}
	contactID := strings.TrimSpace(in.ContactId)
	contactName := strings.TrimSpace(in.ContactName)
	if contactID != "" && contactName == "" {
		contact, found, err := r.GetContact(ctx, owner, contactID)
		if err != nil {
			return "", wrap("adding interaction", err)
		}
		if found {
			contactName = contact.Name
		}
	}

	now := r.nowUTC()
	id, err := r.store.Add(ctx, docstore.Interactions, docstore.Fields{
		fieldUserID:      owner.UserID,
		fieldContactID:   optional(contactID),
		fieldContactName: optional(contactName),
		fieldTitle:       strings.TrimSpace(in.Title),
		fieldNotes:       richText(in.Notes),
		fieldDate:        in.Date.UTC(),
		fieldCreatedAt:   now,
		fieldUpdatedAt:   now,
	})
	if err != nil {
		return "", wrap("adding interaction", err)
	}
	r.log.Debug().Str("interaction", id).Str("contact", contactID).Msg("interaction added")
	return id, r.adjustInteractionCount(ctx, owner, contactID, 1)
}

// AddInteractionWithNewContact first creates a contact named after the free-text contact
// name and then adds the interaction for it. Without a contact name this fails; with a
// contact identifier it behaves like AddInteraction. If the interaction cannot be stored,
// the new contact is removed again.
func (r *Repository) AddInteractionWithNewContact(ctx context.Context, owner identity.Identity, in model.NewInteraction) (interactionID string, contactID string, err error) {
	if err := validateInteraction(owner, in); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(in.ContactId) != "" {
		interactionID, err = r.AddInteraction(ctx, owner, in)
		return interactionID, strings.TrimSpace(in.ContactId), err
	}
	name := strings.TrimSpace(in.ContactName)
	if name == "" {
		return "", "", &ValidationError{Field: fieldContactName, Message: "must not be empty"}
	}
	contactID, err = r.AddContact(ctx, owner, model.NewContact{Name: name})
	if err != nil {
		return "", "", err
	}
	in.ContactId = contactID
	interactionID, err = r.AddInteraction(ctx, owner, in)
	if err != nil && interactionID == "" {
		if errDelete := r.store.Delete(ctx, docstore.Contacts, contactID); errDelete != nil {
			r.log.Warn().Err(errDelete).Str("contact", contactID).Msg("contact left without interaction")
		}
		return "", "", err
	}
	return interactionID, contactID, err
}

// GetInteraction returns the interaction with the given identifier. found is false if it
// does not exist or belongs to another user.
func (r *Repository) GetInteraction(ctx context.Context, owner identity.Identity, id string) (interaction model.Interaction, found bool, err error) {
	if err := checkOwner(owner); err != nil {
		return model.Interaction{}, false, err
	}
	doc, found, err := r.store.Get(ctx, docstore.Interactions, id)
	if err != nil {
		return model.Interaction{}, false, wrap("getting interaction", err)
	}
	if !found {
		return model.Interaction{}, false, nil
	}
	interaction = r.decodeInteraction(doc)
	if interaction.UserId != owner.UserID {
		return model.Interaction{}, false, nil
	}
	return interaction, true, nil
}

// GetInteractions returns all interactions of owner, most recent first.
func (r *Repository) GetInteractions(ctx context.Context, owner identity.Identity) ([]model.Interaction, error) {
	return r.queryInteractions(ctx, owner, "getting interactions", nil)
}

// GetContactInteractions returns the interactions of owner that reference the contact,
// most recent first. The contact itself does not need to exist any more.
func (r *Repository) GetContactInteractions(ctx context.Context, owner identity.Identity, contactID string) ([]model.Interaction, error) {
	return r.queryInteractions(ctx, owner, "getting contact interactions",
		[]docstore.Filter{{Field: fieldContactID, Value: contactID}})
}

func (r *Repository) queryInteractions(ctx context.Context, owner identity.Identity, op string, where []docstore.Filter) ([]model.Interaction, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	filters := append([]docstore.Filter{{Field: fieldUserID, Value: owner.UserID}}, where...)
	docs, err := r.store.Query(ctx, docstore.Interactions, docstore.Query{Where: filters})
	if err != nil {
		return nil, wrap(op, err)
	}
	interactions := make([]model.Interaction, 0, len(docs))
	for _, doc := range docs {
		in := r.decodeInteraction(doc)
		if in.UserId == owner.UserID {
			interactions = append(interactions, in)
		}
	}
	// The date field has shapes that do not order correctly in the store.
	sort.SliceStable(interactions, func(i, j int) bool {
		if !interactions[i].Date.Equal(interactions[j].Date) {
			return interactions[i].Date.After(interactions[j].Date)
		}
		return interactions[i].CreatedAt.After(interactions[j].CreatedAt)
	})
	return interactions, nil
}

// InteractionContact resolves the contact referenced by the interaction. found is false
// if the interaction has no contact or the contact no longer exists.
func (r *Repository) InteractionContact(ctx context.Context, owner identity.Identity, in model.Interaction) (model.Contact, bool, error) {
	if in.ContactId == nil || *in.ContactId == "" {
		return model.Contact{}, false, nil
	}
	return r.GetContact(ctx, owner, *in.ContactId)
}

// UpdateInteraction writes the fields set in the patch and refreshes the update time.
// If the patch names a contact, the contact name is copied from that contact's current
// record, or removed if that contact does not exist and the patch has no name either.
// Moving the interaction to another contact moves one count from the old to the
// new contact.
func (r *Repository) UpdateInteraction(ctx context.Context, owner identity.Identity, id string, patch model.InteractionPatch) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return &ValidationError{Message: "no values to be updated"}
	}
	fields := docstore.Fields{fieldUpdatedAt: r.nowUTC()}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return &ValidationError{Field: fieldTitle, Message: "must not be empty"}
		}
		fields[fieldTitle] = title
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return &ValidationError{Field: fieldDate, Message: "must be set"}
		}
		fields[fieldDate] = patch.Date.UTC()
	}
	if patch.Notes != nil {
		fields[fieldNotes] = richText(*patch.Notes)
	}
	if patch.ContactName != nil {
		fields[fieldContactName] = optional(*patch.ContactName)
	}

	current, found, err := r.GetInteraction(ctx, owner, id)
	if err != nil {
		return err
	}
	if !found {
		return notFound("updating interaction", docstore.Interactions, id)
	}

	oldContactID := ""
	if current.ContactId != nil {
		oldContactID = *current.ContactId
	}
	newContactID := oldContactID
	if patch.ContactId != nil {
		newContactID = strings.TrimSpace(*patch.ContactId)
		fields[fieldContactID] = optional(newContactID)
		if newContactID != "" {
			contact, found, err := r.GetContact(ctx, owner, newContactID)
			if err != nil {
				return wrap("updating interaction", err)
			}
			if found {
				fields[fieldContactName] = contact.Name
			} else if patch.ContactName == nil {
				// the old name belongs to another person
				fields[fieldContactName] = nil
			}
		}
	}

	if err := r.store.Update(ctx, docstore.Interactions, id, fields); err != nil {
		return wrap("updating interaction", err)
	}
	if newContactID == oldContactID {
		return nil
	}
	if err := r.adjustInteractionCount(ctx, owner, oldContactID, -1); err != nil {
		return err
	}
	return r.adjustInteractionCount(ctx, owner, newContactID, 1)
}

// DeleteInteraction deletes the interaction and lowers the interaction count of the
// contact it referenced.
func (r *Repository) DeleteInteraction(ctx context.Context, owner identity.Identity, id string) error {
	current, found, err := r.GetInteraction(ctx, owner, id)
	if err != nil {
		return err
	}
	if !found {
		return notFound("deleting interaction", docstore.Interactions, id)
	}
	if err := r.store.Delete(ctx, docstore.Interactions, id); err != nil {
		return wrap("deleting interaction", err)
	}
	r.log.Debug().Str("interaction", id).Msg("interaction deleted")
	if current.ContactId == nil {
		return nil
	}
	return r.adjustInteractionCount(ctx, owner, *current.ContactId, -1)
}
