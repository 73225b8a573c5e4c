package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	"gitlab.com/dirk.krummacker/relations-service/internal/model"
	api "gitlab.com/dirk.krummacker/relations-service/pkg/model"
)

func toContact(c model.Contact) api.Contact {
	return api.Contact{
		Id:           c.Id,
		UserId:       c.UserId,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Birthday:     c.Birthday,
		Notes:        c.Notes,
		Interactions: c.Interactions,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// findContacts responds with the list of the caller's contacts as JSON, ordered by name.
//
// The URL parameter 'limit' specifies how many contacts are returned. The URL parameter 'offset'
// specifies how many items from the sorted list of results are skipped in the beginning. Together
// with the 'limit' parameter, one can implement search result paging.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts" --header "Authorization: Bearer $TOKEN"
//	> curl "http://localhost:8080/contacts?limit=20&offset=60" --header "Authorization: Bearer $TOKEN"
func (h *handler) findContacts(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	limit, offset, successLimitAndOffset := parseLimitAndOffset(c)
	if !successLimitAndOffset {
		return
	}
	contacts, err := h.repo.GetContacts(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err, "contact")
		return
	}
	result := make([]api.Contact, 0, len(contacts))
	for _, contact := range page(contacts, limit, offset) {
		result = append(result, toContact(contact))
	}
	c.IndentedJSON(http.StatusOK, result)
}

// createContact stores the contact specified in the request's JSON. It responds with the full
// contact data including the newly assigned id. The name is required, all other fields are
// optional.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"name": "Erika Mustermann", "phone": "+49 0815 4711", "birthday": "1969-03-02"}'
func (h *handler) createContact(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	var req api.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	id, err := h.repo.AddContact(c.Request.Context(), user, model.NewContact{
		Name:     value(req.Name),
		Email:    req.Email.String,
		Phone:    req.Phone.String,
		Birthday: req.Birthday.Ptr(),
		Notes:    req.Notes.String,
	})
	if err != nil {
		h.respondError(c, err, "contact")
		return
	}
	h.respondContact(c, user, id, http.StatusCreated)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42 --header "Authorization: Bearer $TOKEN"
func (h *handler) findContactByID(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	h.respondContact(c, user, c.Param("id"), http.StatusOK)
}

// updateContactByID updates the contact whose ID value matches the id parameter of the request
// URL, updates the values specified in the JSON (and only those), and finally responds with the
// new version of the contact. An empty string or null removes an optional value.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"phone": "81970"}'
//	> curl http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"birthday": null}'
//	> curl http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"email": null}'
func (h *handler) updateContactByID(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	var req api.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	patch := model.ContactPatch{
		Name:  req.Name,
		Email: req.Email.Patch(),
		Phone: req.Phone.Patch(),
		Notes: req.Notes.Patch(),
	}
	if req.Birthday.Set {
		patch.Birthday = req.Birthday.Ptr()
		patch.ClearBirthday = !req.Birthday.Valid
	}

	// It only makes sense to continue if we have at least one value to update.
	if patch.IsEmpty() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no values to be updated"})
		return
	}

	id := c.Param("id")
	if err := h.repo.UpdateContact(c.Request.Context(), user, id, patch); err != nil {
		h.respondError(c, err, "contact")
		return
	}

	// In the HTTP response, return the full contact after the update.
	h.respondContact(c, user, id, http.StatusOK)
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request
// URL. The request must be confirmed with the URL parameter 'confirm=true'. Interactions with
// the contact are kept.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42?confirm=true" --request "DELETE" --header "Authorization: Bearer $TOKEN"
func (h *handler) deleteContactByID(c *gin.Context) {
	user, ok := owner(c)
	if !ok || !confirmed(c) {
		return
	}
	if err := h.repo.DeleteContact(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondError(c, err, "contact")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

// findContactInteractions responds with the interactions with one contact, most recent first.
// The contact does not need to exist any more. Supports 'limit' and 'offset' like the list of
// all interactions.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42/interactions --header "Authorization: Bearer $TOKEN"
func (h *handler) findContactInteractions(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	limit, offset, successLimitAndOffset := parseLimitAndOffset(c)
	if !successLimitAndOffset {
		return
	}
	interactions, err := h.repo.GetContactInteractions(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "contact")
		return
	}
	c.IndentedJSON(http.StatusOK, toSummaries(page(interactions, limit, offset)))
}

// recountContactInteractions counts the interactions with the contact again and stores the
// result as its interaction count.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42/recount --request "POST" --header "Authorization: Bearer $TOKEN"
func (h *handler) recountContactInteractions(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	id := c.Param("id")
	n, err := h.repo.RecountInteractions(c.Request.Context(), user, id)
	if err != nil {
		h.respondError(c, err, "contact")
		return
	}
	c.IndentedJSON(http.StatusOK, api.Recount{Id: id, Interactions: n})
}

func (h *handler) respondContact(c *gin.Context, user identity.Identity, id string, status int) {
	contact, found, err := h.repo.GetContact(c.Request.Context(), user, id)
	if err != nil {
		h.respondError(c, err, "contact")
		return
	}
	if !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	c.IndentedJSON(status, toContact(contact))
}
