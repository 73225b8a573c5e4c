package service

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
	"gitlab.com/dirk.krummacker/relations-service/internal/model"
	"gitlab.com/dirk.krummacker/relations-service/internal/notes"
	api "gitlab.com/dirk.krummacker/relations-service/pkg/model"
)

func toInteraction(in model.Interaction) api.Interaction {
	return api.Interaction{
		Id:          in.Id,
		UserId:      in.UserId,
		ContactId:   in.ContactId,
		ContactName: in.ContactName,
		Title:       in.Title,
		Notes:       in.Notes,
		Date:        in.Date,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
}

// toSummaries converts interactions for list views, which show a short plain text preview
// of the notes.
func toSummaries(interactions []model.Interaction) []api.Interaction {
	result := make([]api.Interaction, 0, len(interactions))
	for _, in := range interactions {
		summary := toInteraction(in)
		if in.Notes != nil {
			summary.NotesPreview = notes.Preview(*in.Notes, notes.DefaultPreviewLength)
		}
		result = append(result, summary)
	}
	return result
}

// findInteractions responds with the list of the caller's interactions as JSON, most recent
// first. Each interaction carries a plain text preview of its notes.
//
// The URL parameters 'limit' and 'offset' page through the results like for contacts.
//
// REST API calls:
//
//	> curl "http://localhost:8080/interactions" --header "Authorization: Bearer $TOKEN"
//	> curl "http://localhost:8080/interactions?limit=10&offset=10" --header "Authorization: Bearer $TOKEN"
func (h *handler) findInteractions(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	limit, offset, successLimitAndOffset := parseLimitAndOffset(c)
	if !successLimitAndOffset {
		return
	}
	interactions, err := h.repo.GetInteractions(c.Request.Context(), user)
	if err != nil {
		h.respondError(c, err, "interaction")
		return
	}
	c.IndentedJSON(http.StatusOK, toSummaries(page(interactions, limit, offset)))
}

// createInteraction stores the interaction specified in the request's JSON and responds with
// it. Title and date are required. If a contactId is given without contactName, the name is
// taken from the contact. With the URL parameter 'createContact=true' and no contactId, a new
// contact named after contactName is created first.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/interactions --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"title": "Coffee", "date": "2024-01-01", "contactId": "0b8e6c1a-4f0e-4a93-9d55-3f1a2a6c1e42"}'
//	> curl "http://localhost:8080/interactions?createContact=true" --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"title": "Lunch", "date": "2024-01-02", "contactName": "Hans Wurst", "notes": "<p>Talked about <b>cars</b></p>"}'
func (h *handler) createInteraction(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	var req api.InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	in := model.NewInteraction{
		ContactId:   value(req.ContactId),
		ContactName: value(req.ContactName),
		Title:       value(req.Title),
		Notes:       value(req.Notes),
		Date:        req.Date.Time,
	}
	createContact, _ := strconv.ParseBool(c.Query("createContact"))

	var id string
	var err error
	if createContact {
		id, _, err = h.repo.AddInteractionWithNewContact(c.Request.Context(), user, in)
	} else {
		id, err = h.repo.AddInteraction(c.Request.Context(), user, in)
	}
	if err != nil && id == "" {
		h.respondError(c, err, "interaction")
		return
	}
	if err != nil {
		// The interaction exists, only the contact's count could not be updated.
		h.log.Warn().Err(err).Str("interaction", id).Msg("interaction count not updated")
	}
	h.respondInteraction(c, user, id, http.StatusCreated)
}

// findInteractionByID locates the interaction whose ID value matches the id parameter of the
// request URL and responds with it. The field 'contactExists' tells whether the referenced
// contact is still there.
//
// Example REST API call:
//
//	> curl http://localhost:8080/interactions/5d1c7c55-2b8a-4a43-8a4e-1f0f4c8e9b10 --header "Authorization: Bearer $TOKEN"
func (h *handler) findInteractionByID(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	h.respondInteraction(c, user, c.Param("id"), http.StatusOK)
}

// updateInteractionByID updates the values specified in the JSON (and only those) and responds
// with the new version of the interaction. Setting contactId copies the contact's current name
// onto the interaction; an empty contactId detaches it from its contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/interactions/5d1c7c55-2b8a-4a43-8a4e-1f0f4c8e9b10 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"title": "Dinner", "date": "2024-01-03T19:30:00+01:00"}'
func (h *handler) updateInteractionByID(c *gin.Context) {
	user, ok := owner(c)
	if !ok {
		return
	}
	var req api.InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	patch := model.InteractionPatch{
		ContactId:   req.ContactId,
		ContactName: req.ContactName,
		Title:       req.Title,
		Notes:       req.Notes,
	}
	if req.Date.Set {
		// A date cannot be removed; the zero time is rejected by the validation.
		date := req.Date.Time
		patch.Date = &date
	}

	// It only makes sense to continue if we have at least one value to update.
	if patch.IsEmpty() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no values to be updated"})
		return
	}

	id := c.Param("id")
	if err := h.repo.UpdateInteraction(c.Request.Context(), user, id, patch); err != nil {
		h.respondError(c, err, "interaction")
		return
	}
	h.respondInteraction(c, user, id, http.StatusOK)
}

// deleteInteractionByID deletes the interaction and lowers the interaction count of its
// contact. The request must be confirmed with the URL parameter 'confirm=true'.
//
// Example REST API call:
//
//	> curl "http://localhost:8080/interactions/5d1c7c55-2b8a-4a43-8a4e-1f0f4c8e9b10?confirm=true" --request "DELETE" --header "Authorization: Bearer $TOKEN"
func (h *handler) deleteInteractionByID(c *gin.Context) {
	user, ok := owner(c)
	if !ok || !confirmed(c) {
		return
	}
	if err := h.repo.DeleteInteraction(c.Request.Context(), user, c.Param("id")); err != nil {
		h.respondError(c, err, "interaction")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "interaction deleted"})
}

func (h *handler) respondInteraction(c *gin.Context, user identity.Identity, id string, status int) {
	ctx := c.Request.Context()
	in, found, err := h.repo.GetInteraction(ctx, user, id)
	if err != nil {
		h.respondError(c, err, "interaction")
		return
	}
	if !found {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "interaction not found"})
		return
	}
	detail := toInteraction(in)
	if in.ContactId != nil {
		_, exists, err := h.repo.InteractionContact(ctx, user, in)
		if err != nil {
			h.respondError(c, err, "interaction")
			return
		}
		detail.ContactExists = &exists
	}
	c.IndentedJSON(status, detail)
}
