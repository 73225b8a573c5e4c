package service

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gitlab.com/dirk.krummacker/relations-service/internal/crm"
	"gitlab.com/dirk.krummacker/relations-service/internal/docstore"
	"gitlab.com/dirk.krummacker/relations-service/internal/identity"
)

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// Options holds everything the REST API needs.
type Options struct {
	Repository *crm.Repository
	Store      docstore.Store
	Verifier   *identity.Verifier
	Logger     zerolog.Logger

	// GinLogging turns on the logging of every HTTP request.
	GinLogging bool
}

// handler carries the dependencies of the endpoints.
type handler struct {
	repo  *crm.Repository
	store docstore.Store
	log   zerolog.Logger
}

// SetupHttpRouter initializes the REST API router and registers all endpoints. Everything
// except the health check requires a bearer token.
func SetupHttpRouter(opts Options) *gin.Engine {
	h := &handler{repo: opts.Repository, store: opts.Store, log: opts.Logger}
	router := gin.New()
	if opts.GinLogging {
		router.Use(gin.LoggerWithWriter(opts.Logger))
	} else {
		opts.Logger.Info().Msg("Turning off HTTP request logging.")
	}
	router.Use(gin.Recovery())

	router.GET("/healthz", h.health)

	authorized := router.Group("/", identity.RequireIdentity(opts.Verifier, opts.Logger))
	authorized.GET("/contacts", h.findContacts)
	authorized.POST("/contacts", h.createContact)
	authorized.GET("/contacts/:id", h.findContactByID)
	authorized.PUT("/contacts/:id", h.updateContactByID)
	authorized.DELETE("/contacts/:id", h.deleteContactByID)
	authorized.GET("/contacts/:id/interactions", h.findContactInteractions)
	authorized.POST("/contacts/:id/recount", h.recountContactInteractions)
	authorized.GET("/interactions", h.findInteractions)
	authorized.POST("/interactions", h.createInteraction)
	authorized.GET("/interactions/:id", h.findInteractionByID)
	authorized.PUT("/interactions/:id", h.updateInteractionByID)
	authorized.DELETE("/interactions/:id", h.deleteInteractionByID)
	return router
}

// health responds with OK as long as the document store can be reached.
//
// Example REST API call:
//
//	> curl http://localhost:8080/healthz
func (h *handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// owner returns the identity the route guard attached to the request.
func owner(c *gin.Context) (identity.Identity, bool) {
	id, ok := identity.FromGin(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
	}
	return id, ok
}

// respondError translates an error of the data access layer into an HTTP response.
// subject names the document in not found messages, e.g. "contact".
func (h *handler) respondError(c *gin.Context, err error, subject string) {
	var validation *crm.ValidationError
	if errors.As(err, &validation) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": validation.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch docstore.CodeOf(err) {
	case docstore.CodeNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": subject + " not found"})
		return
	case docstore.CodePermissionDenied:
		status = http.StatusForbidden
	case docstore.CodeUnavailable, docstore.CodeCancelled:
		status = http.StatusServiceUnavailable
	}
	h.log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

// confirmed checks that a destructive request carries confirm=true.
func confirmed(c *gin.Context) bool {
	if ok, _ := strconv.ParseBool(c.Query("confirm")); !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "confirmation required"})
		return false
	}
	return true
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	limit = maxInt
	if s := c.Query("limit"); s != "" {
		var errConv error
		limit, errConv = strconv.Atoi(s)
		if errConv != nil || limit < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
	}
	if s := c.Query("offset"); s != "" {
		var errConv error
		offset, errConv = strconv.Atoi(s)
		if errConv != nil || offset < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// page returns the part of the sorted items selected by limit and offset.
func page[T any](items []T, limit int, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}
