package submitissuereport

import (
	"net/http"
	"strconv"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"

	"github.com/gin-gonic/gin"
)

// HTTPHandler serves the issue API.
type HTTPHandler struct {
	service  *Service
	resolver auth.ActorResolver
	searcher IssueSearcher
	logger   logger.Logger
}

// NewHTTPHandler builds the issue API. searcher may be nil, which disables
// the search route.
func NewHTTPHandler(service *Service, resolver auth.ActorResolver, searcher IssueSearcher, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, resolver: resolver, searcher: searcher, logger: log}
}

func (h *HTTPHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/issues", BearerToken())
	g.OPTIONS("", preflight)
	g.POST("", h.submit)
	if h.searcher != nil {
		g.OPTIONS("/search", preflight)
		g.GET("/search", h.search)
	}
}

// preflight gives CORS middleware on the enclosing group a route to run on.
func preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BearerToken moves the Authorization bearer token onto the request context
// for the actor resolver.
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := auth.ParseBearer(c.GetHeader("Authorization")); token != "" {
			c.Request = c.Request.WithContext(auth.WithBearerToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

func (h *HTTPHandler) submit(c *gin.Context) {
	var sub Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		err := errors.NewValidationError("Invalid request body", err.Error())
		c.JSON(http.StatusBadRequest, FailureOutcome(err))
		return
	}

	outcome, err := h.service.Report(c.Request.Context(), sub)
	if err != nil {
		c.JSON(HTTPStatus(err), outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *HTTPHandler) search(c *gin.Context) {
	if _, err := h.resolver.Resolve(c.Request.Context()); err != nil {
		c.JSON(HTTPStatus(err), gin.H{"error": errors.FromError(err).Message})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	result, err := h.searcher.SearchIssues(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.logger.Error("Issue search failed", map[string]interface{}{"error": err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": errors.FromError(err).Message})
		return
	}
	c.JSON(http.StatusOK, result)
}
