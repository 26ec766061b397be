package emailsend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"

	"github.com/gin-gonic/gin"
)

const SendEmailPath = "/functions/v1/send-email"

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
}

// Sender is satisfied by *Service and *Client.
type Sender interface {
	Send(ctx context.Context, req *SendRequest) (*ProviderResponse, error)
}

// CORSHeaders sets the gateway's fixed CORS headers on every response,
// whether or not the request carries an Origin.
func CORSHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range corsHeaders {
			c.Header(k, v)
		}
		c.Next()
	}
}

type HTTPHandler struct {
	sender Sender
	apiKey string
	logger logger.Logger
}

// NewHTTPHandler serves the gateway. An empty apiKey disables the key check.
func NewHTTPHandler(sender Sender, apiKey string, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{sender: sender, apiKey: apiKey, logger: log}
}

func (h *HTTPHandler) Register(r gin.IRouter) {
	r.OPTIONS(SendEmailPath, CORSHeaders(), h.preflight)
	r.POST(SendEmailPath, CORSHeaders(), h.send)
}

func (h *HTTPHandler) preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *HTTPHandler) send(c *gin.Context) {
	if !h.authorized(c.Request) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(c.Request.Body).Decode(&doc); err != nil {
		h.fail(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	req, err := decodeRequest(doc)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.sender.Send(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// fail writes every gateway error as a 500 with the error message and code.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	stdErr := errors.FromError(err)
	h.logger.Error("Error in send-email", map[string]interface{}{
		"error": err,
		"code":  string(stdErr.Code),
	})
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   stdErr.Message,
		Details: stdErr.Details,
		Code:    string(stdErr.Code),
	})
}

func (h *HTTPHandler) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return true
	}
	for _, candidate := range []string{r.Header.Get("apikey"), auth.ParseBearer(r.Header.Get("Authorization"))} {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(h.apiKey)) == 1 {
			return true
		}
	}
	return false
}
