package emailsend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, req *SendRequest) (*ProviderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProviderResponse), args.Error(1)
}

func newGatewayRouter(t *testing.T, sender Sender, apiKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHTTPHandler(sender, apiKey, logger.NewTestLogger(t)).Register(r)
	return r
}

func doRequest(r http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, SendEmailPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestHTTPHandler_Preflight(t *testing.T) {
	r := newGatewayRouter(t, new(MockSender), "")

	rec := doRequest(r, http.MethodOptions, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
}

func TestHTTPHandler_Success(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, &SendRequest{To: "a@example.com", Subject: "s", Text: "t"}).
		Return(&ProviderResponse{ID: "msg-1", Provider: "ses", QueueID: "q1"}, nil)
	r := newGatewayRouter(t, sender, "")

	rec := doRequest(r, http.MethodPost, `{"to":"a@example.com","subject":"s","text":"t"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
	var resp ProviderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ProviderResponse{ID: "msg-1", Provider: "ses", QueueID: "q1"}, resp)
}

func TestHTTPHandler_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		sendErr   error
		wantError string
		wantCode  string
	}{
		{
			name:      "malformed json",
			body:      `{"to":`,
			wantError: "Invalid request body",
			wantCode:  "VALIDATION_FAILED",
		},
		{
			name:      "wrong field type",
			body:      `{"to":"a@example.com","subject":"s","text":42}`,
			wantError: msgMissingFields,
			wantCode:  "VALIDATION_FAILED",
		},
		{
			name:      "quota exhausted",
			body:      `{"to":"a@example.com","subject":"s","text":"t"}`,
			sendErr:   errors.NewQuotaExceededError(2000),
			wantError: "Daily email limit reached (2000 emails/day)",
			wantCode:  "QUOTA_EXCEEDED",
		},
		{
			name:      "invalid address",
			body:      `{"to":"nobody","subject":"s","text":"t"}`,
			sendErr:   errors.NewValidationError(msgInvalidEmail, ""),
			wantError: msgInvalidEmail,
			wantCode:  "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(MockSender)
			if tt.sendErr != nil {
				sender.On("Send", mock.Anything, mock.Anything).Return(nil, tt.sendErr)
			}
			r := newGatewayRouter(t, sender, "")

			rec := doRequest(r, http.MethodPost, tt.body, nil)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assertCORS(t, rec)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHTTPHandler_APIKey(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(&ProviderResponse{ID: "m", Provider: "ses"}, nil)
	r := newGatewayRouter(t, sender, "secret")
	body := `{"to":"a@example.com","subject":"s","text":"t"}`

	rec := doRequest(r, http.MethodPost, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assertCORS(t, rec)

	rec = doRequest(r, http.MethodPost, body, map[string]string{"apikey": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodPost, body, map[string]string{"apikey": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPost, body, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
