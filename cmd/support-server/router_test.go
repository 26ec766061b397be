package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"birdwatch-support/internal/common/logger"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
	submit "birdwatch-support/internal/workers/support/submit-issue-report"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubSender struct{}

func (stubSender) Send(ctx context.Context, req *emailsend.SendRequest) (*emailsend.ProviderResponse, error) {
	return &emailsend.ProviderResponse{ID: "msg-1"}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(routerOptions{ServiceName: "test", Logger: logger.NewNoOpLogger()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouter_Ready(t *testing.T) {
	tests := []struct {
		name       string
		ready      func(context.Context) error
		wantStatus int
	}{
		{name: "stores reachable", ready: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		{name: "store down", ready: func(context.Context) error { return errors.New("redis: connection refused") }, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(routerOptions{ServiceName: "test", Ready: tt.ready, Logger: logger.NewNoOpLogger()})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newRouter(routerOptions{ServiceName: "test", Logger: logger.NewNoOpLogger()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GatewayKeepsFixedCORSHeaders(t *testing.T) {
	router := newRouter(routerOptions{
		ServiceName:    "test",
		AllowedOrigins: []string{"https://birdwatch.app"},
		Gateway:        emailsend.NewHTTPHandler(stubSender{}, "", logger.NewNoOpLogger()),
		Logger:         logger.NewNoOpLogger(),
	})

	body := `{"to":"observer@example.com","subject":"Hello","text":"Spotted a heron"}`
	req := httptest.NewRequest(http.MethodPost, emailsend.SendEmailPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), "msg-1")
}

func TestRouter_IssuePreflight(t *testing.T) {
	router := newRouter(routerOptions{
		ServiceName:    "test",
		AllowedOrigins: []string{"https://birdwatch.app"},
		Issues:         submit.NewHTTPHandler(nil, nil, nil, logger.NewNoOpLogger()),
		Gateway:        emailsend.NewHTTPHandler(stubSender{}, "", logger.NewNoOpLogger()),
		Logger:         logger.NewNoOpLogger(),
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/issues", nil)
	req.Header.Set("Origin", "https://birdwatch.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://birdwatch.app", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	// The gateway still answers any origin.
	body := `{"to":"observer@example.com","subject":"Hello","text":"Spotted a heron"}`
	req = httptest.NewRequest(http.MethodPost, emailsend.SendEmailPath, strings.NewReader(body))
	req.Header.Set("Origin", "https://elsewhere.test")
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
