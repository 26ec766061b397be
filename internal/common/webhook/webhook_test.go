package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpclient "birdwatch-support/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Post(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(httpclient.NewClientWith(srv.Client()), map[string]string{"support": srv.URL}, "Issue Reporter")
	require.NoError(t, c.Post(context.Background(), "support", "hello"))

	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "Issue Reporter", got.Username)
}

func TestClient_PostErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(httpclient.NewClientWith(srv.Client()), map[string]string{"support": srv.URL}, "")

	err := c.Post(context.Background(), "support", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	err = c.Post(context.Background(), "alerts", "hello")
	var unknown *ErrUnknownChannel
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "alerts", unknown.Channel)
}
