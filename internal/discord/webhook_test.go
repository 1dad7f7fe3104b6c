package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsJSONPayload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	payload := &Payload{Content: "New [post](https://example.com) by [u/gopher](https://example.com/u)!"}
	err := NewWebhook().Send(context.Background(), server.URL, payload)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, payload.Content, decoded["content"])
	assert.NotContains(t, decoded, "embeds")
}

func TestSend_NonSuccessStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := NewWebhook().Send(context.Background(), server.URL, &Payload{Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSend_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := NewWebhook().Send(context.Background(), server.URL, &Payload{Content: "hi"})
	assert.Error(t, err)
}
