package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:         server.URL,
		ProvisioningKey: "prov-key-xyz",
	})
}

func TestCreateKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/keys", r.URL.Path)
		assert.Equal(t, "Bearer prov-key-xyz", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user-alice", req["name"])
		assert.InDelta(t, 1.0, req["limit"], 1e-9)
		assert.Equal(t, false, req["include_byok_in_limit"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"key": "sk-or-v1-new-secret",
			"data": map[string]interface{}{
				"hash":            "hash-123",
				"name":            "user-alice",
				"limit":           1.0,
				"limit_remaining": 1.0,
			},
		})
	})

	key, err := client.CreateKey(context.Background(), "user-alice", 1.0)
	require.NoError(t, err)
	assert.Equal(t, "sk-or-v1-new-secret", key.Secret)
	assert.Equal(t, "hash-123", key.Data.Hash)
	assert.InDelta(t, 1.0, key.Data.LimitRemaining, 1e-9)
}

func TestGetKeyStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/keys/hash-123", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"hash":            "hash-123",
				"limit":           1.0,
				"limit_remaining": 0.8,
				"usage":           0.2,
				// Fields the gateway does not consume are dropped.
				"usage_weekly": 1.4,
				"label":        "sk-or-v1...456",
			},
		})
	})

	key, err := client.GetKeyStatus(context.Background(), "hash-123")
	require.NoError(t, err)
	assert.Empty(t, key.Secret)
	assert.InDelta(t, 0.8, key.Data.LimitRemaining, 1e-9)
	assert.InDelta(t, 0.2, key.Data.Usage, 1e-9)
}

func TestDeleteKey(t *testing.T) {
	var called bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/keys/hash-123", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
	})

	require.NoError(t, client.DeleteKey(context.Background(), "hash-123"))
	assert.True(t, called)
}

func TestAPIErrorCarriesStatusAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	})

	_, err := client.GetKeyStatus(context.Background(), "hash-123")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
	assert.False(t, IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"key not found"}`))
	})

	_, err := client.GetKeyStatus(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	err = client.DeleteKey(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
