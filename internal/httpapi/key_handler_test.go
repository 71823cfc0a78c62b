package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"key_gateway/internal/auth"
	"key_gateway/internal/engine"
	"key_gateway/internal/utils"
)

type fakeSource struct {
	calls    int
	identity *auth.UserClaims
	cred     *engine.Credential
	err      error
}

func (f *fakeSource) ObtainCredential(_ context.Context, identity *auth.UserClaims) (*engine.Credential, error) {
	f.calls++
	f.identity = identity
	if f.err != nil {
		return nil, f.err
	}
	return f.cred, nil
}

var testSecret = []byte("test-signing-secret")

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("user-123", "alice@example.com", "alice", testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func postKey(handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/key", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestKeyHandlerSuccess(t *testing.T) {
	source := &fakeSource{cred: &engine.Credential{
		Key:              "sk-or-v1-secret",
		RemainingCredits: 4.8,
		TotalCredits:     10.0,
		DailyLimit:       1.0,
	}}
	handler := NewKeyHandler(source, testSecret, nil)

	rr := postKey(handler, bearerToken(t))

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sk-or-v1-secret", data["key"])
	assert.InDelta(t, 4.8, data["remaining_credits"].(float64), 1e-9)

	require.NotNil(t, source.identity)
	assert.Equal(t, "user-123", source.identity.UserID)
	assert.Equal(t, "alice", source.identity.UserName)
}

func TestKeyHandlerMethodNotAllowed(t *testing.T) {
	source := &fakeSource{}
	handler := NewKeyHandler(source, testSecret, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/key", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, 0, source.calls)
}

func TestKeyHandlerAuthRejections(t *testing.T) {
	expired, err := auth.GenerateToken("user-123", "alice@example.com", "alice", testSecret, -time.Hour)
	require.NoError(t, err)
	wrongKey, err := auth.GenerateToken("user-123", "alice@example.com", "alice", []byte("other-secret"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantError  string
	}{
		{"missing header", "", http.StatusForbidden, "Authorization header missing"},
		{"scheme only", "Bearer", http.StatusForbidden, "Token missing from authorization header"},
		{"empty token", "Bearer ", http.StatusForbidden, "Token missing from authorization header"},
		{"non-bearer scheme", "Basic dXNlcjpwYXNz", http.StatusForbidden, "Token missing from authorization header"},
		{"lowercase scheme", "bearer some-token", http.StatusForbidden, "Token missing from authorization header"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "Unauthorized"},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, "Unauthorized"},
		{"wrong signing key", "Bearer " + wrongKey, http.StatusUnauthorized, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{}
			handler := NewKeyHandler(source, testSecret, nil)

			rr := postKey(handler, tt.authHeader)

			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decodeResponse(t, rr)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)

			// Rejected requests never reach the engine.
			assert.Equal(t, 0, source.calls)
		})
	}
}

func TestKeyHandlerMissingSecret(t *testing.T) {
	source := &fakeSource{}
	handler := NewKeyHandler(source, nil, nil)

	rr := postKey(handler, bearerToken(t))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeResponse(t, rr)
	assert.Equal(t, "Internal server error", resp.Error)
	assert.Equal(t, 0, source.calls)
}

func TestKeyHandlerEngineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			"upstream failure",
			&engine.UpstreamError{Err: errors.New("provider down")},
			http.StatusServiceUnavailable,
			"Upstream provider error",
		},
		{
			"invalid key response",
			engine.ErrInvalidKeyResponse,
			http.StatusInternalServerError,
			"Invalid response from provider",
		},
		{
			"storage failure",
			&engine.StorageError{Err: errors.New("connection refused")},
			http.StatusInternalServerError,
			"Failed to process key request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{err: tt.err}
			handler := NewKeyHandler(source, testSecret, nil)

			rr := postKey(handler, bearerToken(t))

			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decodeResponse(t, rr)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}
