package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithError(rr, http.StatusForbidden, "Authorization header missing")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Authorization header missing", resp.Error)
	assert.Nil(t, resp.Data)
}

func TestRespondWithData(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithData(rr, http.StatusOK, map[string]float64{"remaining_credits": 4.8})

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 4.8, data["remaining_credits"].(float64), 1e-9)
}

func TestRespondWithDataOmitsErrorField(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithData(rr, http.StatusOK, "payload")

	assert.NotContains(t, rr.Body.String(), `"error"`)
}

func TestRespondWithErrorOmitsDataField(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondWithError(rr, http.StatusInternalServerError, "An unexpected error occurred")

	assert.NotContains(t, rr.Body.String(), `"data"`)
}
