package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.HandleHealth(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHandleReady(t *testing.T) {
	h := NewHealthHandler("test")

	probe := func() (int, *HealthResponse) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		h.HandleReady(rr, req)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		return rr.Code, &resp
	}

	// Not ready until marked.
	code, resp := probe()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)

	h.SetReady(true)
	code, resp = probe()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Checks["startup"])

	// A failing dependency check flips readiness back.
	h.AddCheck("store", func() error { return errors.New("closed") })
	code, resp = probe()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "failed", resp.Checks["store"])

	h.AddCheck("store", func() error { return nil })
	code, resp = probe()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Checks["store"])
}
