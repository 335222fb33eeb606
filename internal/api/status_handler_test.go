package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{Host: "localhost", Port: 0})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "arbcore", body["service"])
}

func TestHandleGetHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{Host: "localhost", Port: 0})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleGetStatus_NoHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{Host: "localhost", Port: 0})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleGetStatus_UnhealthyDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{
		Host: "localhost",
		Port: 0,
		Healthz: func(ctx context.Context) error {
			return errors.New("database unreachable")
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}
