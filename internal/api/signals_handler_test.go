package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/collaborators"
	"github.com/edgewatch/arbcore/internal/signalcoord"
)

type stubInputBuilder struct{}

func (stubInputBuilder) Build(_ context.Context, _ arbmodel.Opportunity) (arbmodel.ArbitrageInputs, error) {
	return arbmodel.ArbitrageInputs{}, nil
}

func TestHandleListSignals(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := collaborators.NewInMemoryStrategyStore()
	coord := signalcoord.New(stubInputBuilder{}, store, signalcoord.DefaultConfig())
	s := NewServer(Config{Host: "localhost", Port: 0, Coordinator: coord})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "signals")
	assert.Contains(t, body, "dropped")
}

func TestHandleListSignals_NotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{Host: "localhost", Port: 0})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignalHub_BroadcastToSubscribers(t *testing.T) {
	hub := newSignalHub()
	client := &signalClient{send: make(chan []byte, 4)}
	hub.register(client)

	hub.broadcast(arbmodel.SignalEvent{Kind: arbmodel.SignalCreated})

	select {
	case msg := <-client.send:
		var ev arbmodel.SignalEvent
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, arbmodel.SignalCreated, ev.Kind)
	default:
		t.Fatal("expected broadcast message on client send channel")
	}
}

func TestSignalHub_DropsSlowClient(t *testing.T) {
	hub := newSignalHub()
	client := &signalClient{send: make(chan []byte)}
	hub.register(client)

	hub.broadcast(arbmodel.SignalEvent{Kind: arbmodel.SignalCreated})

	hub.mu.RLock()
	_, stillRegistered := hub.clients[client]
	hub.mu.RUnlock()
	assert.False(t, stillRegistered)
}
