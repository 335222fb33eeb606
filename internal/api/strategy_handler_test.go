package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/collaborators"
	"github.com/edgewatch/arbcore/internal/strategy"
)

func newStrategyTestServer(t *testing.T) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := collaborators.NewPostgresStrategyStoreWithPool(mock)
	s := NewServer(Config{Host: "localhost", Port: 0, Strategies: store})
	return s, mock
}

func TestHandleListStrategies(t *testing.T) {
	s, mock := newStrategyTestServer(t)

	id := uuid.New()
	params, _ := json.Marshal(arbmodel.StrategyParams{})
	approval, _ := json.Marshal(arbmodel.ApprovalMetadata{})
	rows := pgxmock.NewRows([]string{"id", "kind", "name", "status", "params", "approval", "updated_at"}).
		AddRow(id, "direct", "weth-usdc", "approved", params, approval, time.Now())
	mock.ExpectQuery("SELECT").WithArgs("direct", "approved").WillReturnRows(rows)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies?kind=direct", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleGetStrategy_NotFound(t *testing.T) {
	s, mock := newStrategyTestServer(t)

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "kind", "name", "status", "params", "approval", "updated_at"})
	mock.ExpectQuery("SELECT").WithArgs(id).WillReturnRows(rows)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/"+id.String(), nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetStrategy_InvalidID(t *testing.T) {
	s, _ := newStrategyTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/not-a-uuid", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUpsertStrategy(t *testing.T) {
	s, mock := newStrategyTestServer(t)

	mock.ExpectExec("INSERT INTO strategies").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	doc := strategy.NewDefaultDocument(arbmodel.OpportunityDirect, "weth-usdc")
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/strategies", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleUpsertStrategy_InvalidDocument(t *testing.T) {
	s, _ := newStrategyTestServer(t)

	doc := strategy.NewDefaultDocument(arbmodel.OpportunityDirect, "")
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/strategies", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleExportStrategy(t *testing.T) {
	s, mock := newStrategyTestServer(t)

	id := uuid.New()
	params, _ := json.Marshal(arbmodel.StrategyParams{})
	approval, _ := json.Marshal(arbmodel.ApprovalMetadata{})
	rows := pgxmock.NewRows([]string{"id", "kind", "name", "status", "params", "approval", "updated_at"}).
		AddRow(id, "direct", "weth-usdc", "approved", params, approval, time.Now())
	mock.ExpectQuery("SELECT").WithArgs(id).WillReturnRows(rows)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/"+id.String()+"/export", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "weth-usdc.yaml")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleListStrategies_NotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Config{Host: "localhost", Port: 0})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
