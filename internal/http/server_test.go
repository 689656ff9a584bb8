package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreasM009/entitystore-go/internal/domain"
	"github.com/AndreasM009/entitystore-go/store"
	"github.com/AndreasM009/entitystore-go/store/inmemory"
)

type testResponse struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func newTestHandler(t *testing.T, opts ...store.Option) http.Handler {
	t.Helper()
	backend := inmemory.NewStore()
	require.NoError(t, backend.Init(store.Metadata{}))

	repo := store.NewRepository[domain.Customer](backend, opts...)
	s := NewServer(0, []Resource{NewResource("customers", repo)})
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "body=%s", rr.Body.String())
	return rr, resp
}

func decodeCustomer(t *testing.T, data json.RawMessage) domain.Customer {
	t.Helper()
	var c domain.Customer
	require.NoError(t, json.Unmarshal(data, &c))
	return c
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandler(t)

	rr, resp := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, StatusOK, resp.Status)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

func TestCRUDFlow(t *testing.T) {
	h := newTestHandler(t)

	rr, resp := do(t, h, http.MethodPost, "/api/customers", `{"name":"Alice","email":"alice@example.com"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	alice := decodeCustomer(t, resp.Data)
	assert.Equal(t, int64(1), alice.ID)
	assert.Equal(t, int64(1), alice.Version)

	rr, _ = do(t, h, http.MethodPost, "/api/customers", `{"name":"Bob"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, resp = do(t, h, http.MethodGet, "/api/customers/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice@example.com", decodeCustomer(t, resp.Data).Email)

	rr, resp = do(t, h, http.MethodPut, "/api/customers/1", `{"name":"Alicia","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	updated := decodeCustomer(t, resp.Data)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	rr, resp = do(t, h, http.MethodGet, "/api/customers", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var all []domain.Customer
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	require.Equal(t, 2, len(all))
	assert.Equal(t, "Alicia", all[0].Name)
	assert.Equal(t, "Bob", all[1].Name)

	rr, _ = do(t, h, http.MethodDelete, "/api/customers/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, resp = do(t, h, http.MethodGet, "/api/customers/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, StatusError, resp.Status)

	rr, resp = do(t, h, http.MethodGet, "/api/customers/1/exists", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"exists":false}`, string(resp.Data))

	rr, resp = do(t, h, http.MethodGet, "/api/customers/2/exists", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"exists":true}`, string(resp.Data))

	// deleting again is a no-op
	rr, _ = do(t, h, http.MethodDelete, "/api/customers/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPagination(t *testing.T) {
	h := newTestHandler(t)
	for _, name := range []string{"A", "B", "C"} {
		rr, _ := do(t, h, http.MethodPost, "/api/customers", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr, resp := do(t, h, http.MethodGet, "/api/customers?offset=1&limit=1", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	var page []domain.Customer
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Equal(t, 1, len(page))
	assert.Equal(t, "B", page[0].Name)

	rr, resp = do(t, h, http.MethodGet, "/api/customers?offset=1&limit=9223372036854775807", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	page = nil
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, 2, len(page))

	rr, _ = do(t, h, http.MethodGet, "/api/customers?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, h, http.MethodGet, "/api/customers?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t)

	rr, _ := do(t, h, http.MethodGet, "/api/customers/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, h, http.MethodGet, "/api/customers/-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, h, http.MethodPost, "/api/customers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, h, http.MethodPost, "/api/customers", `{"id":5,"name":"Alice"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, h, http.MethodPut, "/api/customers/1", `{"id":2,"name":"Alice"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateMissing(t *testing.T) {
	h := newTestHandler(t)

	rr, resp := do(t, h, http.MethodPut, "/api/customers/9", `{"name":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestUpdateConflict(t *testing.T) {
	h := newTestHandler(t, store.WithConcurrency(store.Optimistic))

	rr, _ := do(t, h, http.MethodPost, "/api/customers", `{"name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, _ = do(t, h, http.MethodPut, "/api/customers/1", `{"name":"Alicia","version":1}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, h, http.MethodPut, "/api/customers/1", `{"name":"Stale","version":1}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestStrictDelete(t *testing.T) {
	h := newTestHandler(t, store.WithStrictDelete())

	rr, _ := do(t, h, http.MethodDelete, "/api/customers/3", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type brokenBackend struct {
	store.Backend
}

func (brokenBackend) Scan(ctx context.Context) ([]store.Record, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalError(t *testing.T) {
	backend := inmemory.NewStore()
	require.NoError(t, backend.Init(store.Metadata{}))
	repo := store.NewRepository[domain.Customer](brokenBackend{backend})
	h := NewServer(0, []Resource{NewResource("customers", repo)}).Handler()

	rr, resp := do(t, h, http.MethodGet, "/api/customers", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, resp.Error, "disk on fire")
}

func TestStartStop(t *testing.T) {
	s := NewServer(0, nil)
	s.addr = "127.0.0.1:0"
	require.NoError(t, s.Start())
	assert.Nil(t, s.Stop())
}
