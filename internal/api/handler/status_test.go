package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanzhu/tablab/internal/cache"
	"github.com/hanzhu/tablab/internal/job"
)

func statusRouter(store job.Store, c cache.Cache) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/analyze/{requestID}", NewStatusHandler(store, c))
	return r
}

func getStatus(t *testing.T, h http.Handler, requestID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze/"+requestID, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStatusHandlerFound(t *testing.T) {
	store := newFakeStore()
	store.put(&job.Record{
		RequestID:  "abc",
		Status:     job.StatusDone,
		UpdatedAt:  time.Now(),
		SummaryURL: "http://localhost/api/v1/results/abc/summary.json",
	})

	rr := getStatus(t, statusRouter(store, nil), "abc")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data job.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.Data.RequestID)
	assert.Equal(t, job.StatusDone, resp.Data.Status)
	assert.Contains(t, resp.Data.SummaryURL, "summary.json")
}

func TestStatusHandlerNotFound(t *testing.T) {
	rr := getStatus(t, statusRouter(newFakeStore(), nil), "missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOT_FOUND")
}

func TestStatusHandlerCachesOnlyTerminal(t *testing.T) {
	store := newFakeStore()
	c := newFakeCache()
	h := statusRouter(store, c)

	store.put(&job.Record{RequestID: "q1", Status: job.StatusQueued, UpdatedAt: time.Now()})
	store.put(&job.Record{RequestID: "d1", Status: job.StatusDone, UpdatedAt: time.Now()})

	require.Equal(t, http.StatusOK, getStatus(t, h, "q1").Code)
	_, found, _ := c.Get(t.Context(), cache.StatusKey("q1"))
	assert.False(t, found, "non-terminal record must not be cached")

	require.Equal(t, http.StatusOK, getStatus(t, h, "d1").Code)
	_, found, _ = c.Get(t.Context(), cache.StatusKey("d1"))
	assert.True(t, found, "terminal record should be cached")
}

func TestStatusHandlerServesFromCache(t *testing.T) {
	store := newFakeStore()
	c := newFakeCache()

	rec := job.Record{RequestID: "xyz", Status: job.StatusFailed, Error: "boom", UpdatedAt: time.Now()}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, c.Set(t.Context(), cache.StatusKey("xyz"), b, time.Minute))

	// Deliberately absent from the store: a hit proves the cache path.
	rr := getStatus(t, statusRouter(store, c), "xyz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "boom")
}

func TestStatusHandlerCacheErrorFallsThrough(t *testing.T) {
	store := newFakeStore()
	store.put(&job.Record{RequestID: "abc", Status: job.StatusRunning, UpdatedAt: time.Now()})

	c := newFakeCache()
	c.getErr = assert.AnError

	rr := getStatus(t, statusRouter(store, c), "abc")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), job.StatusRunning)
}
