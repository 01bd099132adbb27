package appstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichescout/nichescout/internal/acquisition"
	"github.com/nichescout/nichescout/internal/clientdata"
	"github.com/nichescout/nichescout/internal/database"
	"github.com/nichescout/nichescout/internal/ratelimit"
	nstesting "github.com/nichescout/nichescout/internal/testing"
)

const searchPayload = `{
	"resultCount": 2,
	"results": [
		{"trackId": 1, "trackName": "Habit Tracker Pro", "averageUserRating": 4.6, "userRatingCount": 1200, "price": 2.99, "currency": "USD", "description": "Track habits."},
		{"trackId": 2, "trackName": "Daily Habits", "averageUserRating": 4.1, "userRatingCount": 300, "price": 0, "currency": "USD", "description": "Free habit app."}
	]
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *database.DB, *int64) {
	t.Helper()

	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	db, cleanup := nstesting.NewTestDB(t, "clientdata")
	t.Cleanup(cleanup)
	repo := clientdata.NewRepository(db.Conn())

	orch := acquisition.New(ratelimit.New(1000, 10), 5*time.Second, "", zerolog.Nop())
	return NewClient(srv.URL, orch, repo, zerolog.Nop()), db, &calls
}

func TestSearchParsesResults(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "habit tracker", r.URL.Query().Get("term"))
		assert.Equal(t, "us", r.URL.Query().Get("country"))
		assert.Equal(t, "software", r.URL.Query().Get("entity"))
		_, _ = w.Write([]byte(searchPayload))
	}))

	result, kind := c.Search(context.Background(), "habit tracker", "us", 50)

	require.Equal(t, acquisition.KindNone, kind)
	require.Equal(t, 2, result.ResultCount)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "Habit Tracker Pro", result.Results[0].TrackName)
	assert.Equal(t, 4.6, result.Results[0].AverageUserRating)
	assert.Equal(t, int64(1200), result.Results[0].UserRatingCount)
}

func TestSearchCachesSecondCall(t *testing.T) {
	c, _, calls := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchPayload))
	}))

	_, kind := c.Search(context.Background(), "habit tracker", "us", 50)
	require.Equal(t, acquisition.KindNone, kind)

	result, kind := c.Search(context.Background(), "habit tracker", "us", 50)
	require.Equal(t, acquisition.KindNone, kind)
	assert.Equal(t, 2, result.ResultCount)
	assert.Equal(t, int64(1), atomic.LoadInt64(calls), "second call must be served from cache")
}

func TestSearchDistinguishesParams(t *testing.T) {
	c, _, calls := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchPayload))
	}))

	_, _ = c.Search(context.Background(), "habit tracker", "us", 50)
	_, _ = c.Search(context.Background(), "habit tracker", "de", 50)

	assert.Equal(t, int64(2), atomic.LoadInt64(calls), "different storefronts must not share a cache entry")
}

func TestSearchMalformedBodyIsEmptyResult(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
	}))

	result, kind := c.Search(context.Background(), "habit tracker", "us", 50)

	assert.Equal(t, acquisition.KindMalformed, kind)
	assert.Equal(t, 0, result.ResultCount)
	assert.Empty(t, result.Results)
}

func TestSearchFallsBackToStaleCache(t *testing.T) {
	var fail int32
	c, db, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&fail) == 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(searchPayload))
	}))

	// Seed the cache, expire the row, then break the upstream.
	_, kind := c.Search(context.Background(), "habit tracker", "us", 50)
	require.Equal(t, acquisition.KindNone, kind)
	_, err := db.Exec("UPDATE appstore_search SET expires_at = 0")
	require.NoError(t, err)
	atomic.StoreInt32(&fail, 1)

	result, kind := c.Search(context.Background(), "habit tracker", "us", 50)
	assert.Equal(t, acquisition.KindNone, kind, "stale data is served as usable data")
	assert.Equal(t, 2, result.ResultCount)
}

func TestSearchUnavailableWithoutCache(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	result, kind := c.Search(context.Background(), "habit tracker", "us", 50)

	assert.Equal(t, acquisition.KindUnavailable, kind)
	assert.Empty(t, result.Results)
}
