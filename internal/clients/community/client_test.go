package community

import (
	"context"
	"encoding/json"
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
	"github.com/nichescout/nichescout/internal/ratelimit"
	nstesting "github.com/nichescout/nichescout/internal/testing"
)

func TestActivityParsesAndCaches(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, "journaling", r.URL.Query().Get("keyword"))
		_ = json.NewEncoder(w).Encode(Activity{
			Keyword:       "journaling",
			PostsPerDay:   6.5,
			AvgEngagement: 14,
			GrowthRate:    0.12,
			Sentiment:     0.4,
		})
	}))
	defer srv.Close()

	db, cleanup := nstesting.NewTestDB(t, "clientdata")
	defer cleanup()

	orch := acquisition.New(ratelimit.New(100, 10), 2*time.Second, "", zerolog.Nop())
	client := NewClient(srv.URL, orch, clientdata.NewRepository(db.Conn()), zerolog.Nop())

	activity, kind := client.Activity(context.Background(), "journaling")
	require.Equal(t, acquisition.KindNone, kind)
	assert.Equal(t, 6.5, activity.PostsPerDay)
	assert.Equal(t, 0.12, activity.GrowthRate)

	_, kind = client.Activity(context.Background(), "journaling")
	require.Equal(t, acquisition.KindNone, kind)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "second call is served from cache")
}

func TestActivityDisabledWithoutBaseURL(t *testing.T) {
	orch := acquisition.New(ratelimit.New(100, 10), time.Second, "", zerolog.Nop())
	client := NewClient("", orch, nil, zerolog.Nop())

	activity, kind := client.Activity(context.Background(), "journaling")
	assert.Nil(t, activity)
	assert.Equal(t, acquisition.KindUnavailable, kind)
}
