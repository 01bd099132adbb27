// Package community fetches discussion-activity stats for a keyword from a
// community-activity provider (forum or subreddit style). The provider is
// optional; missing data defaults the affected sub-scores downstream.
package community

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/nichescout/nichescout/internal/acquisition"
	"github.com/nichescout/nichescout/internal/clientdata"
)

// Activity is a keyword's community-discussion snapshot.
type Activity struct {
	Keyword       string  `json:"keyword"`
	PostsPerDay   float64 `json:"posts_per_day"`
	AvgEngagement float64 `json:"avg_engagement"`
	GrowthRate    float64 `json:"growth_rate"`
	Sentiment     float64 `json:"sentiment"`
}

// Client fetches community activity with cache-first behavior.
type Client struct {
	baseURL   string
	orch      *acquisition.Orchestrator
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a community-activity client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, orch *acquisition.Orchestrator, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		orch:      orch,
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "community").Logger(),
	}
}

// Activity returns discussion stats for keyword.
func (c *Client) Activity(ctx context.Context, keyword string) (*Activity, acquisition.ErrorKind) {
	if c.baseURL == "" {
		return nil, acquisition.KindUnavailable
	}

	params := map[string]interface{}{"keyword": keyword}

	var staleRaw json.RawMessage
	if c.cacheRepo != nil {
		data, fresh, err := c.cacheRepo.Lookup("community", keyword, params)
		if err == nil && data != nil {
			if fresh {
				var cached Activity
				if err := json.Unmarshal(data, &cached); err == nil {
					c.log.Debug().Str("keyword", keyword).Msg("Cache hit")
					return &cached, acquisition.KindNone
				}
			} else {
				staleRaw = data
			}
		}
	}

	reqURL := fmt.Sprintf("%s?keyword=%s", c.baseURL, url.QueryEscape(keyword))
	c.log.Debug().Str("url", reqURL).Msg("Fetching community activity")

	dedupKey := clientdata.Key("community", keyword, params)
	res := c.orch.Deduplicated(ctx, dedupKey, func(ctx context.Context) acquisition.Result {
		return c.orch.Fetch(ctx, http.MethodGet, reqURL, nil)
	})

	if !res.OK() {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().
				Err(res.Err).
				Str("keyword", keyword).
				Str("kind", res.Kind.String()).
				Msg("API failed, using stale cached activity")
			return stale, acquisition.KindNone
		}
		return nil, res.Kind
	}

	activity, err := parseActivityBody(res.Body)
	if err != nil {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().Err(err).Str("keyword", keyword).Msg("Failed to parse activity response, using stale cache")
			return stale, acquisition.KindNone
		}
		c.log.Warn().Err(err).Str("keyword", keyword).Msg("Malformed activity response")
		return nil, acquisition.KindMalformed
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("community", keyword, params, activity, clientdata.TTLCommunity); err != nil {
			c.log.Warn().Err(err).Str("keyword", keyword).Msg("Failed to cache activity")
		}
	}

	return activity, acquisition.KindNone
}

func parseActivityBody(body []byte) (*Activity, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '<' {
		return nil, fmt.Errorf("response is not JSON")
	}
	var activity Activity
	if err := json.Unmarshal(trimmed, &activity); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &activity, nil
}

func decodeStale(raw json.RawMessage) *Activity {
	if raw == nil {
		return nil
	}
	var cached Activity
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return &cached
}
