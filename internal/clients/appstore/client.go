// Package appstore provides marketplace search against the iTunes Search API,
// with persistent caching and stale-data fallback.
package appstore

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

// AppRecord is one app row from a marketplace search response. Field names
// follow the upstream JSON so decoding stays a straight unmarshal.
type AppRecord struct {
	TrackID           int64   `json:"trackId"`
	TrackName         string  `json:"trackName"`
	BundleID          string  `json:"bundleId"`
	AverageUserRating float64 `json:"averageUserRating"`
	UserRatingCount   int64   `json:"userRatingCount"`
	Price             float64 `json:"price"`
	Currency          string  `json:"currency"`
	Description       string  `json:"description"`
	PrimaryGenreName  string  `json:"primaryGenreName"`
	ReleaseDate       string  `json:"releaseDate"`
}

// SearchResult is a marketplace search response.
type SearchResult struct {
	ResultCount int         `json:"resultCount"`
	Results     []AppRecord `json:"results"`
}

// Client fetches app search results with cache-first behavior.
type Client struct {
	baseURL   string
	orch      *acquisition.Orchestrator
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a marketplace search client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, orch *acquisition.Orchestrator, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		orch:      orch,
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "appstore-search").Logger(),
	}
}

// Search runs one marketplace search for term in the given country storefront.
// The returned kind is KindNone whenever usable data is available, including
// stale cached data served after an upstream failure. Callers treat any other
// kind as "no marketplace signal" and default accordingly.
func (c *Client) Search(ctx context.Context, term, country string, limit int) (*SearchResult, acquisition.ErrorKind) {
	params := map[string]interface{}{
		"term":    term,
		"country": country,
		"limit":   limit,
	}

	// staleRaw is kept in hand when the cached row has expired, so an
	// upstream failure can still serve stale data. Stale data beats no data.
	var staleRaw json.RawMessage
	if c.cacheRepo != nil {
		data, fresh, err := c.cacheRepo.Lookup("appstore_search", term, params)
		if err == nil && data != nil {
			if fresh {
				var cached SearchResult
				if err := json.Unmarshal(data, &cached); err == nil {
					c.log.Debug().Str("term", term).Str("country", country).Msg("Cache hit")
					return &cached, acquisition.KindNone
				}
			} else {
				staleRaw = data
			}
		}
	}

	reqURL := fmt.Sprintf("%s?term=%s&country=%s&entity=software&limit=%d",
		c.baseURL, url.QueryEscape(term), url.QueryEscape(country), limit)
	c.log.Debug().Str("url", reqURL).Msg("Fetching search results")

	dedupKey := clientdata.Key("appstore_search", term, params)
	res := c.orch.Deduplicated(ctx, dedupKey, func(ctx context.Context) acquisition.Result {
		return c.orch.Fetch(ctx, http.MethodGet, reqURL, nil)
	})

	if !res.OK() {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().
				Err(res.Err).
				Str("term", term).
				Str("kind", res.Kind.String()).
				Msg("API failed, using stale cached search results")
			return stale, acquisition.KindNone
		}
		return &SearchResult{}, res.Kind
	}

	result, err := parseSearchBody(res.Body)
	if err != nil {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().Err(err).Str("term", term).Msg("Failed to parse search response, using stale cache")
			return stale, acquisition.KindNone
		}
		c.log.Warn().Err(err).Str("term", term).Msg("Malformed search response")
		return &SearchResult{}, acquisition.KindMalformed
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("appstore_search", term, params, result, clientdata.TTLSearch); err != nil {
			c.log.Warn().Err(err).Str("term", term).Msg("Failed to cache search results")
		}
	}

	return result, acquisition.KindNone
}

// parseSearchBody decodes a search payload, rejecting HTML error pages that
// some CDN layers return with a 200 status.
func parseSearchBody(body []byte) (*SearchResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '<' {
		return nil, fmt.Errorf("response is not JSON")
	}
	var result SearchResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// decodeStale turns retained stale bytes back into a result, or nil when
// there is nothing usable to fall back on.
func decodeStale(raw json.RawMessage) *SearchResult {
	if raw == nil {
		return nil
	}
	var cached SearchResult
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return &cached
}
