// Package trends fetches a 12-month search-interest series for a keyword
// from a Google-Trends-style provider. The provider is optional; a scoring
// call without trend data falls back to neutral sub-scores downstream.
package trends

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

// InterestPoint is one month of normalized search interest (0-100).
type InterestPoint struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Series is a keyword's interest history, oldest month first.
type Series struct {
	Keyword string          `json:"keyword"`
	Points  []InterestPoint `json:"points"`
}

// Values returns the interest values in chronological order.
func (s *Series) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// Client fetches interest series with cache-first behavior.
type Client struct {
	baseURL   string
	orch      *acquisition.Orchestrator
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a trend provider client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, orch *acquisition.Orchestrator, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		orch:      orch,
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "trends").Logger(),
	}
}

// Interest returns the 12-month interest series for keyword in geo.
func (c *Client) Interest(ctx context.Context, keyword, geo string) (*Series, acquisition.ErrorKind) {
	if c.baseURL == "" {
		return nil, acquisition.KindUnavailable
	}

	params := map[string]interface{}{
		"keyword": keyword,
		"geo":     geo,
	}

	var staleRaw json.RawMessage
	if c.cacheRepo != nil {
		data, fresh, err := c.cacheRepo.Lookup("trends", keyword, params)
		if err == nil && data != nil {
			if fresh {
				var cached Series
				if err := json.Unmarshal(data, &cached); err == nil {
					c.log.Debug().Str("keyword", keyword).Msg("Cache hit")
					return &cached, acquisition.KindNone
				}
			} else {
				staleRaw = data
			}
		}
	}

	reqURL := fmt.Sprintf("%s?keyword=%s&geo=%s&months=12",
		c.baseURL, url.QueryEscape(keyword), url.QueryEscape(geo))
	c.log.Debug().Str("url", reqURL).Msg("Fetching interest series")

	dedupKey := clientdata.Key("trends", keyword, params)
	res := c.orch.Deduplicated(ctx, dedupKey, func(ctx context.Context) acquisition.Result {
		return c.orch.Fetch(ctx, http.MethodGet, reqURL, nil)
	})

	if !res.OK() {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().
				Err(res.Err).
				Str("keyword", keyword).
				Str("kind", res.Kind.String()).
				Msg("API failed, using stale cached interest series")
			return stale, acquisition.KindNone
		}
		return nil, res.Kind
	}

	series, err := parseSeriesBody(res.Body)
	if err != nil {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().Err(err).Str("keyword", keyword).Msg("Failed to parse interest series, using stale cache")
			return stale, acquisition.KindNone
		}
		c.log.Warn().Err(err).Str("keyword", keyword).Msg("Malformed interest series response")
		return nil, acquisition.KindMalformed
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("trends", keyword, params, series, clientdata.TTLTrends); err != nil {
			c.log.Warn().Err(err).Str("keyword", keyword).Msg("Failed to cache interest series")
		}
	}

	return series, acquisition.KindNone
}

func parseSeriesBody(body []byte) (*Series, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '<' {
		return nil, fmt.Errorf("response is not JSON")
	}
	var series Series
	if err := json.Unmarshal(trimmed, &series); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &series, nil
}

func decodeStale(raw json.RawMessage) *Series {
	if raw == nil {
		return nil
	}
	var cached Series
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return &cached
}
