// Package hints fetches autosuggest completions for a partial search term.
// The upstream ranks each completion with a priority weight; order and
// priority are both preserved because downstream demand scoring depends
// on them.
package hints

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

// Hint is one autosuggest completion with its upstream priority weight.
type Hint struct {
	Term     string `json:"term"`
	Priority int    `json:"priority"`
}

// hintsResponse matches the upstream JSON envelope.
type hintsResponse struct {
	Hints []Hint `json:"hints"`
}

// Client fetches autosuggest hints with cache-first behavior.
type Client struct {
	baseURL   string
	orch      *acquisition.Orchestrator
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates an autosuggest hints client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, orch *acquisition.Orchestrator, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		orch:      orch,
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "appstore-hints").Logger(),
	}
}

// Fetch returns the ordered completions for term in the given country
// storefront. An empty slice with a non-none kind means the source gave
// nothing usable; an empty slice with KindNone means the term genuinely
// has no completions.
func (c *Client) Fetch(ctx context.Context, term, country string) ([]Hint, acquisition.ErrorKind) {
	params := map[string]interface{}{
		"term":    term,
		"country": country,
	}

	var staleRaw json.RawMessage
	if c.cacheRepo != nil {
		data, fresh, err := c.cacheRepo.Lookup("appstore_hints", term, params)
		if err == nil && data != nil {
			if fresh {
				var cached []Hint
				if err := json.Unmarshal(data, &cached); err == nil {
					c.log.Debug().Str("term", term).Int("hints", len(cached)).Msg("Cache hit")
					return cached, acquisition.KindNone
				}
			} else {
				staleRaw = data
			}
		}
	}

	reqURL := fmt.Sprintf("%s?clientApplication=Software&term=%s&country=%s",
		c.baseURL, url.QueryEscape(term), url.QueryEscape(country))
	c.log.Debug().Str("url", reqURL).Msg("Fetching hints")

	dedupKey := clientdata.Key("appstore_hints", term, params)
	res := c.orch.Deduplicated(ctx, dedupKey, func(ctx context.Context) acquisition.Result {
		return c.orch.Fetch(ctx, http.MethodGet, reqURL, nil)
	})

	if !res.OK() {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().
				Err(res.Err).
				Str("term", term).
				Str("kind", res.Kind.String()).
				Msg("API failed, using stale cached hints")
			return stale, acquisition.KindNone
		}
		return nil, res.Kind
	}

	parsed, err := parseHintsBody(res.Body)
	if err != nil {
		if stale := decodeStale(staleRaw); stale != nil {
			c.log.Warn().Err(err).Str("term", term).Msg("Failed to parse hints response, using stale cache")
			return stale, acquisition.KindNone
		}
		c.log.Warn().Err(err).Str("term", term).Msg("Malformed hints response")
		return nil, acquisition.KindMalformed
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("appstore_hints", term, params, parsed, clientdata.TTLHints); err != nil {
			c.log.Warn().Err(err).Str("term", term).Msg("Failed to cache hints")
		}
	}

	return parsed, acquisition.KindNone
}

// parseHintsBody decodes a hints payload. The upstream intermittently serves
// an XML property list or an HTML error page instead of JSON; both start
// with '<' and are rejected as malformed rather than decoded as empty.
func parseHintsBody(body []byte) ([]Hint, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if trimmed[0] == '<' {
		return nil, fmt.Errorf("response is XML or HTML, not JSON")
	}
	var envelope hintsResponse
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if envelope.Hints == nil {
		envelope.Hints = []Hint{}
	}
	return envelope.Hints, nil
}

func decodeStale(raw json.RawMessage) []Hint {
	if raw == nil {
		return nil
	}
	var cached []Hint
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return cached
}
