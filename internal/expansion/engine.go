// Package expansion discovers the keyword neighborhood around a seed term.
// Three strategies are tried in order until one yields terms: breadth-first
// hint expansion, an alphabet probe, and finally n-gram mining of
// marketplace search titles. Discovered terms are returned in bulk and also
// streamed through a callback so long expansions can show partial results.
package expansion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nichescout/nichescout/internal/acquisition"
	"github.com/nichescout/nichescout/internal/clients/appstore"
	"github.com/nichescout/nichescout/internal/clients/hints"
	"github.com/nichescout/nichescout/internal/signals"
)

const (
	// defaultMaxDepth bounds BFS rounds over the hint graph.
	defaultMaxDepth = 2

	// The alphabet probe stops after this many letters or terms. The
	// constants are empirical, not load-bearing; see alphabetProbe.
	probeLetterCap = 10
	probeTermCap   = 20

	// Synthetic priorities for search-fallback terms decay with frequency
	// rank and never drop below the floor.
	syntheticBase  = 10000
	syntheticStep  = 300
	syntheticFloor = 500

	// triggerProbeCap bounds ResolveTriggerLength's prefix scan.
	triggerProbeCap = 25

	searchFallbackLimit = 50
)

// stopWords are excluded from n-gram mining in the search fallback.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "of": true,
	"the": true, "to": true, "with": true, "your": true, "in": true,
	"on": true, "by": true, "is": true, "app": true, "apps": true,
	"free": true, "best": true, "pro": true, "my": true,
}

// HintFetcher supplies ordered autosuggest completions for a term.
type HintFetcher interface {
	Fetch(ctx context.Context, term, country string) ([]hints.Hint, acquisition.ErrorKind)
}

// Searcher supplies marketplace search results for the fallback strategy.
type Searcher interface {
	Search(ctx context.Context, term, country string, limit int) (*appstore.SearchResult, acquisition.ErrorKind)
}

// EmitFunc receives each discovered term as soon as it is found.
// A nil emit is allowed.
type EmitFunc func(hint signals.AutosuggestHint)

// Engine expands a seed keyword into its suggestion neighborhood.
type Engine struct {
	hints    HintFetcher
	search   Searcher
	maxDepth int
	log      zerolog.Logger
}

// New creates an expansion engine with the default depth bound.
func New(hintFetcher HintFetcher, searcher Searcher, log zerolog.Logger) *Engine {
	return &Engine{
		hints:    hintFetcher,
		search:   searcher,
		maxDepth: defaultMaxDepth,
		log:      log.With().Str("component", "expansion").Logger(),
	}
}

// Expand discovers terms around seed for one country storefront. Terms are
// deduplicated globally by lowercase form and each is emitted once, in
// discovery order, with its 1-based position.
func (e *Engine) Expand(ctx context.Context, seed, country string, emit EmitFunc) ([]signals.AutosuggestHint, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, fmt.Errorf("empty seed term")
	}

	collector := newCollector(emit)

	if err := e.bfs(ctx, seed, country, collector); err != nil {
		return nil, err
	}
	if collector.empty() {
		e.log.Debug().Str("seed", seed).Msg("BFS found nothing, trying alphabet probe")
		if err := e.alphabetProbe(ctx, seed, country, collector); err != nil {
			return nil, err
		}
	}
	if collector.empty() {
		e.log.Debug().Str("seed", seed).Msg("Alphabet probe found nothing, mining search titles")
		if err := e.searchFallback(ctx, seed, country, collector); err != nil {
			return nil, err
		}
	}

	e.log.Info().
		Str("seed", seed).
		Str("country", country).
		Int("terms", len(collector.found)).
		Msg("Expansion complete")
	return collector.found, nil
}

// bfs runs bounded breadth-first expansion over the hint graph. Each round
// fetches hints for every frontier term; unseen terms form the next
// frontier. Terminates at the depth bound or when a round adds nothing.
func (e *Engine) bfs(ctx context.Context, seed, country string, c *collector) error {
	frontier := []string{seed}
	c.markSeen(seed)

	for depth := 0; depth < e.maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, term := range frontier {
			if err := ctx.Err(); err != nil {
				return err
			}
			hintList, kind := e.hints.Fetch(ctx, term, country)
			if kind != acquisition.KindNone {
				continue // one bad term must not abort the round
			}
			for _, h := range hintList {
				if c.markSeen(h.Term) {
					c.add(h.Term, h.Priority)
					next = append(next, h.Term)
				}
			}
		}
		frontier = next
	}
	return nil
}

// alphabetProbe appends " a" through " z" to the seed and probes each. The
// hints endpoint is picky about prefix length and content; probing single
// letter continuations recovers terms when the bare seed yields nothing.
func (e *Engine) alphabetProbe(ctx context.Context, seed, country string, c *collector) error {
	for i := 0; i < probeLetterCap; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		probe := seed + " " + string(rune('a'+i))
		hintList, kind := e.hints.Fetch(ctx, probe, country)
		if kind != acquisition.KindNone {
			continue
		}
		for _, h := range hintList {
			if c.markSeen(h.Term) {
				c.add(h.Term, h.Priority)
				if len(c.found) >= probeTermCap {
					return nil
				}
			}
		}
	}
	return nil
}

// searchFallback mines marketplace result titles for frequent n-grams and
// synthesizes a priority from frequency rank. The seed itself is always
// included so downstream scoring has at least one term to work with.
func (e *Engine) searchFallback(ctx context.Context, seed, country string, c *collector) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, kind := e.search.Search(ctx, seed, country, searchFallbackLimit)
	if kind == acquisition.KindNone && res != nil {
		for i, term := range rankNgrams(res) {
			priority := syntheticBase - i*syntheticStep
			if priority < syntheticFloor {
				priority = syntheticFloor
			}
			if c.markSeen(term) {
				c.add(term, priority)
			}
		}
	}

	if !c.has(seed) {
		// The seed was marked seen by BFS but never surfaced as a hint;
		// it is always included in the fallback output.
		c.add(seed, syntheticFloor)
	}
	return nil
}

// rankNgrams tokenizes result titles into stop-word-filtered unigrams,
// bigrams and trigrams and returns them by descending frequency. Ties break
// alphabetically so the ranking is deterministic.
func rankNgrams(res *appstore.SearchResult) []string {
	freq := make(map[string]int)
	for _, app := range res.Results {
		tokens := tokenize(app.TrackName)
		for n := 1; n <= 3; n++ {
			for i := 0; i+n <= len(tokens); i++ {
				gram := strings.Join(tokens[i:i+n], " ")
				freq[gram]++
			}
		}
	}

	grams := make([]string, 0, len(freq))
	for g := range freq {
		if freq[g] >= 2 { // a one-off token is noise, not a niche term
			grams = append(grams, g)
		}
	}
	sort.Slice(grams, func(i, j int) bool {
		if freq[grams[i]] != freq[grams[j]] {
			return freq[grams[i]] > freq[grams[j]]
		}
		return grams[i] < grams[j]
	})
	return grams
}

// tokenize lowercases a title and strips stop words and punctuation.
func tokenize(title string) []string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var tokens []string
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// collector tracks global lowercase dedup, discovery order and streaming.
type collector struct {
	seen  map[string]bool
	found []signals.AutosuggestHint
	emit  EmitFunc
}

func newCollector(emit EmitFunc) *collector {
	return &collector{seen: make(map[string]bool), emit: emit}
}

// markSeen reports true when term was unseen, marking it in the process.
func (c *collector) markSeen(term string) bool {
	key := normalize(term)
	if key == "" || c.seen[key] {
		return false
	}
	c.seen[key] = true
	return true
}

func (c *collector) add(term string, priority int) {
	hint := signals.AutosuggestHint{
		Term:     strings.TrimSpace(term),
		Priority: priority,
		Position: len(c.found) + 1,
	}
	c.found = append(c.found, hint)
	if c.emit != nil {
		c.emit(hint)
	}
}

func (c *collector) empty() bool { return len(c.found) == 0 }

// has reports whether term was actually added to the output, as opposed to
// merely marked seen.
func (c *collector) has(term string) bool {
	key := normalize(term)
	for _, h := range c.found {
		if normalize(h.Term) == key {
			return true
		}
	}
	return false
}
