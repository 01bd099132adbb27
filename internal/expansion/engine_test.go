package expansion

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichescout/nichescout/internal/acquisition"
	"github.com/nichescout/nichescout/internal/clients/appstore"
	"github.com/nichescout/nichescout/internal/clients/hints"
	"github.com/nichescout/nichescout/internal/signals"
)

// fakeHints serves canned hint lists per exact query term and counts calls.
type fakeHints struct {
	byTerm map[string][]hints.Hint
	kind   acquisition.ErrorKind
	calls  []string
}

func (f *fakeHints) Fetch(_ context.Context, term, _ string) ([]hints.Hint, acquisition.ErrorKind) {
	f.calls = append(f.calls, term)
	if f.kind != acquisition.KindNone {
		return nil, f.kind
	}
	return f.byTerm[term], acquisition.KindNone
}

type fakeSearch struct {
	result *appstore.SearchResult
	kind   acquisition.ErrorKind
	calls  int
}

func (f *fakeSearch) Search(_ context.Context, _, _ string, _ int) (*appstore.SearchResult, acquisition.ErrorKind) {
	f.calls++
	return f.result, f.kind
}

func newTestEngine(h *fakeHints, s *fakeSearch) *Engine {
	return New(h, s, zerolog.Nop())
}

func terms(found []signals.AutosuggestHint) []string {
	out := make([]string, len(found))
	for i, h := range found {
		out[i] = h.Term
	}
	return out
}

func TestExpandBFSTwoLevels(t *testing.T) {
	h := &fakeHints{byTerm: map[string][]hints.Hint{
		"yoga": {
			{Term: "yoga for beginners", Priority: 9000},
			{Term: "yoga nidra", Priority: 7000},
		},
		"yoga for beginners": {
			{Term: "yoga for beginners free", Priority: 5000},
		},
		"yoga nidra": {
			{Term: "Yoga Nidra", Priority: 6000}, // case duplicate, must be skipped
		},
	}}
	e := newTestEngine(h, &fakeSearch{})

	found, err := e.Expand(context.Background(), "yoga", "us", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"yoga for beginners", "yoga nidra", "yoga for beginners free"}, terms(found))
	for i, f := range found {
		assert.Equal(t, i+1, f.Position)
	}
}

func TestExpandNeverRevisitsTerms(t *testing.T) {
	// Both hint lists point back at each other; dedup must prevent loops.
	h := &fakeHints{byTerm: map[string][]hints.Hint{
		"a": {{Term: "b", Priority: 1}},
		"b": {{Term: "a", Priority: 1}, {Term: "b", Priority: 1}},
	}}
	e := newTestEngine(h, &fakeSearch{})

	found, err := e.Expand(context.Background(), "a", "us", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, terms(found))

	queried := make(map[string]int)
	for _, c := range h.calls {
		queried[c]++
	}
	assert.LessOrEqual(t, queried["a"], 1)
	assert.LessOrEqual(t, queried["b"], 1)
}

func TestExpandDepthBound(t *testing.T) {
	// A chain longer than the depth bound: c1 -> c2 -> c3 -> ...
	h := &fakeHints{byTerm: map[string][]hints.Hint{
		"c1": {{Term: "c2", Priority: 1}},
		"c2": {{Term: "c3", Priority: 1}},
		"c3": {{Term: "c4", Priority: 1}},
	}}
	e := newTestEngine(h, &fakeSearch{})

	found, err := e.Expand(context.Background(), "c1", "us", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, terms(found), "expansion stops at the depth bound")
}

func TestExpandStreamsViaCallback(t *testing.T) {
	h := &fakeHints{byTerm: map[string][]hints.Hint{
		"seed": {{Term: "seed one", Priority: 2}, {Term: "seed two", Priority: 1}},
	}}
	e := newTestEngine(h, &fakeSearch{})

	var streamed []string
	found, err := e.Expand(context.Background(), "seed", "us", func(hint signals.AutosuggestHint) {
		streamed = append(streamed, hint.Term)
	})

	require.NoError(t, err)
	assert.Equal(t, terms(found), streamed, "every term is emitted exactly once, in order")
}

func TestExpandAlphabetProbeFallback(t *testing.T) {
	h := &fakeHints{byTerm: map[string][]hints.Hint{
		// The bare seed yields nothing; letter probes do.
		"niche b": {{Term: "niche budgeting", Priority: 3000}},
		"niche d": {{Term: "niche diary", Priority: 2000}},
	}}
	e := newTestEngine(h, &fakeSearch{})

	found, err := e.Expand(context.Background(), "niche", "us", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"niche budgeting", "niche diary"}, terms(found))

	// The probe covers "niche a".."niche j" only.
	for _, call := range h.calls[1:] {
		require.True(t, strings.HasPrefix(call, "niche "))
		letter := strings.TrimPrefix(call, "niche ")
		assert.LessOrEqual(t, letter, "j")
	}
}

func TestExpandSearchFallbackSynthesizesPriorities(t *testing.T) {
	h := &fakeHints{byTerm: map[string][]hints.Hint{}}
	s := &fakeSearch{result: &appstore.SearchResult{
		ResultCount: 3,
		Results: []appstore.AppRecord{
			{TrackName: "Sleep Sounds: White Noise"},
			{TrackName: "White Noise Machine"},
			{TrackName: "Deep Sleep Sounds"},
		},
	}}
	e := newTestEngine(h, s)

	found, err := e.Expand(context.Background(), "white noise baby", "us", nil)

	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, 1, s.calls)

	// Priorities decay with frequency rank and never go below the floor.
	for i, f := range found {
		if i > 0 {
			assert.LessOrEqual(t, f.Priority, found[i-1].Priority)
		}
		assert.GreaterOrEqual(t, f.Priority, 500)
	}

	// The seed itself is always present in fallback output.
	assert.True(t, hasTerm(found, "white noise baby"))

	// Frequent grams made it in: both "white noise" and "sleep sounds"
	// appear twice across titles.
	assert.True(t, hasTerm(found, "white noise"))
	assert.True(t, hasTerm(found, "sleep sounds"))
}

func TestExpandSearchFallbackUpstreamDownStillReturnsSeed(t *testing.T) {
	h := &fakeHints{kind: acquisition.KindUnavailable}
	s := &fakeSearch{kind: acquisition.KindTimeout}
	e := newTestEngine(h, s)

	found, err := e.Expand(context.Background(), "pottery tracker", "us", nil)

	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "pottery tracker", found[0].Term)
	assert.Equal(t, 500, found[0].Priority)
}

func TestExpandEmptySeedRejected(t *testing.T) {
	e := newTestEngine(&fakeHints{}, &fakeSearch{})
	_, err := e.Expand(context.Background(), "   ", "us", nil)
	assert.Error(t, err)
}

func TestResolveTriggerLengthShortCircuits(t *testing.T) {
	h := &fakeHints{byTerm: map[string][]hints.Hint{
		"h":   {{Term: "home workout", Priority: 1}},
		"ha":  {{Term: "hair salon", Priority: 1}},
		"hab": {{Term: "habit tracker free", Priority: 1}},
	}}
	e := newTestEngine(h, &fakeSearch{})

	n, err := e.ResolveTriggerLength(context.Background(), "habit tracker", "us")

	require.NoError(t, err)
	assert.Equal(t, 3, n, "a hint containing the keyword counts as a trigger")
	assert.Equal(t, []string{"h", "ha", "hab"}, h.calls)
}

func TestResolveTriggerLengthNeverTriggers(t *testing.T) {
	h := &fakeHints{byTerm: map[string][]hints.Hint{}}
	e := newTestEngine(h, &fakeSearch{})

	n, err := e.ResolveTriggerLength(context.Background(), "zq", "us")

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, h.calls, 2, "one probe per prefix length")
}

func hasTerm(found []signals.AutosuggestHint, term string) bool {
	for _, f := range found {
		if f.Term == term {
			return true
		}
	}
	return false
}
