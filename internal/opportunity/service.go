package opportunity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nichescout/nichescout/internal/acquisition"
	"github.com/nichescout/nichescout/internal/clients/appstore"
	"github.com/nichescout/nichescout/internal/clients/community"
	"github.com/nichescout/nichescout/internal/clients/hints"
	"github.com/nichescout/nichescout/internal/clients/trends"
	"github.com/nichescout/nichescout/internal/scoring"
	"github.com/nichescout/nichescout/internal/signals"
)

// searchLimit matches the marketplace's maximum page size.
const searchLimit = 200

// snapshotHintCap bounds how many raw hints the snapshot retains.
const snapshotHintCap = 10

// MarketplaceSearcher supplies ranked app records for a keyword.
type MarketplaceSearcher interface {
	Search(ctx context.Context, term, country string, limit int) (*appstore.SearchResult, acquisition.ErrorKind)
}

// HintProvider supplies ordered autosuggest completions.
type HintProvider interface {
	Fetch(ctx context.Context, term, country string) ([]hints.Hint, acquisition.ErrorKind)
}

// TrendProvider supplies a 12-month interest series.
type TrendProvider interface {
	Interest(ctx context.Context, keyword, geo string) (*trends.Series, acquisition.ErrorKind)
}

// CommunityProvider supplies discussion-activity stats.
type CommunityProvider interface {
	Activity(ctx context.Context, keyword string) (*community.Activity, acquisition.ErrorKind)
}

// HistorySink persists finished score results. Optional; a nil sink
// disables persistence.
type HistorySink interface {
	Save(ctx context.Context, result *ScoreResult) error
}

// Service runs scoring calls. All upstream failures degrade to documented
// defaults; a scoring call never fails because one source is down.
type Service struct {
	search     MarketplaceSearcher
	hints      HintProvider
	trends     TrendProvider
	community  CommunityProvider
	history    HistorySink
	batchDelay time.Duration
	log        zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService wires a scoring service. trends, communityClient and history
// may be nil; the affected signals then fall back to their defaults.
func NewService(
	search MarketplaceSearcher,
	hintProvider HintProvider,
	trendProvider TrendProvider,
	communityProvider CommunityProvider,
	history HistorySink,
	batchDelay time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		search:     search,
		hints:      hintProvider,
		trends:     trendProvider,
		community:  communityProvider,
		history:    history,
		batchDelay: batchDelay,
		log:        log.With().Str("component", "opportunity").Logger(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Score runs one full scoring call for a keyword. The three source groups
// are fetched concurrently; partial failure of any source must not block
// the others, so each goroutine only writes its own slot.
func (s *Service) Score(ctx context.Context, keyword, category, country string) (*ScoreResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("empty keyword")
	}
	if country == "" {
		country = "us"
	}

	var (
		wg        sync.WaitGroup
		searchRes *appstore.SearchResult
		hintList  []hints.Hint
		hintsOK   bool
		series    *trends.Series
		activity  *community.Activity
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		res, kind := s.search.Search(ctx, keyword, country, searchLimit)
		if kind == acquisition.KindNone {
			searchRes = res
		}
	}()
	go func() {
		defer wg.Done()
		list, kind := s.hints.Fetch(ctx, keyword, country)
		if kind == acquisition.KindNone {
			hintList = list
			hintsOK = true
		}
	}()
	go func() {
		defer wg.Done()
		if s.trends != nil {
			if ser, kind := s.trends.Interest(ctx, keyword, country); kind == acquisition.KindNone {
				series = ser
			}
		}
		if s.community != nil {
			if act, kind := s.community.Activity(ctx, keyword); kind == acquisition.KindNone {
				activity = act
			}
		}
	}()
	wg.Wait()

	now := s.now()
	topApps, categoryData := signals.FromSearch(keyword, searchRes, now)

	snap := signals.RawSignalSnapshot{
		TotalResults: categoryData.TotalResults,
		TopApps:      topApps,
		Category:     categoryData,
		Autosuggest:  autosuggestSignal(keyword, hintList, hintsOK),
		Trend:        signals.FromTrendSeries(series),
		Community:    signals.FromCommunityActivity(activity),
		Hints:        snapshotHints(hintList),
	}

	result := &ScoreResult{
		ID:          uuid.NewString(),
		Keyword:     keyword,
		Category:    category,
		Country:     country,
		Competition: scoring.CompetitionGap(snap.TopApps),
		Demand:      scoring.MarketDemand(snap.Autosuggest, snap.Trend, snap.Community, snap.TotalResults),
		Revenue:     scoring.RevenuePotential(snap.Category, snap.TopApps),
		Momentum:    scoring.TrendMomentum(snap.Trend, snap.Category, snap.Community, len(snap.TopApps)),
		Feasibility: scoring.ExecutionFeasibility(snap.TopApps),
		Snapshot:    snap,
		ScoredAt:    now,
	}
	result.OpportunityScore = scoring.Overall(
		result.Competition.Total,
		result.Demand.Total,
		result.Revenue.Total,
		result.Momentum.Total,
		result.Feasibility.Total,
	)
	result.Weaknesses, result.Differentiator = deriveWeaknesses(snap)
	result.Rationale = synthesizeRationale(result)

	s.log.Info().
		Str("keyword", keyword).
		Str("country", country).
		Float64("opportunity_score", result.OpportunityScore).
		Int("top_apps", len(snap.TopApps)).
		Msg("Keyword scored")

	if s.history != nil {
		if err := s.history.Save(ctx, result); err != nil {
			s.log.Error().Err(err).Str("keyword", keyword).Msg("Failed to persist score")
		}
	}
	return result, nil
}

// ScoreBatch scores keywords sequentially with a fixed inter-call delay.
// The delay is politeness toward the marketplace search endpoint, which
// has no published rate-limit contract; it applies on top of the rate
// governor. A keyword that fails to score is logged and skipped.
func (s *Service) ScoreBatch(ctx context.Context, keywords []string, category, country string) ([]*ScoreResult, error) {
	results := make([]*ScoreResult, 0, len(keywords))
	for i, keyword := range keywords {
		if i > 0 && s.batchDelay > 0 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				return results, err
			}
		}

		result, err := s.Score(ctx, keyword, category, country)
		if err != nil {
			s.log.Warn().Err(err).Str("keyword", keyword).Msg("Skipping keyword in batch")
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// autosuggestSignal locates the scored keyword in its own hint list. An
// exact match wins; otherwise the best hint containing the keyword is
// used. Absent from a successful hint fetch means genuinely no autosuggest
// presence, which reads as zero demand rather than missing data.
func autosuggestSignal(keyword string, hintList []hints.Hint, fetched bool) signals.AutosuggestData {
	if !fetched {
		return signals.AutosuggestData{}
	}

	target := strings.ToLower(keyword)
	containing := signals.AutosuggestData{}
	for i, h := range hintList {
		term := strings.ToLower(strings.TrimSpace(h.Term))
		if term == target {
			return signals.AutosuggestData{Priority: h.Priority, Position: i + 1, Available: true}
		}
		if !containing.Available && strings.Contains(term, target) {
			containing = signals.AutosuggestData{Priority: h.Priority, Position: i + 1, Available: true}
		}
	}
	return containing
}

func snapshotHints(hintList []hints.Hint) []signals.AutosuggestHint {
	if len(hintList) == 0 {
		return nil
	}
	n := len(hintList)
	if n > snapshotHintCap {
		n = snapshotHintCap
	}
	out := make([]signals.AutosuggestHint, n)
	for i := 0; i < n; i++ {
		out[i] = signals.AutosuggestHint{
			Term:     hintList[i].Term,
			Priority: hintList[i].Priority,
			Position: i + 1,
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
