package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/nichescout/nichescout/internal/signals"
)

// DemandBreakdown scores how much search and discussion interest a keyword
// attracts right now.
type DemandBreakdown struct {
	AutosuggestPriority float64 `json:"autosuggest_priority"`
	TrendInterest       float64 `json:"trend_interest"`
	CommunityVelocity   float64 `json:"community_velocity"`
	SearchResults       float64 `json:"search_results"`
	Total               float64 `json:"total"`
}

// MarketDemand scores demand from the autosuggest, trend, community and
// search-volume signals. Missing trend or community data defaults to the
// neutral 50; a missing autosuggest signal defaults to 0, because absence
// from the suggestion index is itself evidence of no search demand.
func MarketDemand(auto signals.AutosuggestData, trend signals.TrendData, comm signals.CommunityData, totalResults int) DemandBreakdown {
	b := DemandBreakdown{
		AutosuggestPriority: prioritySubScore(auto),
		TrendInterest:       trendInterest(trend),
		CommunityVelocity:   communityVelocity(comm),
		SearchResults:       clamp100(float64(totalResults) / searchResultCeiling * 100),
	}

	total := b.AutosuggestPriority*weightAutosuggestPriority +
		b.TrendInterest*weightTrendInterest +
		b.CommunityVelocity*weightCommunityVelocity +
		b.SearchResults*weightSearchResults
	b.Total = round1(clamp100(total))

	b.AutosuggestPriority = round1(b.AutosuggestPriority)
	b.TrendInterest = round1(b.TrendInterest)
	b.CommunityVelocity = round1(b.CommunityVelocity)
	b.SearchResults = round1(b.SearchResults)
	return b
}

func prioritySubScore(auto signals.AutosuggestData) float64 {
	if !auto.Available {
		return 0
	}
	return clamp100(float64(auto.Priority) / priorityCeiling * 100)
}

// trendInterest is the mean of the 12-month interest series, which the
// provider already normalizes to 0-100.
func trendInterest(trend signals.TrendData) float64 {
	if !trend.Available || len(trend.Interest) == 0 {
		return 50
	}
	return clamp100(stat.Mean(trend.Interest, nil))
}

func communityVelocity(comm signals.CommunityData) float64 {
	if !comm.Available {
		return 50
	}
	return clamp100(math.Min(comm.PostsPerDay, postsPerDayCeiling) / postsPerDayCeiling * 100)
}
