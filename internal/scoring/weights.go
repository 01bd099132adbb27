// Package scoring holds the five dimension calculators and their weight
// tables. Every calculator is a pure function from extracted signals to a
// named breakdown; no I/O, no shared state. All sub-scores and totals are
// clamped to [0, 100] and rounded to one decimal for presentation
// stability, which keeps tests and history diffs reproducible.
package scoring

import (
	"fmt"
	"math"
)

// Top-level weights combining the five dimension totals into the final
// opportunity score (must sum to 1.0).
const (
	WeightCompetitionGap       = 0.30
	WeightMarketDemand         = 0.25
	WeightRevenuePotential     = 0.20
	WeightTrendMomentum        = 0.15
	WeightExecutionFeasibility = 0.10
)

// Competition Gap sub-weights (must sum to 1.0). The dimension measures
// competition strength and is inverted, so a high total means a weak field.
const (
	weightTitleSaturation = 0.30
	weightReviewStrength  = 0.35
	weightRatingPenalty   = 0.20
	weightFeatureDensity  = 0.15
)

// Market Demand sub-weights (must sum to 1.0).
const (
	weightAutosuggestPriority = 0.40
	weightTrendInterest       = 0.30
	weightCommunityVelocity   = 0.20
	weightSearchResults       = 0.10
)

// Revenue Potential sub-weights (must sum to 1.0).
const (
	weightAvgPrice             = 0.25
	weightIAPPresence          = 0.35
	weightSubscriptionPresence = 0.25
	weightReviewVolume         = 0.15
)

// Trend Momentum sub-weights (must sum to 1.0).
const (
	weightInterestSlope   = 0.50
	weightNewEntrants     = 0.25
	weightCommunityGrowth = 0.25
)

// Execution Feasibility sub-weights (must sum to 1.0). Like competition,
// this measures complexity and is inverted: high total means easy to build.
const (
	weightFeatureComplexity   = 0.40
	weightAPIDependency       = 0.30
	weightHardwareRequirement = 0.30
)

// Normalization ceilings.
const (
	// priorityCeiling is the autosuggest priority mapped to a full
	// demand sub-score. The source reports roughly 0-20000 but values
	// above 15000 are already maximal interest.
	priorityCeiling = 15000.0

	// searchResultCeiling matches the marketplace's hard cap on
	// returned results per query.
	searchResultCeiling = 200.0

	// reviewLogCeiling: review counts are log10-normalized against one
	// million reviews.
	reviewLogCeiling = 6.0

	// avgPriceCeiling is the average up-front price treated as full
	// willingness to pay.
	avgPriceCeiling = 10.0

	// featureCountCeiling is the advertised-feature count treated as a
	// fully saturated feature set.
	featureCountCeiling = 12.0

	// postsPerDayCeiling is the community post velocity treated as
	// maximal discussion activity.
	postsPerDayCeiling = 20.0

	// dependencyTagCeiling is the per-app count of hardware or API
	// tags treated as maximal integration complexity.
	dependencyTagCeiling = 3.0
)

// weightSumTolerance is how far a weight table may drift from 1.0 before
// startup fails.
const weightSumTolerance = 1e-3

// ValidateWeights checks every weight table sums to 1.0. A silently wrong
// table would corrupt every score ever produced, so this is fatal at
// startup rather than a warning.
func ValidateWeights() error {
	tables := map[string]float64{
		"opportunity": WeightCompetitionGap + WeightMarketDemand + WeightRevenuePotential +
			WeightTrendMomentum + WeightExecutionFeasibility,
		"competition_gap": weightTitleSaturation + weightReviewStrength +
			weightRatingPenalty + weightFeatureDensity,
		"market_demand": weightAutosuggestPriority + weightTrendInterest +
			weightCommunityVelocity + weightSearchResults,
		"revenue_potential": weightAvgPrice + weightIAPPresence +
			weightSubscriptionPresence + weightReviewVolume,
		"trend_momentum":        weightInterestSlope + weightNewEntrants + weightCommunityGrowth,
		"execution_feasibility": weightFeatureComplexity + weightAPIDependency + weightHardwareRequirement,
	}

	for name, sum := range tables {
		if math.Abs(sum-1.0) > weightSumTolerance {
			return fmt.Errorf("weight table %q sums to %.4f, want 1.0", name, sum)
		}
	}
	return nil
}

// Overall combines the five dimension totals into the final opportunity
// score, rounded to one decimal.
func Overall(competition, demand, revenue, momentum, feasibility float64) float64 {
	score := competition*WeightCompetitionGap +
		demand*WeightMarketDemand +
		revenue*WeightRevenuePotential +
		momentum*WeightTrendMomentum +
		feasibility*WeightExecutionFeasibility
	return round1(clamp100(score))
}

// clamp100 clamps v to [0, 100].
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
