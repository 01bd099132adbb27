package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichescout/nichescout/internal/signals"
)

func TestValidateWeights(t *testing.T) {
	require.NoError(t, ValidateWeights())
}

func TestOverallWeighting(t *testing.T) {
	// All dimensions at 100 combine to 100; all at 0 to 0.
	assert.Equal(t, 100.0, Overall(100, 100, 100, 100, 100))
	assert.Equal(t, 0.0, Overall(0, 0, 0, 0, 0))

	// Only competition at 100: exactly its top-level weight.
	assert.Equal(t, 30.0, Overall(100, 0, 0, 0, 0))
}

func TestTitleSaturationFourMatches(t *testing.T) {
	apps := make([]signals.TopAppData, 10)
	for i := 0; i < 4; i++ {
		apps[i].TitleMatch = true
	}

	b := CompetitionGap(apps)
	assert.Equal(t, 40.0, b.TitleSaturation)
}

func TestReviewStrengthAllZeroReviews(t *testing.T) {
	apps := make([]signals.TopAppData, 10)

	b := CompetitionGap(apps)
	assert.Equal(t, 0.0, b.ReviewStrength, "geometric mean over an all-zero field is defined as 0")
}

func TestReviewStrengthResistsOutliers(t *testing.T) {
	modest := []signals.TopAppData{
		{ReviewCount: 100}, {ReviewCount: 100}, {ReviewCount: 100},
	}
	withOutlier := []signals.TopAppData{
		{ReviewCount: 100}, {ReviewCount: 100}, {ReviewCount: 1000000},
	}

	a := CompetitionGap(modest).ReviewStrength
	b := CompetitionGap(withOutlier).ReviewStrength

	assert.Greater(t, b, a)
	assert.Less(t, b-a, 30.0, "one outlier must not dominate the mean")
}

func TestRatingPenaltyBands(t *testing.T) {
	penaltyFor := func(rating float64) float64 {
		return CompetitionGap([]signals.TopAppData{{Rating: rating}}).RatingPenalty
	}

	assert.Equal(t, 50.0, penaltyFor(4.5))
	assert.Equal(t, 100.0, penaltyFor(4.95), "penalty saturates above 4.9")
	assert.Less(t, penaltyFor(3.8), 50.0)
	assert.Greater(t, penaltyFor(4.7), 50.0)
}

func TestRatingPenaltyMonotonicPastThreshold(t *testing.T) {
	prev := -1.0
	for rating := 4.5; rating <= 5.0; rating += 0.05 {
		p := CompetitionGap([]signals.TopAppData{{Rating: rating}}).RatingPenalty
		assert.GreaterOrEqual(t, p, prev, "penalty must never decrease as ratings climb past 4.5")
		prev = p
	}
}

func TestCompetitionGapEmptyFieldScoresHundred(t *testing.T) {
	b := CompetitionGap(nil)
	assert.Equal(t, 100.0, b.Total, "no competitors is the widest possible gap")
}

func TestAutosuggestPriorityCeiling(t *testing.T) {
	b := MarketDemand(signals.AutosuggestData{Priority: 15000, Available: true},
		signals.TrendData{}, signals.CommunityData{}, 0)
	assert.Equal(t, 100.0, b.AutosuggestPriority)
}

func TestAutosuggestPriorityMonotonic(t *testing.T) {
	prev := -1.0
	for p := 0; p <= 20000; p += 500 {
		b := MarketDemand(signals.AutosuggestData{Priority: p, Available: true},
			signals.TrendData{}, signals.CommunityData{}, 0)
		assert.GreaterOrEqual(t, b.AutosuggestPriority, prev)
		prev = b.AutosuggestPriority
	}
}

func TestDemandDefaultsWhenSourcesMissing(t *testing.T) {
	b := MarketDemand(signals.AutosuggestData{}, signals.TrendData{}, signals.CommunityData{}, 0)

	assert.Equal(t, 0.0, b.AutosuggestPriority, "absence from the suggestion index means no demand")
	assert.Equal(t, 50.0, b.TrendInterest)
	assert.Equal(t, 50.0, b.CommunityVelocity)
	assert.Equal(t, 0.0, b.SearchResults)
}

func TestSearchResultsCap(t *testing.T) {
	b := MarketDemand(signals.AutosuggestData{}, signals.TrendData{}, signals.CommunityData{}, 200)
	assert.Equal(t, 100.0, b.SearchResults)

	b = MarketDemand(signals.AutosuggestData{}, signals.TrendData{}, signals.CommunityData{}, 50)
	assert.Equal(t, 25.0, b.SearchResults)
}

func TestSubscriptionCurveBoundary(t *testing.T) {
	// 3 of 10 apps with subscriptions: exactly the curve's knee.
	apps := make([]signals.TopAppData, 10)
	cat := signals.CategoryData{SubscriptionCount: 3}

	b := RevenuePotential(cat, apps)
	assert.Equal(t, 60.0, b.SubscriptionPresence)
}

func TestSubscriptionCurveShape(t *testing.T) {
	curveAt := func(subs int) float64 {
		apps := make([]signals.TopAppData, 10)
		return RevenuePotential(signals.CategoryData{SubscriptionCount: subs}, apps).SubscriptionPresence
	}

	assert.Equal(t, 0.0, curveAt(0))
	assert.Equal(t, 20.0, curveAt(1), "early adoption is worth disproportionately much")
	assert.Equal(t, 100.0, curveAt(5))
	assert.Equal(t, 100.0, curveAt(8), "beyond 50% the curve saturates")
}

func TestRevenueEmptyField(t *testing.T) {
	b := RevenuePotential(signals.CategoryData{}, nil)
	assert.Equal(t, 0.0, b.Total, "no apps means no monetization evidence")
}

func TestSlopeBands(t *testing.T) {
	scoreAt := func(slope float64) float64 {
		return TrendMomentum(signals.TrendData{Slope: slope, Available: true},
			signals.CategoryData{}, signals.CommunityData{}, 0).InterestSlope
	}

	assert.LessOrEqual(t, scoreAt(-0.8), 20.0)
	assert.InDelta(t, 20.0, scoreAt(-0.5), 0.1)
	assert.InDelta(t, 50.0, scoreAt(0), 0.1, "flat slope sits mid-band")
	assert.InDelta(t, 60.0, scoreAt(0.1), 0.1)
	assert.GreaterOrEqual(t, scoreAt(0.8), 85.0)
	assert.Equal(t, 100.0, scoreAt(1.0))
}

func TestSlopeBandsMonotonic(t *testing.T) {
	prev := -1.0
	for s := -1.0; s <= 1.0; s += 0.05 {
		v := TrendMomentum(signals.TrendData{Slope: s, Available: true},
			signals.CategoryData{}, signals.CommunityData{}, 0).InterestSlope
		assert.GreaterOrEqual(t, v, prev, "slope score must be monotonic in the slope")
		prev = v
	}
}

func TestMomentumDefaults(t *testing.T) {
	b := TrendMomentum(signals.TrendData{}, signals.CategoryData{}, signals.CommunityData{}, 0)

	assert.Equal(t, 50.0, b.InterestSlope)
	assert.Equal(t, 50.0, b.NewEntrants)
	assert.Equal(t, 50.0, b.CommunityGrowth)
	assert.Equal(t, 50.0, b.Total)
}

func TestFeasibilityHeavyDependencies(t *testing.T) {
	simple := []signals.TopAppData{{FeatureCount: 2}}
	heavy := []signals.TopAppData{{
		FeatureCount:   14,
		DependencyTags: []string{"camera", "gps", "health", "payment", "cloud-sync", "ai-service"},
	}}

	assert.Greater(t, ExecutionFeasibility(simple).Total, ExecutionFeasibility(heavy).Total,
		"a dependency-heavy field must be harder to enter")
}

func TestAllBreakdownsInRange(t *testing.T) {
	apps := []signals.TopAppData{
		{Rating: 4.9, ReviewCount: 2000000, Price: 49.99, TitleMatch: true, FeatureCount: 40,
			HasIAP: true, HasSubscription: true,
			DependencyTags: []string{"camera", "gps", "health", "payment", "maps", "ai-service"}},
	}
	cat := signals.CategoryData{TotalResults: 100000, AvgPrice: 49.99, IAPCount: 1, SubscriptionCount: 1, NewCount: 1}

	inRange := func(vals ...float64) {
		t.Helper()
		for _, v := range vals {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}

	c := CompetitionGap(apps)
	inRange(c.TitleSaturation, c.ReviewStrength, c.RatingPenalty, c.FeatureDensity, c.Total)

	d := MarketDemand(signals.AutosuggestData{Priority: 99999, Available: true},
		signals.TrendData{Slope: 5, Available: true, Interest: []float64{500}},
		signals.CommunityData{PostsPerDay: 1000, GrowthRate: 9, Available: true}, 100000)
	inRange(d.AutosuggestPriority, d.TrendInterest, d.CommunityVelocity, d.SearchResults, d.Total)

	r := RevenuePotential(cat, apps)
	inRange(r.AvgPrice, r.IAPPresence, r.SubscriptionPresence, r.ReviewVolume, r.Total)

	m := TrendMomentum(signals.TrendData{Slope: 5, Available: true}, cat,
		signals.CommunityData{GrowthRate: 9, Available: true}, 1)
	inRange(m.InterestSlope, m.NewEntrants, m.CommunityGrowth, m.Total)

	f := ExecutionFeasibility(apps)
	inRange(f.FeatureComplexity, f.APIDependency, f.HardwareRequirement, f.Total)
}
