package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichescout/nichescout/internal/clients/appstore"
	"github.com/nichescout/nichescout/internal/clients/community"
	"github.com/nichescout/nichescout/internal/clients/trends"
)

func TestExtractTopAppsNormalizesRecords(t *testing.T) {
	records := []appstore.AppRecord{
		{
			TrackID:           10,
			TrackName:         "Habit Tracker Pro",
			AverageUserRating: 4.7,
			UserRatingCount:   8200,
			Price:             4.99,
			Currency:          "USD",
			ReleaseDate:       "2024-11-02T08:00:00Z",
			Description:       "Build habits.\n• Streaks\n• Widget support\nUnlock all stats with premium subscription and iCloud sync.",
		},
		{
			TrackID:     11,
			TrackName:   "Focus Timer",
			Price:       0,
			Description: "A simple timer.",
		},
	}

	apps := ExtractTopApps("habit tracker", records)

	require.Len(t, apps, 2)
	first := apps[0]
	assert.True(t, first.TitleMatch)
	assert.True(t, first.HasSubscription)
	assert.True(t, first.HasIAP, "subscription implies in-app purchasing")
	assert.Equal(t, time.Date(2024, 11, 2, 8, 0, 0, 0, time.UTC), first.ReleaseDate)
	assert.Contains(t, first.DependencyTags, "cloud-sync")
	assert.GreaterOrEqual(t, first.FeatureCount, 3, "two bullets plus vocabulary hits")

	second := apps[1]
	assert.False(t, second.TitleMatch)
	assert.False(t, second.HasIAP)
	assert.Empty(t, second.DependencyTags)
}

func TestExtractTopAppsCapsAtTen(t *testing.T) {
	records := make([]appstore.AppRecord, 25)
	for i := range records {
		records[i] = appstore.AppRecord{TrackID: int64(i), TrackName: "App"}
	}

	apps := ExtractTopApps("x", records)
	assert.Len(t, apps, 10)
}

func TestExtractCategoryAggregates(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	apps := []TopAppData{
		{Price: 2.99, HasIAP: true, HasSubscription: true, ReleaseDate: now.Add(-30 * 24 * time.Hour)},
		{Price: 0, HasIAP: true, ReleaseDate: now.Add(-200 * 24 * time.Hour)},
		{Price: 1.99},
	}

	cat := ExtractCategory(143, apps, now)

	assert.Equal(t, 143, cat.TotalResults)
	assert.InDelta(t, (2.99+1.99)/3, cat.AvgPrice, 1e-9)
	assert.Equal(t, 2, cat.PaidCount)
	assert.Equal(t, 2, cat.IAPCount)
	assert.Equal(t, 1, cat.SubscriptionCount)
	assert.Equal(t, 1, cat.NewCount)
}

func TestDetectDependenciesSortedAndDistinct(t *testing.T) {
	desc := "Scan documents with your camera, track runs with GPS location tracking, " +
		"pay with Stripe, and sync across devices with iCloud sync. Camera filters included."

	tags := DetectDependencies(desc)

	assert.Equal(t, []string{"camera", "cloud-sync", "gps", "payment"}, tags)
	assert.Equal(t, []string{"camera", "gps"}, HardwareTags(tags))
	assert.Equal(t, []string{"cloud-sync", "payment"}, APITags(tags))
}

func TestCountFeaturesBulletsAndVocabulary(t *testing.T) {
	desc := "The best planner.\n• Daily view\n- Weekly view\n* Monthly view\nIncludes a widget and dark mode."

	// Three bullets plus two vocabulary hits.
	assert.Equal(t, 5, CountFeatures(desc))
	assert.Equal(t, 0, CountFeatures("Just a plain paragraph."))
}

func TestFromTrendSeriesRisingSlope(t *testing.T) {
	series := &trends.Series{
		Keyword: "habit tracker",
		Points: []trends.InterestPoint{
			{Month: "2025-09", Value: 10}, {Month: "2025-10", Value: 20},
			{Month: "2025-11", Value: 30}, {Month: "2025-12", Value: 40},
			{Month: "2026-01", Value: 50}, {Month: "2026-02", Value: 60},
		},
	}

	data := FromTrendSeries(series)

	require.True(t, data.Available)
	// Slope 10/month over a mean of 35 is ~0.286 of the mean per month.
	assert.InDelta(t, 10.0/35.0, data.Slope, 1e-6)
}

func TestFromTrendSeriesClampsExtremes(t *testing.T) {
	series := &trends.Series{
		Points: []trends.InterestPoint{
			{Value: 1}, {Value: 1}, {Value: 1}, {Value: 100},
		},
	}

	data := FromTrendSeries(series)
	assert.LessOrEqual(t, data.Slope, 1.0)
	assert.GreaterOrEqual(t, data.Slope, -1.0)
}

func TestFromTrendSeriesMissing(t *testing.T) {
	assert.False(t, FromTrendSeries(nil).Available)
	assert.False(t, FromTrendSeries(&trends.Series{}).Available)
}

func TestFromCommunityActivity(t *testing.T) {
	data := FromCommunityActivity(&community.Activity{PostsPerDay: 4.2, AvgEngagement: 18, GrowthRate: 0.12})
	require.True(t, data.Available)
	assert.Equal(t, 4.2, data.PostsPerDay)

	assert.False(t, FromCommunityActivity(nil).Available)
}
