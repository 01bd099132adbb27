package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/nichescout/nichescout/internal/signals"
)

// CompetitionBreakdown scores how strong the top-of-search field is.
// Total is inverted (100 - weighted strength): a high total means weak
// competition, which is what an operator is hunting for.
type CompetitionBreakdown struct {
	TitleSaturation float64 `json:"title_saturation"`
	ReviewStrength  float64 `json:"review_strength"`
	RatingPenalty   float64 `json:"avg_rating_penalty"`
	FeatureDensity  float64 `json:"feature_density"`
	Total           float64 `json:"total"`
}

// CompetitionGap scores the competitive gap for a keyword from its top-10
// apps. An empty top-10 scores 100: an empty field is the widest gap there
// is, and the snapshot records why.
func CompetitionGap(apps []signals.TopAppData) CompetitionBreakdown {
	b := CompetitionBreakdown{
		TitleSaturation: titleSaturation(apps),
		ReviewStrength:  reviewStrength(apps),
		RatingPenalty:   ratingPenalty(apps),
		FeatureDensity:  featureDensity(apps),
	}

	strength := b.TitleSaturation*weightTitleSaturation +
		b.ReviewStrength*weightReviewStrength +
		b.RatingPenalty*weightRatingPenalty +
		b.FeatureDensity*weightFeatureDensity
	b.Total = round1(clamp100(100 - strength))

	b.TitleSaturation = round1(b.TitleSaturation)
	b.ReviewStrength = round1(b.ReviewStrength)
	b.RatingPenalty = round1(b.RatingPenalty)
	b.FeatureDensity = round1(b.FeatureDensity)
	return b
}

// titleSaturation counts apps with the keyword in their title; each match
// is worth 10 points.
func titleSaturation(apps []signals.TopAppData) float64 {
	matches := 0
	for _, app := range apps {
		if app.TitleMatch {
			matches++
		}
	}
	return math.Min(float64(matches)*10, 100)
}

// reviewStrength is the log10-normalized geometric mean of review counts.
// The geometric mean keeps one outlier app from dominating the average.
// Only positive counts enter the mean; all-zero or empty top-10 scores 0.
func reviewStrength(apps []signals.TopAppData) float64 {
	var positive []float64
	for _, app := range apps {
		if app.ReviewCount > 0 {
			positive = append(positive, float64(app.ReviewCount))
		}
	}
	if len(positive) == 0 {
		return 0
	}

	geomean := stat.GeometricMean(positive, nil)
	return clamp100(math.Log10(geomean+1) / reviewLogCeiling * 100)
}

// ratingPenalty maps the average top-10 rating onto competitive difficulty.
// Below 4.5 stars the penalty ramps 0 to 50; between 4.5 and 4.9 it ramps
// 50 to 100. Above 4.9 the penalty is capped, competitive difficulty is
// already saturated there.
func ratingPenalty(apps []signals.TopAppData) float64 {
	var sum float64
	rated := 0
	for _, app := range apps {
		if app.Rating > 0 {
			sum += app.Rating
			rated++
		}
	}
	if rated == 0 {
		return 0
	}

	avg := sum / float64(rated)
	switch {
	case avg < 4.5:
		return avg / 4.5 * 50
	case avg < 4.9:
		return 50 + (avg-4.5)/0.4*50
	default:
		return 100
	}
}

// featureDensity normalizes the average advertised-feature count.
func featureDensity(apps []signals.TopAppData) float64 {
	if len(apps) == 0 {
		return 0
	}
	var sum float64
	for _, app := range apps {
		sum += float64(app.FeatureCount)
	}
	avg := sum / float64(len(apps))
	return clamp100(avg / featureCountCeiling * 100)
}
