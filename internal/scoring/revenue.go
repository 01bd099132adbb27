package scoring

import (
	"math"

	"github.com/nichescout/nichescout/internal/signals"
)

// RevenueBreakdown scores how much money the niche's existing apps appear
// to make, as a proxy for what a newcomer could earn.
type RevenueBreakdown struct {
	AvgPrice             float64 `json:"avg_price"`
	IAPPresence          float64 `json:"iap_presence"`
	SubscriptionPresence float64 `json:"subscription_presence"`
	ReviewVolume         float64 `json:"review_volume"`
	Total                float64 `json:"total"`
}

// RevenuePotential scores monetization signals from the category aggregates
// and the top-10 apps. An empty top-10 scores near zero: with no apps there
// is no monetization evidence at all.
func RevenuePotential(cat signals.CategoryData, apps []signals.TopAppData) RevenueBreakdown {
	b := RevenueBreakdown{
		AvgPrice:             clamp100(cat.AvgPrice / avgPriceCeiling * 100),
		IAPPresence:          presenceRatio(cat.IAPCount, len(apps)) * 100,
		SubscriptionPresence: subscriptionCurve(presenceRatio(cat.SubscriptionCount, len(apps))),
		ReviewVolume:         reviewVolume(apps),
	}

	total := b.AvgPrice*weightAvgPrice +
		b.IAPPresence*weightIAPPresence +
		b.SubscriptionPresence*weightSubscriptionPresence +
		b.ReviewVolume*weightReviewVolume
	b.Total = round1(clamp100(total))

	b.AvgPrice = round1(b.AvgPrice)
	b.IAPPresence = round1(b.IAPPresence)
	b.SubscriptionPresence = round1(b.SubscriptionPresence)
	b.ReviewVolume = round1(b.ReviewVolume)
	return b
}

// subscriptionCurve maps the subscription presence ratio non-linearly. The
// first 30% of competitors adopting subscriptions contributes most of the
// score (0 to 60): even modest adoption validates recurring revenue in the
// niche. From 30% to 50% the score climbs 60 to 100, and beyond 50% it
// stays saturated.
func subscriptionCurve(ratio float64) float64 {
	switch {
	case ratio <= 0.3:
		return ratio / 0.3 * 60
	case ratio <= 0.5:
		return 60 + (ratio-0.3)/0.2*40
	default:
		return 100
	}
}

// reviewVolume is a log10-normalized average review count, a coarse proxy
// for how many paying users the niche supports.
func reviewVolume(apps []signals.TopAppData) float64 {
	if len(apps) == 0 {
		return 0
	}
	var sum float64
	for _, app := range apps {
		sum += float64(app.ReviewCount)
	}
	avg := sum / float64(len(apps))
	return clamp100(math.Log10(avg+1) / reviewLogCeiling * 100)
}

func presenceRatio(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}
