package scoring

import (
	"github.com/nichescout/nichescout/internal/signals"
)

// MomentumBreakdown scores whether the niche is growing or dying.
type MomentumBreakdown struct {
	InterestSlope   float64 `json:"interest_slope"`
	NewEntrants     float64 `json:"new_entrants"`
	CommunityGrowth float64 `json:"community_growth"`
	Total           float64 `json:"total"`
}

// TrendMomentum scores market direction from the interest slope, the share
// of recently released competitors, and community growth. Missing trend or
// community data defaults to the neutral 50.
func TrendMomentum(trend signals.TrendData, cat signals.CategoryData, comm signals.CommunityData, examined int) MomentumBreakdown {
	b := MomentumBreakdown{
		InterestSlope:   slopeSubScore(trend),
		NewEntrants:     newEntrants(cat, examined),
		CommunityGrowth: communityGrowth(comm),
	}

	total := b.InterestSlope*weightInterestSlope +
		b.NewEntrants*weightNewEntrants +
		b.CommunityGrowth*weightCommunityGrowth
	b.Total = round1(clamp100(total))

	b.InterestSlope = round1(b.InterestSlope)
	b.NewEntrants = round1(b.NewEntrants)
	b.CommunityGrowth = round1(b.CommunityGrowth)
	return b
}

// slopeSubScore maps the normalized interest slope across six bands, from
// rapidly declining to hot. The mapping is deliberately non-linear: a
// market sliding from "merely stable" into "dying" matters far more than
// the same slope delta inside the stable band.
//
//	slope <= -0.5          rapidly declining   0-20
//	-0.5 < slope <= -0.1   declining          20-40
//	-0.1 < slope <  0.1    stable             40-60
//	 0.1 <= slope < 0.3    growing            60-75
//	 0.3 <= slope <= 0.5   strong growth      75-85
//	 slope > 0.5           hot                85-100
func slopeSubScore(trend signals.TrendData) float64 {
	if !trend.Available {
		return 50
	}

	s := trend.Slope
	switch {
	case s <= -0.5:
		return clamp100((s + 1) / 0.5 * 20)
	case s <= -0.1:
		return 20 + (s+0.5)/0.4*20
	case s < 0.1:
		return 40 + (s+0.1)/0.2*20
	case s < 0.3:
		return 60 + (s-0.1)/0.2*15
	case s <= 0.5:
		return 75 + (s-0.3)/0.2*10
	default:
		return clamp100(85 + (s-0.5)/0.5*15)
	}
}

// newEntrants scores the share of examined top apps released in the last
// 90 days. Half the field being new is already maximal heat.
func newEntrants(cat signals.CategoryData, examined int) float64 {
	if examined == 0 {
		return 50
	}
	ratio := float64(cat.NewCount) / float64(examined)
	return clamp100(ratio * 200)
}

// communityGrowth maps the provider's growth rate (fractional, signed)
// around the neutral 50; +20% discussion growth saturates the sub-score.
func communityGrowth(comm signals.CommunityData) float64 {
	if !comm.Available {
		return 50
	}
	return clamp100(50 + comm.GrowthRate*250)
}
