// Package opportunity orchestrates a full scoring call: fetch the three
// upstream signal groups in parallel, extract typed signals, run the five
// dimension calculators, and combine them into one explained score.
package opportunity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nichescout/nichescout/internal/scoring"
	"github.com/nichescout/nichescout/internal/signals"
)

// ScoreResult is one keyword's complete scoring outcome. Constructed once
// per scoring call and immutable afterwards; persistence gets a copy.
type ScoreResult struct {
	ID       string `json:"id"`
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Country  string `json:"country"`

	OpportunityScore float64 `json:"opportunity_score"`

	Competition scoring.CompetitionBreakdown `json:"competition_gap"`
	Demand      scoring.DemandBreakdown      `json:"market_demand"`
	Revenue     scoring.RevenueBreakdown     `json:"revenue_potential"`
	Momentum    scoring.MomentumBreakdown    `json:"trend_momentum"`
	Feasibility scoring.FeasibilityBreakdown `json:"execution_feasibility"`

	Rationale      string   `json:"rationale"`
	Weaknesses     []string `json:"competitor_weaknesses"`
	Differentiator string   `json:"suggested_differentiator"`

	Snapshot signals.RawSignalSnapshot `json:"snapshot"`
	ScoredAt time.Time                 `json:"scored_at"`
}

// dimension pairs a display name with its total for rationale ranking.
type dimension struct {
	name  string
	score float64
}

const (
	strengthFloor = 60.0
	watchOutCeil  = 40.0
	maxWeaknesses = 5
)

// synthesizeRationale ranks the five dimensions, surfaces the top two as
// strengths when they clear the floor, flags weak dimensions, and appends
// a monetization suggestion and a trend-direction comment. Deterministic
// rule evaluation, not free text.
func synthesizeRationale(r *ScoreResult) string {
	dims := []dimension{
		{"competition gap", r.Competition.Total},
		{"market demand", r.Demand.Total},
		{"revenue potential", r.Revenue.Total},
		{"trend momentum", r.Momentum.Total},
		{"execution feasibility", r.Feasibility.Total},
	}
	sort.SliceStable(dims, func(i, j int) bool { return dims[i].score > dims[j].score })

	var parts []string

	var strengths []string
	for _, d := range dims[:2] {
		if d.score >= strengthFloor {
			strengths = append(strengths, fmt.Sprintf("%s (%.1f)", d.name, d.score))
		}
	}
	if len(strengths) > 0 {
		parts = append(parts, "Strengths: "+strings.Join(strengths, ", ")+".")
	} else {
		parts = append(parts, "No dimension stands out as a clear strength.")
	}

	var watchOuts []string
	for _, d := range dims {
		if d.score < watchOutCeil {
			watchOuts = append(watchOuts, fmt.Sprintf("%s (%.1f)", d.name, d.score))
		}
	}
	if len(watchOuts) > 0 {
		parts = append(parts, "Watch out for "+strings.Join(watchOuts, ", ")+".")
	}

	parts = append(parts, monetizationSuggestion(r.Snapshot))
	parts = append(parts, trendComment(r.Snapshot.Trend))

	return strings.Join(parts, " ")
}

// monetizationSuggestion reads the category's monetization mix.
func monetizationSuggestion(snap signals.RawSignalSnapshot) string {
	examined := len(snap.TopApps)
	if examined == 0 {
		return "No competitor monetization data; pricing is an open question."
	}

	subRatio := float64(snap.Category.SubscriptionCount) / float64(examined)
	iapRatio := float64(snap.Category.IAPCount) / float64(examined)
	switch {
	case subRatio >= 0.5:
		return "Subscriptions dominate this niche; recurring pricing is validated."
	case subRatio >= 0.3:
		return "Subscription adoption is growing here; a recurring tier is worth testing."
	case iapRatio >= 0.5:
		return "Competitors monetize through in-app purchases; consider a freemium model."
	case snap.Category.AvgPrice > 0:
		return fmt.Sprintf("Up-front pricing around $%.2f is the norm here.", snap.Category.AvgPrice)
	default:
		return "The field is mostly free; monetization is unproven in this niche."
	}
}

// trendComment translates the slope band into one sentence.
func trendComment(trend signals.TrendData) string {
	if !trend.Available {
		return "No trend data available for this keyword."
	}
	switch s := trend.Slope; {
	case s <= -0.5:
		return "Search interest is declining rapidly."
	case s <= -0.1:
		return "Search interest is declining."
	case s < 0.1:
		return "Search interest is stable."
	case s < 0.3:
		return "Search interest is growing."
	case s <= 0.5:
		return "Search interest is growing strongly."
	default:
		return "Search interest is surging."
	}
}

// deriveWeaknesses evaluates heuristic rules over the snapshot and returns
// up to 5 competitor-weakness observations plus one suggested
// differentiator. The first matching rule supplies the differentiator.
func deriveWeaknesses(snap signals.RawSignalSnapshot) ([]string, string) {
	examined := len(snap.TopApps)
	if examined == 0 {
		return nil, "Be first: no established competitors rank for this keyword."
	}

	var weaknesses []string
	var differentiator string
	note := func(weakness, diff string) {
		if len(weaknesses) < maxWeaknesses {
			weaknesses = append(weaknesses, weakness)
		}
		if differentiator == "" {
			differentiator = diff
		}
	}

	var ratingSum float64
	rated, hardware, featureHeavy := 0, 0, 0
	var reviewSum float64
	for _, app := range snap.TopApps {
		if app.Rating > 0 {
			ratingSum += app.Rating
			rated++
		}
		if len(signals.HardwareTags(app.DependencyTags)) > 0 {
			hardware++
		}
		if app.FeatureCount >= 10 {
			featureHeavy++
		}
		reviewSum += float64(app.ReviewCount)
	}

	if rated > 0 {
		if avg := ratingSum / float64(rated); avg < 4.5 {
			note(fmt.Sprintf("Average competitor rating is %.1f, below the 4.5 quality bar.", avg),
				"Win on quality: the field leaves room for a better-rated app.")
		}
	}

	if float64(hardware)/float64(examined) < 0.3 {
		note("Few competitors integrate device hardware (watch, sensors, camera).",
			"Differentiate with a companion-device or sensor-driven experience.")
	}

	if snap.Category.SubscriptionCount == examined && examined > 1 {
		note("Every ranked competitor is subscription-only.",
			"Offer a one-time purchase to capture subscription-fatigued users.")
	}

	if float64(featureHeavy)/float64(examined) >= 0.5 {
		note("Top apps are feature-heavy and likely overwhelming for new users.",
			"Ship a focused, simpler alternative to the bloated incumbents.")
	}

	if avgReviews := reviewSum / float64(examined); avgReviews > 0 && avgReviews < 5000 {
		note(fmt.Sprintf("Moderate review volume (avg %.0f) suggests shallow user loyalty.", avgReviews),
			"Invest in retention; incumbents have not locked in their users.")
	}

	if differentiator == "" {
		differentiator = "No obvious gap; differentiation must come from execution quality."
	}
	return weaknesses, differentiator
}
