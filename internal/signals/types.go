// Package signals turns raw upstream payloads into the typed per-app and
// per-keyword records the dimension calculators consume. Extraction is pure;
// every function here takes a payload and returns a value, no I/O.
package signals

import "time"

// AutosuggestHint is one autosuggest completion as seen by the expansion
// engine: term, source-reported priority (roughly 0-20000) and 1-based rank
// in the hint list.
type AutosuggestHint struct {
	Term     string `json:"term"`
	Priority int    `json:"priority"`
	Position int    `json:"position"`
}

// TopAppData is one top-ranked marketplace result's normalized signal record.
type TopAppData struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Rating            float64   `json:"rating"`
	ReviewCount       int64     `json:"review_count"`
	Price             float64   `json:"price"`
	Currency          string    `json:"currency"`
	TitleMatch        bool      `json:"title_match"`
	HasIAP            bool      `json:"has_iap"`
	HasSubscription   bool      `json:"has_subscription"`
	ReleaseDate       time.Time `json:"release_date"`
	DescriptionLength int       `json:"description_length"`
	FeatureCount      int       `json:"feature_count"`
	DependencyTags    []string  `json:"dependency_tags"`
}

// CategoryData aggregates the examined results for one keyword.
type CategoryData struct {
	TotalResults      int     `json:"total_results"`
	AvgPrice          float64 `json:"avg_price"`
	PaidCount         int     `json:"paid_count"`
	IAPCount          int     `json:"iap_count"`
	SubscriptionCount int     `json:"subscription_count"`
	NewCount          int     `json:"new_count"` // released within the last 90 days
}

// AutosuggestData is the demand signal for the scored keyword itself.
// Priority 0 with Available false means the source gave nothing.
type AutosuggestData struct {
	Priority  int  `json:"priority"`
	Position  int  `json:"position"`
	Available bool `json:"available"`
}

// TrendData is a 12-month interest series with its normalized slope.
// Slope is expressed as fraction-of-mean per month, clamped to [-1, 1].
type TrendData struct {
	Interest  []float64 `json:"interest"`
	Slope     float64   `json:"slope"`
	Available bool      `json:"available"`
}

// CommunityData is the discussion-activity signal for a keyword.
type CommunityData struct {
	PostsPerDay   float64 `json:"posts_per_day"`
	AvgEngagement float64 `json:"avg_engagement"`
	GrowthRate    float64 `json:"growth_rate"`
	Available     bool    `json:"available"`
}

// RawSignalSnapshot is the immutable evidence bundle captured at scoring
// time and retained alongside the score for auditability. It is created
// once per scoring call and never mutated afterwards.
type RawSignalSnapshot struct {
	TotalResults int               `json:"total_results"`
	TopApps      []TopAppData      `json:"top_apps"` // at most 10
	Category     CategoryData      `json:"category"`
	Autosuggest  AutosuggestData   `json:"autosuggest"`
	Trend        TrendData         `json:"trend"`
	Community    CommunityData     `json:"community"`
	Hints        []AutosuggestHint `json:"hints,omitempty"`
}
