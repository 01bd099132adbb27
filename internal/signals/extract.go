package signals

import (
	"sort"
	"strings"
	"time"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/nichescout/nichescout/internal/clients/appstore"
	"github.com/nichescout/nichescout/internal/clients/community"
	"github.com/nichescout/nichescout/internal/clients/trends"
)

// Only the top page of results is examined; deeper ranks are statistically
// irrelevant to top-of-search competitiveness.
const maxTopApps = 10

// newEntrantWindow is the release-date window for "new entrant" counting.
const newEntrantWindow = 90 * 24 * time.Hour

// hardwareVocab maps a dependency tag to the description keywords that
// reveal it. Matching is lowercase substring, deliberately loose.
var hardwareVocab = map[string][]string{
	"camera":     {"camera", "photo capture", "scanner", "scan documents"},
	"gps":        {"gps", "location tracking", "location-based", "geofenc"},
	"microphone": {"microphone", "voice recording", "voice memo", "speech recognition"},
	"health":     {"healthkit", "heart rate", "apple health", "step count"},
	"nfc":        {"nfc", "contactless"},
	"bluetooth":  {"bluetooth", "ble device", "wearable device"},
	"motion":     {"accelerometer", "gyroscope", "motion tracking", "pedometer"},
}

// apiVocab maps a third-party-service tag to its description keywords.
var apiVocab = map[string][]string{
	"payment":     {"stripe", "paypal", "payment processing", "checkout"},
	"social-auth": {"sign in with apple", "sign in with google", "facebook login", "social login"},
	"cloud-sync":  {"icloud sync", "cloud sync", "cloud backup", "sync across devices"},
	"maps":        {"google maps", "apple maps", "map view", "mapkit"},
	"ai-service":  {"ai-powered", "machine learning", "gpt", "chatbot", "smart suggestions"},
}

// featureVocab lists feature words counted toward an app's feature count,
// on top of bullet-point counting.
var featureVocab = []string{
	"widget", "reminder", "notification", "export", "sync", "dark mode",
	"statistics", "template", "backup", "offline", "share", "customizable",
	"apple watch", "ipad", "siri",
}

var subscriptionKeywords = []string{
	"subscription", "monthly plan", "annual plan", "auto-renew", "premium membership", "free trial",
}

var iapKeywords = []string{
	"in-app purchase", "premium", "unlock all", "upgrade to pro", "one-time purchase",
}

// bulletMarkers are the line prefixes treated as feature bullets.
var bulletMarkers = []string{"•", "- ", "* ", "– ", "✓", "◦"}

// FromSearch extracts the top-app records and category aggregates for one
// keyword from a marketplace search payload. now anchors the new-entrant
// window so extraction stays deterministic in tests.
func FromSearch(keyword string, res *appstore.SearchResult, now time.Time) ([]TopAppData, CategoryData) {
	if res == nil {
		return nil, CategoryData{}
	}

	apps := ExtractTopApps(keyword, res.Results)
	category := ExtractCategory(res.ResultCount, apps, now)
	return apps, category
}

// ExtractTopApps normalizes up to 10 top-ranked search results.
func ExtractTopApps(keyword string, records []appstore.AppRecord) []TopAppData {
	if len(records) > maxTopApps {
		records = records[:maxTopApps]
	}

	keywordLower := strings.ToLower(strings.TrimSpace(keyword))
	apps := make([]TopAppData, 0, len(records))
	for _, rec := range records {
		desc := strings.ToLower(rec.Description)
		hasSub := containsAny(desc, subscriptionKeywords)
		apps = append(apps, TopAppData{
			ID:                rec.TrackID,
			Name:              rec.TrackName,
			Rating:            rec.AverageUserRating,
			ReviewCount:       rec.UserRatingCount,
			Price:             rec.Price,
			Currency:          rec.Currency,
			TitleMatch:        keywordLower != "" && strings.Contains(strings.ToLower(rec.TrackName), keywordLower),
			HasIAP:            hasSub || containsAny(desc, iapKeywords),
			HasSubscription:   hasSub,
			ReleaseDate:       parseReleaseDate(rec.ReleaseDate),
			DescriptionLength: len(rec.Description),
			FeatureCount:      CountFeatures(rec.Description),
			DependencyTags:    DetectDependencies(rec.Description),
		})
	}
	return apps
}

// ExtractCategory aggregates the examined apps into category stats.
func ExtractCategory(totalResults int, apps []TopAppData, now time.Time) CategoryData {
	cat := CategoryData{TotalResults: totalResults}

	var priceSum float64
	cutoff := now.Add(-newEntrantWindow)
	for _, app := range apps {
		priceSum += app.Price
		if app.Price > 0 {
			cat.PaidCount++
		}
		if app.HasIAP {
			cat.IAPCount++
		}
		if app.HasSubscription {
			cat.SubscriptionCount++
		}
		if !app.ReleaseDate.IsZero() && app.ReleaseDate.After(cutoff) {
			cat.NewCount++
		}
	}
	if len(apps) > 0 {
		cat.AvgPrice = priceSum / float64(len(apps))
	}
	return cat
}

// DetectDependencies returns the sorted hardware and API dependency tags
// found in an app description.
func DetectDependencies(description string) []string {
	desc := strings.ToLower(description)
	var tags []string
	for tag, words := range hardwareVocab {
		if containsAny(desc, words) {
			tags = append(tags, tag)
		}
	}
	for tag, words := range apiVocab {
		if containsAny(desc, words) {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// CountFeatures estimates how many features an app advertises: bullet
// points in the description plus distinct feature-vocabulary hits.
func CountFeatures(description string) int {
	count := 0
	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, marker := range bulletMarkers {
			if strings.HasPrefix(trimmed, marker) {
				count++
				break
			}
		}
	}

	desc := strings.ToLower(description)
	for _, word := range featureVocab {
		if strings.Contains(desc, word) {
			count++
		}
	}
	return count
}

// HardwareTags reports which of an app's dependency tags are hardware
// requirements, as opposed to third-party services.
func HardwareTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if _, ok := hardwareVocab[tag]; ok {
			out = append(out, tag)
		}
	}
	return out
}

// APITags reports which of an app's dependency tags are third-party
// service integrations.
func APITags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if _, ok := apiVocab[tag]; ok {
			out = append(out, tag)
		}
	}
	return out
}

// FromTrendSeries computes the trend signal from a 12-month interest
// series. The slope comes from a linear regression over the series,
// normalized by the series mean so a slope of 0.5 means "interest grows
// by half its average level per month", then clamped to [-1, 1].
func FromTrendSeries(series *trends.Series) TrendData {
	if series == nil || len(series.Points) == 0 {
		return TrendData{}
	}

	values := series.Values()
	if len(values) < 2 {
		return TrendData{Interest: values, Available: true}
	}

	slopes := talib.LinearRegSlope(values, len(values))
	slope := slopes[len(slopes)-1]

	mean := stat.Mean(values, nil)
	if mean > 0 {
		slope /= mean
	} else {
		slope = 0
	}
	if slope > 1 {
		slope = 1
	}
	if slope < -1 {
		slope = -1
	}

	return TrendData{Interest: values, Slope: slope, Available: true}
}

// FromCommunityActivity wraps a provider response into the community signal.
func FromCommunityActivity(a *community.Activity) CommunityData {
	if a == nil {
		return CommunityData{}
	}
	return CommunityData{
		PostsPerDay:   a.PostsPerDay,
		AvgEngagement: a.AvgEngagement,
		GrowthRate:    a.GrowthRate,
		Available:     true,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// parseReleaseDate parses the marketplace timestamp format; a zero time
// means the date was missing or unparsable.
func parseReleaseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
