package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Marketplace search results shift slowly; a day of staleness is acceptable
	// for niche research (the default TTL across the engine).
	TTLSearch = 24 * time.Hour

	// Autosuggest hints are the most volatile signal we consume.
	TTLHints = 6 * time.Hour

	// Trend series are monthly-granularity; refreshing daily is already generous.
	TTLTrends = 24 * time.Hour

	// Community activity stats
	TTLCommunity = 12 * time.Hour
)
