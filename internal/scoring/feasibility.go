package scoring

import (
	"github.com/nichescout/nichescout/internal/signals"
)

// FeasibilityBreakdown scores how hard it would be for a solo operator to
// build a credible competitor. Total is inverted (100 - weighted
// complexity): high total means easy to build.
type FeasibilityBreakdown struct {
	FeatureComplexity   float64 `json:"feature_complexity"`
	APIDependency       float64 `json:"api_dependency"`
	HardwareRequirement float64 `json:"hardware_requirement"`
	Total               float64 `json:"total"`
}

// ExecutionFeasibility scores build complexity from the top-10 apps'
// advertised features and detected hardware/API dependencies. An empty
// top-10 scores 100: nothing observed, nothing to match.
func ExecutionFeasibility(apps []signals.TopAppData) FeasibilityBreakdown {
	b := FeasibilityBreakdown{
		FeatureComplexity:   featureDensity(apps),
		APIDependency:       dependencyLoad(apps, signals.APITags),
		HardwareRequirement: dependencyLoad(apps, signals.HardwareTags),
	}

	complexity := b.FeatureComplexity*weightFeatureComplexity +
		b.APIDependency*weightAPIDependency +
		b.HardwareRequirement*weightHardwareRequirement
	b.Total = round1(clamp100(100 - complexity))

	b.FeatureComplexity = round1(b.FeatureComplexity)
	b.APIDependency = round1(b.APIDependency)
	b.HardwareRequirement = round1(b.HardwareRequirement)
	return b
}

// dependencyLoad normalizes the average per-app count of one dependency
// class (hardware or API) against the tag ceiling.
func dependencyLoad(apps []signals.TopAppData, classify func([]string) []string) float64 {
	if len(apps) == 0 {
		return 0
	}
	var sum float64
	for _, app := range apps {
		sum += float64(len(classify(app.DependencyTags)))
	}
	avg := sum / float64(len(apps))
	return clamp100(avg / dependencyTagCeiling * 100)
}
