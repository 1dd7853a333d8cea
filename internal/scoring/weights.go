package scoring

// baselineWeights holds the default weight for each of the 20 signals,
// keyed by signal name. Weights need not sum to 1 before the intent
// profile and renormalization step; HeuristicAggregate divides by the
// sum of applied weights regardless.
var baselineWeights = map[string]float64{
	"ci_status":           0.15,
	"diff_size":           0.07,
	"commit_quality":      0.04,
	"contributor":         0.12,
	"issue_ref":           0.07,
	"spam":                0.12,
	"test_coverage":       0.12,
	"staleness":           0.07,
	"mergeability":        0.12,
	"review_status":       0.08,
	"body_quality":        0.04,
	"activity":            0.04,
	"breaking_change":     0.04,
	"draft_status":        0.08,
	"milestone":           0.07,
	"label_priority":      0.05,
	"codeowners":          0.10,
	"requested_reviewers": 0.05,
	"scope_coherence":     0.05,
	"complexity":          0.05,
	"intent":              0.09,
}

// intentProfiles multiplies the baseline weight of named signals by a
// factor when the item's classified intent matches. Signals not listed
// for a given intent keep their baseline weight.
var intentProfiles = map[string]map[string]float64{
	"bugfix": {
		"ci_status":     1.4,
		"test_coverage": 1.4,
	},
	"docs": {
		"ci_status":     0.5,
		"test_coverage": 0.5,
	},
	"dependency": {
		"ci_status": 1.4,
		"diff_size": 0.5,
	},
	"refactor": {
		"test_coverage":   1.4,
		"breaking_change": 1.4,
	},
	"chore": {
		"ci_status": 1.2,
	},
	"feature": {
		"body_quality":    1.4,
		"scope_coherence": 1.4,
	},
}

// weightsForIntent returns the per-signal weight map for the given
// intent, with the profile's multipliers applied and the result
// renormalized so the weights sum to 1.
func weightsForIntent(intent string) map[string]float64 {
	profile := intentProfiles[intent]

	adjusted := make(map[string]float64, len(baselineWeights))
	var total float64
	for name, w := range baselineWeights {
		if mult, ok := profile[name]; ok {
			w *= mult
		}
		adjusted[name] = w
		total += w
	}

	if total == 0 {
		return adjusted
	}
	for name, w := range adjusted {
		adjusted[name] = w / total
	}
	return adjusted
}
