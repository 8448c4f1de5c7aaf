package cardtrader

import (
	"strings"

	"github.com/cardledger/price-data/internal/model"
)

// Candidate scores. Exact name plus collector number beats exact name,
// which beats a substring match; anything below matchThreshold is a
// catalog gap, not a match.
const (
	scoreExactNameAndNumber = 100
	scoreExactName          = 80
	scoreSubstring          = 50

	matchThreshold = 50
)

// scoreCandidate rates how well a blueprint matches the card identity.
func scoreCandidate(bp apiBlueprint, id model.CardIdentity) int {
	name := normalizeName(bp.Name)
	want := normalizeName(id.Name)
	if want == "" || name == "" {
		return 0
	}

	if name == want {
		num := strings.TrimSpace(bp.FixedProperties.CollectorNumber)
		if num != "" && num == strings.TrimSpace(id.CollectorNumber) {
			return scoreExactNameAndNumber
		}
		return scoreExactName
	}

	if strings.Contains(name, want) || strings.Contains(want, name) {
		return scoreSubstring
	}

	return 0
}

// bestMatch picks the highest-scoring blueprint at or above the threshold.
func bestMatch(bps []apiBlueprint, id model.CardIdentity) (apiBlueprint, bool) {
	var best apiBlueprint
	bestScore := 0

	for _, bp := range bps {
		if s := scoreCandidate(bp, id); s > bestScore {
			best = bp
			bestScore = s
		}
	}

	if bestScore < matchThreshold {
		return apiBlueprint{}, false
	}
	return best, true
}

// normalizeName lowercases and collapses interior whitespace.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
