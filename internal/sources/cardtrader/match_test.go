package cardtrader

import (
	"testing"

	"github.com/cardledger/price-data/internal/model"
)

func bp(id int, name, number string) apiBlueprint {
	b := apiBlueprint{ID: id, Name: name}
	b.FixedProperties.CollectorNumber = number
	return b
}

func TestScoreCandidate(t *testing.T) {
	id := model.CardIdentity{Name: "Lightning Bolt", CollectorNumber: "161"}

	tests := []struct {
		name string
		bp   apiBlueprint
		want int
	}{
		{"exact name and number", bp(1, "Lightning Bolt", "161"), scoreExactNameAndNumber},
		{"exact name wrong number", bp(2, "Lightning Bolt", "162"), scoreExactName},
		{"exact name no number", bp(3, "Lightning Bolt", ""), scoreExactName},
		{"case and spacing ignored", bp(4, "  lightning   BOLT ", "161"), scoreExactNameAndNumber},
		{"substring", bp(5, "Lightning Bolt (Borderless)", ""), scoreSubstring},
		{"unrelated", bp(6, "Shivan Dragon", "161"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreCandidate(tt.bp, id); got != tt.want {
				t.Errorf("scoreCandidate(%q) = %d, want %d", tt.bp.Name, got, tt.want)
			}
		})
	}
}

func TestBestMatch_PicksHighestScore(t *testing.T) {
	id := model.CardIdentity{Name: "Lightning Bolt", CollectorNumber: "161"}
	bps := []apiBlueprint{
		bp(1, "Lightning Bolt (Borderless)", ""),
		bp(2, "Lightning Bolt", "162"),
		bp(3, "Lightning Bolt", "161"),
	}

	best, ok := bestMatch(bps, id)
	if !ok {
		t.Fatal("bestMatch() ok = false, want true")
	}
	if best.ID != 3 {
		t.Errorf("bestMatch() ID = %d, want 3", best.ID)
	}
}

func TestBestMatch_BelowThresholdIsNotFound(t *testing.T) {
	id := model.CardIdentity{Name: "Black Lotus"}
	bps := []apiBlueprint{
		bp(1, "Shivan Dragon", ""),
		bp(2, "Giant Growth", ""),
	}

	if _, ok := bestMatch(bps, id); ok {
		t.Error("bestMatch() ok = true for unrelated candidates, want false")
	}
}

func TestBestMatch_EmptyCatalog(t *testing.T) {
	if _, ok := bestMatch(nil, model.CardIdentity{Name: "X"}); ok {
		t.Error("bestMatch() ok = true on empty catalog, want false")
	}
}
