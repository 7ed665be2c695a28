// Package classify decides whether an extracted expense is a simple
// equal-split item or a complex custom-split item.
//
// The decision is a pure function of the item's hint phrases and is binding
// for the rest of the pipeline: simple items take the assembler's standard
// equal-split path, complex items go through hint-phrase parsing (or the
// legacy model pass).
package classify

import (
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// Kind is the split classification of one item.
type Kind int

const (
	// Simple items are split equally among all room members.
	Simple Kind = iota
	// Complex items need a custom split derived from their hint phrases.
	Complex
)

func (k Kind) String() string {
	if k == Complex {
		return "complex"
	}
	return "simple"
}

// complexMarkers are the textual cues that a phrase describes a non-equal
// split: debt handoff arrows, payment/exclusion/multiplier/per-person wording.
var complexMarkers = []string{
	"→", "->",
	"지불", "결제", "대납",
	"제외",
	"배",
	"1인당", "각자", "한 명당", "개인당", "사람당",
}

// Classify returns Simple when the item carries no hint phrases and no phrase
// contains a complex-split marker; otherwise Complex. It is total and
// deterministic: identical hint phrases always classify identically.
func Classify(item models.ExtractedItem) Kind {
	for _, phrase := range item.HintPhrases {
		if hasMarker(phrase) {
			return Complex
		}
	}
	return Simple
}

func hasMarker(phrase string) bool {
	for _, marker := range complexMarkers {
		if strings.Contains(phrase, marker) {
			return true
		}
	}
	return false
}
