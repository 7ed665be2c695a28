// Package assembler produces the final ordered settlement list: standard
// equal-split records built from simple items, followed by the records already
// derived for complex items.
package assembler

import (
	"regexp"
	"strings"

	"github.com/tallybot/aicore/internal/identity"
	"github.com/tallybot/aicore/internal/models"
)

// reActualPayer spots phrases where someone other than the speaker settled the
// bill, e.g. "2가 결제" or "김철수가 계산했어".
var reActualPayer = regexp.MustCompile(`([0-9A-Za-z가-힣]+)(?:이|가)\s*(?:지불|결제|계산|대납|냈)`)

// perPersonMarkers, combined with perPersonSuffixes, indicate the item's
// amount is a per-person figure rather than the total.
var perPersonMarkers = []string{"1인당", "각자", "한 명당", "개인당", "사람당"}

var perPersonSuffixes = []string{"원씩", "지불함"}

// Assembler builds canonical settlement records against one conversation's
// member roster.
type Assembler struct {
	roster *identity.Roster
}

// New returns an Assembler over the conversation's member roster.
func New(roster *identity.Roster) *Assembler {
	return &Assembler{roster: roster}
}

// Standard builds the equal-split record for one simple item: every member
// participates, constants stay 0 and ratios stay 1. The payer is the speaker
// unless a hint phrase names who actually paid, and a per-person stated
// amount is scaled up to the group total.
func (a *Assembler) Standard(item models.ExtractedItem) models.SettlementRecord {
	item = a.roster.ResolveItem(item)

	rec := models.NewSettlementRecord(item.Speaker, a.roster.IDs())
	rec.Place = item.Place
	rec.Item = item.Item
	rec.Amount = item.Amount

	for _, phrase := range item.HintPhrases {
		if m := reActualPayer.FindStringSubmatch(phrase); m != nil {
			rec.Payer = a.roster.IDOf(m[1])
		}
		if statesPerPersonAmount(phrase) {
			rec.Amount = item.Amount * int64(len(rec.Participants))
		}
	}
	return rec
}

// Assemble concatenates standard records for the simple items with the
// already-built complex records. Complex records pass through name resolution
// once more; the pass is idempotent when they are already id-keyed. Standard
// items come first, then complex, matching the downstream contract.
func (a *Assembler) Assemble(simple []models.ExtractedItem, resolved []models.SettlementRecord) []models.SettlementRecord {
	out := make([]models.SettlementRecord, 0, len(simple)+len(resolved))
	for _, item := range simple {
		out = append(out, a.Standard(item))
	}
	for _, rec := range resolved {
		out = append(out, a.roster.ResolveRecord(rec))
	}
	return out
}

func statesPerPersonAmount(phrase string) bool {
	marked := false
	for _, m := range perPersonMarkers {
		if strings.Contains(phrase, m) {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}
	for _, s := range perPersonSuffixes {
		if strings.Contains(phrase, s) {
			return true
		}
	}
	return false
}
