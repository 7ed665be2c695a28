// Package hintparse deterministically converts a complex item's hint phrases
// into a canonical settlement record, replacing the legacy third model pass.
//
// The phrase grammar is small and fixed:
//
//	"2 → 1"             debt reassignment (debtor → creditor), terminal
//	"2가 15000원 지불"    designated fixed payment
//	"1인당 5000원 지불"   per-person fixed amount
//	"3 제외"             participant exclusion
//	"2가 2배 지불"        ratio multiplier
//	"2가 지불"            explicit payer (no trailing amount)
//
// Unrecognized phrases leave the default equal-split state untouched; the
// safest guess degrades to an even split rather than dropping the item.
package hintparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tallybot/aicore/internal/identity"
	"github.com/tallybot/aicore/internal/models"
)

// member matches an id or a display name token inside a phrase.
const member = `([0-9A-Za-z가-힣]+)`

var (
	reDebt      = regexp.MustCompile(member + `\s*(?:→|->)\s*` + member)
	rePerPerson = regexp.MustCompile(`1인당\s*([0-9][0-9,]*)\s*원?\s*지불`)
	reRatio     = regexp.MustCompile(member + `(?:이|가)\s*([0-9]+(?:\.[0-9]+)?)\s*배\s*지불`)
	reFixed     = regexp.MustCompile(member + `(?:이|가)\s*([0-9][0-9,]*)\s*원?\s*지불`)
	reExclude   = regexp.MustCompile(member + `\s*제외`)
	rePayerOnly = regexp.MustCompile(member + `(?:이|가)\s*지불`)
)

// Parser converts classified-complex items into settlement records against a
// fixed member universe.
type Parser struct {
	roster *identity.Roster
}

// New returns a Parser over the conversation's member roster.
func New(roster *identity.Roster) *Parser {
	return &Parser{roster: roster}
}

// Parse produces the settlement record for one complex item. Place and Item
// are expected to be already joined in from the pass-2 enrichment.
func (p *Parser) Parse(item models.ExtractedItem) models.SettlementRecord {
	rec := models.NewSettlementRecord(item.Speaker, p.roster.IDs())
	rec.Place = item.Place
	rec.Item = item.Item
	rec.Amount = item.Amount

	// Phrases may reference members by display name; resolve to ids first.
	phrases := p.roster.ResolvePhrases(item.HintPhrases)

	designated := make(map[string]bool)
	perPerson := int64(-1)

	for _, phrase := range phrases {
		// Debt reassignment fully determines the record and overrides
		// every other phrase on the item.
		if m := reDebt.FindStringSubmatch(phrase); m != nil {
			debtor, creditor := p.roster.IDOf(m[1]), p.roster.IDOf(m[2])
			out := models.NewSettlementRecord(creditor, []string{debtor})
			out.Place = item.Place
			out.Item = item.Item
			out.Amount = item.Amount
			out.Constants[debtor] = item.Amount
			return p.roster.ResolveRecord(out)
		}

		if m := rePerPerson.FindStringSubmatch(phrase); m != nil {
			perPerson = parseAmount(m[1])
			continue
		}

		if m := reRatio.FindStringSubmatch(phrase); m != nil {
			id := p.roster.IDOf(m[1])
			if n, err := strconv.ParseFloat(m[2], 64); err == nil && rec.HasParticipant(id) {
				rec.Ratios[id] = n
			}
			continue
		}

		if m := reFixed.FindStringSubmatch(phrase); m != nil {
			id := p.roster.IDOf(m[1])
			if rec.HasParticipant(id) {
				rec.Constants[id] = parseAmount(m[2])
				designated[id] = true
			}
			continue
		}

		if m := reExclude.FindStringSubmatch(phrase); m != nil {
			rec.RemoveParticipant(p.roster.IDOf(m[1]))
			continue
		}

		if m := rePayerOnly.FindStringSubmatch(phrase); m != nil {
			rec.Payer = p.roster.IDOf(m[1])
			continue
		}
	}

	// The per-person amount applies after all phrases are scanned: to every
	// participant not already designated a fixed payment, or to everyone
	// when nothing was designated.
	if perPerson >= 0 {
		for _, id := range rec.Participants {
			if !designated[id] {
				rec.Constants[id] = perPerson
			}
		}
	}

	return p.roster.ResolveRecord(rec)
}

func parseAmount(s string) int64 {
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
