package models

// HintTypeEqualSplit is the extractor's tag for a plain equal split.
const HintTypeEqualSplit = "n분의1"

// HintTypeUndecided marks items the extractor could not settle on a split
// for. They are dropped by the validity filter, never settled.
const HintTypeUndecided = "미정"

// ExtractedItem is one expense as produced by the first extraction pass.
//
// Before currency normalization Amount holds the literal number mentioned in
// conversation (foreign amounts stay in foreign units, tagged by Currency).
// After normalization Currency is empty and Amount is a positive
// domestic-currency integer.
type ExtractedItem struct {
	Speaker     string   `json:"speaker,omitempty"`
	Place       string   `json:"place,omitempty"`
	Item        string   `json:"item,omitempty"`
	Amount      int64    `json:"amount"`
	HintType    string   `json:"hint_type,omitempty"`
	HintPhrases []string `json:"hint_phrases,omitempty"`
}

// PlaceEntry is one pass-2 enrichment result: the place associated with an
// extracted item name.
type PlaceEntry struct {
	Item  string `json:"item"`
	Place string `json:"place"`
}

// PlaceFor returns the place enriched for the given item name, or "".
func PlaceFor(entries []PlaceEntry, item string) string {
	for _, e := range entries {
		if e.Item == item {
			return e.Place
		}
	}
	return ""
}
