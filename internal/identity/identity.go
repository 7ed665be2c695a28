// Package identity maintains the conversation-scoped mapping between member
// ids and display names, and rewrites names back to ids anywhere they appear
// in model output.
//
// The extraction model freely mixes ids and display names in its output;
// settlement records must be keyed by id only. A Roster is built fresh per
// request and never persisted.
package identity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// Roster is a bidirectional member-id <-> display-name map for one
// conversation.
type Roster struct {
	idToName map[string]string
	nameToID map[string]string

	// namesByLength orders display names longest first so that substring
	// replacement inside hint phrases never clips a longer name with a
	// shorter one that happens to be its prefix.
	namesByLength []string

	// ids in deterministic sorted order, used as the default participant set.
	ids []string
}

// NewRoster builds a roster from an id->name map. Duplicate display names
// violate the per-conversation bijectivity invariant and are rejected.
func NewRoster(idToName map[string]string) (*Roster, error) {
	r := &Roster{
		idToName: make(map[string]string, len(idToName)),
		nameToID: make(map[string]string, len(idToName)),
	}
	for id, name := range idToName {
		if id == "" || name == "" {
			return nil, fmt.Errorf("empty member id or name (id=%q, name=%q)", id, name)
		}
		if prev, dup := r.nameToID[name]; dup {
			return nil, fmt.Errorf("display name %q maps to both member %q and %q", name, prev, id)
		}
		r.idToName[id] = name
		r.nameToID[name] = id
		r.namesByLength = append(r.namesByLength, name)
		r.ids = append(r.ids, id)
	}
	sort.Slice(r.namesByLength, func(i, j int) bool {
		return len(r.namesByLength[i]) > len(r.namesByLength[j])
	})
	sort.Strings(r.ids)
	return r, nil
}

// RosterFromEntries builds a roster from a list of single-entry id->name
// maps, the alternate membership shape the boundary layer receives.
func RosterFromEntries(entries []map[string]string) (*Roster, error) {
	combined := make(map[string]string, len(entries))
	for _, entry := range entries {
		for id, name := range entry {
			combined[id] = name
		}
	}
	return NewRoster(combined)
}

// IDs returns all member ids in sorted order.
func (r *Roster) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Names returns all display names, longest first.
func (r *Roster) Names() []string {
	return append([]string(nil), r.namesByLength...)
}

// Len returns the member count.
func (r *Roster) Len() int {
	return len(r.idToName)
}

// NameOf returns the display name for an id, or "" when unknown.
func (r *Roster) NameOf(id string) string {
	return r.idToName[id]
}

// IDOf returns the member id for a display name, or the input unchanged when
// it is not a known name (it may already be an id).
func (r *Roster) IDOf(nameOrID string) string {
	if id, ok := r.nameToID[nameOrID]; ok {
		return id
	}
	return nameOrID
}

// IDToName returns a copy of the id->name map.
func (r *Roster) IDToName() map[string]string {
	out := make(map[string]string, len(r.idToName))
	for k, v := range r.idToName {
		out[k] = v
	}
	return out
}

// ResolvePhrase rewrites every member display name embedded in the free-text
// phrase to the member's id. Replacement is longest-name-first plain
// substring substitution; hint phrases embed names inline with no reliable
// word boundaries.
func (r *Roster) ResolvePhrase(phrase string) string {
	for _, name := range r.namesByLength {
		phrase = strings.ReplaceAll(phrase, name, r.nameToID[name])
	}
	return phrase
}

// ResolvePhrases applies ResolvePhrase to each phrase, returning a new slice.
func (r *Roster) ResolvePhrases(phrases []string) []string {
	if phrases == nil {
		return nil
	}
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = r.ResolvePhrase(p)
	}
	return out
}

// ResolveRecord returns a copy of the record with every member display name
// replaced by the member id: the payer field, each participant, and the keys
// of the constants and ratios maps. Values are left untouched. Applying it to
// an already-resolved record is a no-op.
func (r *Roster) ResolveRecord(rec models.SettlementRecord) models.SettlementRecord {
	out := rec
	out.Payer = r.IDOf(rec.Payer)

	out.Participants = make([]string, len(rec.Participants))
	for i, p := range rec.Participants {
		out.Participants[i] = r.IDOf(p)
	}

	out.Constants = make(map[string]int64, len(rec.Constants))
	for k, v := range rec.Constants {
		out.Constants[r.IDOf(k)] = v
	}

	out.Ratios = make(map[string]float64, len(rec.Ratios))
	for k, v := range rec.Ratios {
		out.Ratios[r.IDOf(k)] = v
	}
	return out
}

// ResolveItem returns a copy of the item with member names inside hint
// phrases and the speaker field rewritten to ids.
func (r *Roster) ResolveItem(item models.ExtractedItem) models.ExtractedItem {
	out := item
	out.Speaker = r.IDOf(item.Speaker)
	out.HintPhrases = r.ResolvePhrases(item.HintPhrases)
	return out
}
