package models

// SettlementRecord is the final canonical settlement for one expense.
//
// Invariants:
//   - the key sets of Constants and Ratios equal the Participants set
//   - Payer is one of Participants, except for splits that exclude the payer
//     from repayment (fixed per-person contributions excluding the payer)
//   - Amount is a non-negative domestic-currency integer
//
// Field order is fixed; any serialized form must emit place, payer, item,
// amount, participants, constants, ratios in that order.
type SettlementRecord struct {
	Place string `json:"place"`

	// Payer is the member id who actually paid.
	Payer string `json:"payer"`

	Item   string `json:"item"`
	Amount int64  `json:"amount"`

	// Participants are the member ids sharing the expense.
	Participants []string `json:"participants"`

	// Constants is the fixed contribution per participant, applied before
	// ratio-based splitting of the remainder.
	Constants map[string]int64 `json:"constants"`

	// Ratios is the relative weight per participant for the remainder.
	Ratios map[string]float64 `json:"ratios"`
}

// NewSettlementRecord returns a record with the default split state: every
// participant carries constant 0 and ratio 1.
func NewSettlementRecord(payer string, participants []string) SettlementRecord {
	rec := SettlementRecord{
		Payer:        payer,
		Participants: append([]string(nil), participants...),
		Constants:    make(map[string]int64, len(participants)),
		Ratios:       make(map[string]float64, len(participants)),
	}
	for _, p := range participants {
		rec.Constants[p] = 0
		rec.Ratios[p] = 1
	}
	return rec
}

// RemoveParticipant drops the member from Participants, Constants and Ratios.
func (r *SettlementRecord) RemoveParticipant(id string) {
	kept := r.Participants[:0]
	for _, p := range r.Participants {
		if p != id {
			kept = append(kept, p)
		}
	}
	r.Participants = kept
	delete(r.Constants, id)
	delete(r.Ratios, id)
}

// HasParticipant reports whether the member shares this expense.
func (r *SettlementRecord) HasParticipant(id string) bool {
	for _, p := range r.Participants {
		if p == id {
			return true
		}
	}
	return false
}
