// Package calculator turns finished settlement records into concrete
// per-member amounts: each participant's share of one expense, and the
// minimal set of transfers that settles a whole batch.
package calculator

import (
	"fmt"
	"sort"

	"github.com/tallybot/aicore/internal/models"
)

// Shares computes how much each participant owes for one record.
//
// Fixed constants come off the amount first; the remainder splits by ratio
// weight. Rounding uses the largest-remainder method so the shares always sum
// exactly to the record amount.
func Shares(rec models.SettlementRecord) (map[string]int64, error) {
	if len(rec.Participants) == 0 {
		return nil, fmt.Errorf("record %q has no participants", rec.Item)
	}

	var fixed int64
	for _, p := range rec.Participants {
		fixed += rec.Constants[p]
	}
	remainder := rec.Amount - fixed
	if remainder < 0 {
		return nil, fmt.Errorf("record %q: fixed contributions %d exceed amount %d", rec.Item, fixed, rec.Amount)
	}

	var ratioSum float64
	for _, p := range rec.Participants {
		ratioSum += rec.Ratios[p]
	}
	if remainder > 0 && ratioSum <= 0 {
		return nil, fmt.Errorf("record %q: remainder %d but no positive ratio", rec.Item, remainder)
	}

	shares := make(map[string]int64, len(rec.Participants))
	if remainder == 0 || ratioSum <= 0 {
		for _, p := range rec.Participants {
			shares[p] = rec.Constants[p]
		}
		return shares, nil
	}

	type slice struct {
		id       string
		whole    int64
		fraction float64
	}
	slices := make([]slice, 0, len(rec.Participants))
	var assigned int64
	for _, p := range rec.Participants {
		exact := float64(remainder) * rec.Ratios[p] / ratioSum
		whole := int64(exact)
		slices = append(slices, slice{id: p, whole: whole, fraction: exact - float64(whole)})
		assigned += whole
	}

	// Distribute the rounding shortfall to the largest fractions, ties by
	// participant order for determinism.
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].fraction > slices[j].fraction
	})
	for i := int64(0); i < remainder-assigned; i++ {
		slices[i%int64(len(slices))].whole++
	}

	for _, s := range slices {
		shares[s.id] = rec.Constants[s.id] + s.whole
	}
	return shares, nil
}
