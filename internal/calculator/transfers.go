package calculator

import (
	"sort"

	"github.com/tallybot/aicore/internal/models"
)

// Transfer is one repayment: From pays To.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Balances nets each member across a batch of records: the payer is credited
// the full amount, every participant is debited their share. Positive means
// the member is owed money.
func Balances(records []models.SettlementRecord) (map[string]int64, error) {
	balances := make(map[string]int64)
	for _, rec := range records {
		shares, err := Shares(rec)
		if err != nil {
			return nil, err
		}
		balances[rec.Payer] += rec.Amount
		for id, share := range shares {
			balances[id] -= share
		}
	}
	return balances, nil
}

// Transfers reduces the net balances of a batch to a short repayment list by
// greedily matching the largest debtor against the largest creditor.
func Transfers(records []models.SettlementRecord) ([]Transfer, error) {
	balances, err := Balances(records)
	if err != nil {
		return nil, err
	}

	var debtors, creditors []string
	for id, bal := range balances {
		switch {
		case bal < 0:
			debtors = append(debtors, id)
		case bal > 0:
			creditors = append(creditors, id)
		}
	}
	// Largest balances first, ties by id for determinism.
	sort.Slice(debtors, func(i, j int) bool {
		if balances[debtors[i]] != balances[debtors[j]] {
			return balances[debtors[i]] < balances[debtors[j]]
		}
		return debtors[i] < debtors[j]
	})
	sort.Slice(creditors, func(i, j int) bool {
		if balances[creditors[i]] != balances[creditors[j]] {
			return balances[creditors[i]] > balances[creditors[j]]
		}
		return creditors[i] < creditors[j]
	})

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		owes := -balances[debtors[i]]
		owed := balances[creditors[j]]

		amount := owes
		if owed < amount {
			amount = owed
		}
		if amount > 0 {
			transfers = append(transfers, Transfer{From: debtors[i], To: creditors[j], Amount: amount})
		}

		balances[debtors[i]] += amount
		balances[creditors[j]] -= amount
		if balances[debtors[i]] == 0 {
			i++
		}
		if balances[creditors[j]] == 0 {
			j++
		}
	}
	return transfers, nil
}
