package pipeline

import (
	"fmt"
	"strings"
)

// dedupKey is the strict cross-chunk identity of an item: trimmed item name
// plus trimmed stringified amount.
type dedupKey struct {
	item   string
	amount string
}

// dedupSet accumulates item keys across chunks. Items with an empty name or
// amount are malformed and never admitted.
type dedupSet struct {
	seen       map[dedupKey]bool
	duplicates int
	malformed  int
}

func newDedupSet() *dedupSet {
	return &dedupSet{seen: make(map[dedupKey]bool)}
}

// admit reports whether an item with this name and amount should be kept,
// recording its key when it is new.
func (d *dedupSet) admit(item string, amount any) bool {
	key := dedupKey{
		item:   strings.TrimSpace(item),
		amount: strings.TrimSpace(stringifyAmount(amount)),
	}
	if key.item == "" || key.amount == "" {
		d.malformed++
		return false
	}
	if d.seen[key] {
		d.duplicates++
		return false
	}
	d.seen[key] = true
	return true
}

func stringifyAmount(amount any) string {
	switch n := amount.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		// Whole-number floats print without the trailing .0 so "15000"
		// and 15000.0 collide as intended.
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%v", n)
	default:
		return fmt.Sprintf("%v", n)
	}
}
