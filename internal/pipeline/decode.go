package pipeline

import (
	"strconv"
	"strings"

	"github.com/tallybot/aicore/internal/models"
)

// decodeItems converts repaired pass-1 objects into typed items, dropping
// entries that fail the validity filter: empty item name, non-positive
// amount, or an undecided hint type.
func decodeItems(objects []map[string]any) []models.ExtractedItem {
	items := make([]models.ExtractedItem, 0, len(objects))
	for _, obj := range objects {
		item := decodeItem(obj)
		if strings.TrimSpace(item.Item) == "" || item.Amount <= 0 {
			continue
		}
		if item.HintType == models.HintTypeUndecided {
			continue
		}
		items = append(items, item)
	}
	return items
}

func decodeItem(obj map[string]any) models.ExtractedItem {
	item := models.ExtractedItem{
		Speaker:  toString(obj["speaker"]),
		Place:    toString(obj["place"]),
		Item:     toString(obj["item"]),
		Amount:   int64(toFloat(obj["amount"])),
		HintType: toString(obj["hint_type"]),
	}
	if phrases, ok := obj["hint_phrases"].([]any); ok {
		for _, p := range phrases {
			if s := toString(p); s != "" {
				item.HintPhrases = append(item.HintPhrases, s)
			}
		}
	}
	return item
}

// decodePlaces converts repaired pass-2 objects into place entries.
func decodePlaces(objects []map[string]any) []models.PlaceEntry {
	entries := make([]models.PlaceEntry, 0, len(objects))
	for _, obj := range objects {
		entry := models.PlaceEntry{
			Item:  toString(obj["item"]),
			Place: toString(obj["place"]),
		}
		if entry.Item != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// renderConversation flattens messages into the "{speaker}: {content}" lines
// the extraction prompts expect.
func renderConversation(messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, msg.Speaker+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64)
		return f
	}
	return 0
}
