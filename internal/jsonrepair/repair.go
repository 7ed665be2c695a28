// Package jsonrepair recovers structured data from malformed JSON-ish text
// emitted by the extraction model.
//
// The model is asked for a JSON array but in practice replies with prose
// around the array, bare identifier keys, single-quoted strings, or several
// concatenated top-level objects. Repair normalizes all of those into a
// decoded []map[string]any and returns an empty slice on irrecoverable input;
// it never returns an error to the caller.
package jsonrepair

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode"
)

// Repair extracts and decodes the best JSON array candidate from raw model
// output. Empty or whitespace-only input yields an empty, non-nil slice.
func Repair(text string) []map[string]any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []map[string]any{}
	}

	candidate := extractCandidate(trimmed)
	if candidate == "" {
		return []map[string]any{}
	}

	fixed := fixProperties(candidate)

	var arr []map[string]any
	if err := json.Unmarshal([]byte(fixed), &arr); err == nil {
		return arr
	}

	// A bare object wrapped by extractCandidate may still be a valid
	// non-array value; try decoding as a single object.
	var obj map[string]any
	if err := json.Unmarshal([]byte(fixed), &obj); err == nil {
		return []map[string]any{obj}
	}

	slog.Warn("jsonrepair: response is not decodable JSON", "len", len(text))
	return []map[string]any{}
}

// extractCandidate locates the JSON payload inside the raw text and returns
// it as array-shaped text.
func extractCandidate(text string) string {
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return text
	}

	// Multiple concatenated top-level objects are wrapped into one array.
	if groups := topLevelObjects(text); len(groups) > 1 {
		return "[" + strings.Join(groups, ",") + "]"
	}

	// The bracket span is the payload only when the text is array-shaped. A
	// single object whose first bracket belongs to an array-valued field
	// (e.g. participants) must fall through to the brace extraction below.
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	objStart := strings.Index(text, "{")
	if start != -1 && end > start && (objStart == -1 || start < objStart) {
		return text[start : end+1]
	}

	start = strings.Index(text, "{")
	end = strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return "[" + text[start:end+1] + "]"
	}

	return ""
}

// topLevelObjects returns every balanced non-nested-tracked {...} group.
// Braces inside double-quoted strings are ignored.
func topLevelObjects(text string) []string {
	var groups []string
	depth := 0
	inString := false
	escaped := false
	start := -1

	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					groups = append(groups, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return groups
}

// fixProperties quotes bare identifier keys and converts single-quoted
// strings to double-quoted ones. Single quotes inside an open double-quoted
// string (apostrophes) are left alone; a quote-parity scan with escape
// handling tracks whether we are inside one.
func fixProperties(text string) string {
	text = quoteBareKeys(text)
	return convertSingleQuotes(text)
}

func quoteBareKeys(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 16)

	runes := []rune(text)
	inString := false
	escaped := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if escaped {
			escaped = false
			b.WriteRune(r)
			continue
		}
		if inString {
			if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '"':
			inString = true
			b.WriteRune(r)
		case isIdentStart(r):
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			// A bare identifier directly followed by ':' is a key.
			k := j
			for k < len(runes) && unicode.IsSpace(runes[k]) {
				k++
			}
			word := string(runes[i:j])
			if k < len(runes) && runes[k] == ':' && word != "true" && word != "false" && word != "null" {
				b.WriteByte('"')
				b.WriteString(word)
				b.WriteByte('"')
			} else {
				b.WriteString(word)
			}
			i = j - 1
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func convertSingleQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inDouble := false
	inSingle := false
	escaped := false

	for _, r := range text {
		if escaped {
			escaped = false
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\\':
			escaped = true
			b.WriteRune(r)
		case '"':
			if inSingle {
				// Literal double quote inside a single-quoted string
				// must be escaped once converted.
				b.WriteString(`\"`)
			} else {
				inDouble = !inDouble
				b.WriteRune(r)
			}
		case '\'':
			if inDouble {
				b.WriteRune(r)
			} else {
				inSingle = !inSingle
				b.WriteByte('"')
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
