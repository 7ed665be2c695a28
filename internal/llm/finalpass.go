package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tallybot/aicore/internal/identity"
	"github.com/tallybot/aicore/internal/jsonrepair"
	"github.com/tallybot/aicore/internal/models"
)

// settlementSchema constrains the model's third-pass output to the canonical
// record shape before it is trusted.
const settlementSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["payer", "participants", "constants", "ratios"],
  "properties": {
    "payer": {
      "type": "string",
      "minLength": 1
    },
    "participants": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "minItems": 1
    },
    "constants": {
      "type": "object",
      "additionalProperties": {
        "type": "number"
      }
    },
    "ratios": {
      "type": "object",
      "additionalProperties": {
        "type": "number"
      }
    }
  }
}`

// FinalPassResolver is the legacy complex-split path: it asks the extraction
// model to produce the split directly and schema-validates the reply. The
// deterministic hint-phrase parser has replaced it as the default; it remains
// selectable for comparison runs.
type FinalPassResolver struct {
	extractor Extractor
	system    string
	input     string
	schema    *gojsonschema.Schema
}

// NewFinalPassResolver compiles the settlement schema once up front.
func NewFinalPassResolver(extractor Extractor, systemPrompt, inputPrompt string) (*FinalPassResolver, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(settlementSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile settlement schema: %w", err)
	}
	return &FinalPassResolver{
		extractor: extractor,
		system:    systemPrompt,
		input:     inputPrompt,
		schema:    schema,
	}, nil
}

// Resolve sends one complex item to the model and decodes the validated
// reply into a settlement record. Any malformed or schema-invalid reply is an
// error; the caller degrades the item to an equal split.
func (r *FinalPassResolver) Resolve(ctx context.Context, roster *identity.Roster, item models.ExtractedItem) (models.SettlementRecord, error) {
	payload, err := json.Marshal(map[string]any{
		"speaker":      item.Speaker,
		"item":         item.Item,
		"amount":       item.Amount,
		"hint_phrases": item.HintPhrases,
		"members":      roster.IDToName(),
	})
	if err != nil {
		return models.SettlementRecord{}, fmt.Errorf("failed to encode item payload: %w", err)
	}

	raw, err := r.extractor.Extract(ctx, r.system, r.input, string(payload))
	if err != nil {
		return models.SettlementRecord{}, err
	}

	objects := jsonrepair.Repair(raw)
	if len(objects) == 0 {
		return models.SettlementRecord{}, fmt.Errorf("no usable object in model reply")
	}
	obj := objects[0]

	result, err := r.schema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return models.SettlementRecord{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return models.SettlementRecord{}, fmt.Errorf("model reply violates settlement schema: %s", strings.Join(reasons, "; "))
	}

	rec := decodeRecord(obj)
	rec.Place = item.Place
	rec.Item = item.Item
	rec.Amount = item.Amount
	return roster.ResolveRecord(rec), nil
}

func decodeRecord(obj map[string]any) models.SettlementRecord {
	rec := models.SettlementRecord{
		Payer:     asString(obj["payer"]),
		Constants: map[string]int64{},
		Ratios:    map[string]float64{},
	}
	if list, ok := obj["participants"].([]any); ok {
		for _, p := range list {
			rec.Participants = append(rec.Participants, asString(p))
		}
	}
	if m, ok := obj["constants"].(map[string]any); ok {
		for k, v := range m {
			rec.Constants[k] = int64(asFloat(v))
		}
	}
	if m, ok := obj["ratios"].(map[string]any); ok {
		for k, v := range m {
			rec.Ratios[k] = asFloat(v)
		}
	}

	// Constants and ratios must key exactly the participant set: keys the
	// model forgot default to equal-split values, stray keys are dropped.
	participant := make(map[string]bool, len(rec.Participants))
	for _, p := range rec.Participants {
		participant[p] = true
		if _, ok := rec.Constants[p]; !ok {
			rec.Constants[p] = 0
		}
		if _, ok := rec.Ratios[p]; !ok {
			rec.Ratios[p] = 1
		}
	}
	for k := range rec.Constants {
		if !participant[k] {
			delete(rec.Constants, k)
		}
	}
	for k := range rec.Ratios {
		if !participant[k] {
			delete(rec.Ratios, k)
		}
	}
	return rec
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
