// Package currency converts foreign-currency amounts in extraction results to
// the domestic unit (KRW) using fixed exchange rates.
//
// The extraction model is instructed to keep foreign amounts in their original
// units, tagged with a currency code; conversion to KRW happens here, once,
// deterministically. An unsupported currency code is an extractor output
// contract violation and fails fast.
package currency

import (
	"fmt"
	"math"
)

// Domestic is the target currency; amounts in it carry no currency tag.
const Domestic = "KRW"

// Fixed rates to KRW.
var exchangeRates = map[string]float64{
	"EUR": 1400,
	"USD": 1300,
	"JPY": 9,
	"CNY": 180,
	"GBP": 1650,
}

// UnsupportedCurrencyError is returned when an item carries a currency code
// without a configured rate.
type UnsupportedCurrencyError struct {
	Code string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency: %q", e.Code)
}

// ToKRW converts the amount from the given currency to KRW, rounding
// half-to-even to an integer. KRW passes through truncated to an integer.
func ToKRW(amount float64, from string) (int64, error) {
	if from == Domestic {
		return int64(amount), nil
	}
	rate, ok := exchangeRates[from]
	if !ok {
		return 0, &UnsupportedCurrencyError{Code: from}
	}
	return int64(math.RoundToEven(amount * rate)), nil
}

// Normalize walks arbitrarily nested maps and slices and converts every map
// that carries both an "amount" and a "currency" key: the amount becomes KRW
// and the currency key is removed. All other values pass through unchanged.
// Input is not mutated; converted containers are fresh copies.
func Normalize(data any) (any, error) {
	switch v := data.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			conv, err := Normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil

	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, elem := range v {
			conv, err := Normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv.(map[string]any)
		}
		return out, nil

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			conv, err := Normalize(elem)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		code, hasCurrency := out["currency"].(string)
		amount, hasAmount := numeric(out["amount"])
		if hasCurrency && hasAmount && code != Domestic {
			krw, err := ToKRW(amount, code)
			if err != nil {
				return nil, err
			}
			out["amount"] = krw
			delete(out, "currency")
		} else if hasCurrency && code == Domestic {
			delete(out, "currency")
		}
		return out, nil

	default:
		return data, nil
	}
}

// NormalizeItems is Normalize specialized for pass-1 result slices.
func NormalizeItems(items []map[string]any) ([]map[string]any, error) {
	out, err := Normalize(items)
	if err != nil {
		return nil, err
	}
	return out.([]map[string]any), nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
