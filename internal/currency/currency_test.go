package currency

import (
	"errors"
	"testing"
)

func TestToKRW(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     int64
		wantErr  bool
	}{
		{name: "EUR", amount: 23, currency: "EUR", want: 32200},
		{name: "EUR fractional", amount: 19, currency: "EUR", want: 26600},
		{name: "USD", amount: 100, currency: "USD", want: 130000},
		{name: "JPY", amount: 1000, currency: "JPY", want: 9000},
		{name: "CNY", amount: 50, currency: "CNY", want: 9000},
		{name: "GBP", amount: 10, currency: "GBP", want: 16500},
		{name: "KRW passes through", amount: 40000, currency: "KRW", want: 40000},
		{name: "half-to-even rounding", amount: 0.5, currency: "JPY", want: 4},
		{name: "unsupported code", amount: 10, currency: "CHF", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToKRW(tt.amount, tt.currency)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToKRW() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var ucErr *UnsupportedCurrencyError
				if !errors.As(err, &ucErr) {
					t.Fatalf("error type = %T, want *UnsupportedCurrencyError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ToKRW(%v, %s) = %d, want %d", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}

func TestToKRWDeterminism(t *testing.T) {
	for i := 0; i < 10; i++ {
		got, err := ToKRW(23, "EUR")
		if err != nil {
			t.Fatalf("ToKRW() error = %v", err)
		}
		if got != 32200 {
			t.Fatalf("call %d: ToKRW(23, EUR) = %d, want 32200", i, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Run("converts tagged amount and drops currency", func(t *testing.T) {
		in := []map[string]any{
			{"item": "택시", "amount": float64(19), "currency": "EUR"},
		}
		out, err := NormalizeItems(in)
		if err != nil {
			t.Fatalf("NormalizeItems() error = %v", err)
		}
		if got := out[0]["amount"].(int64); got != 26600 {
			t.Errorf("amount = %d, want 26600", got)
		}
		if _, ok := out[0]["currency"]; ok {
			t.Error("currency field not removed after conversion")
		}
	})

	t.Run("domestic item unchanged", func(t *testing.T) {
		in := []map[string]any{
			{"item": "저녁", "amount": float64(40000)},
		}
		out, err := NormalizeItems(in)
		if err != nil {
			t.Fatalf("NormalizeItems() error = %v", err)
		}
		if got := out[0]["amount"].(float64); got != 40000 {
			t.Errorf("amount = %v, want 40000", got)
		}
		if _, ok := out[0]["currency"]; ok {
			t.Error("currency field must not appear on domestic items")
		}
	})

	t.Run("recurses through nesting", func(t *testing.T) {
		in := map[string]any{
			"results": []any{
				map[string]any{"amount": float64(10), "currency": "USD"},
				map[string]any{
					"inner": map[string]any{"amount": float64(100), "currency": "JPY"},
				},
			},
		}
		out, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		results := out.(map[string]any)["results"].([]any)
		if got := results[0].(map[string]any)["amount"].(int64); got != 13000 {
			t.Errorf("outer amount = %d, want 13000", got)
		}
		inner := results[1].(map[string]any)["inner"].(map[string]any)
		if got := inner["amount"].(int64); got != 900 {
			t.Errorf("inner amount = %d, want 900", got)
		}
	})

	t.Run("unsupported currency surfaces error", func(t *testing.T) {
		in := []map[string]any{
			{"item": "기차", "amount": float64(30), "currency": "CHF"},
		}
		if _, err := NormalizeItems(in); err == nil {
			t.Fatal("NormalizeItems() error = nil, want unsupported currency error")
		}
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := []map[string]any{
			{"item": "택시", "amount": float64(19), "currency": "EUR"},
		}
		if _, err := NormalizeItems(in); err != nil {
			t.Fatalf("NormalizeItems() error = %v", err)
		}
		if _, ok := in[0]["currency"]; !ok {
			t.Error("input map was mutated")
		}
	})
}
