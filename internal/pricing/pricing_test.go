package pricing

import (
	"math"
	"testing"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{"flash one million each", ModelFlash, 1_000_000, 1_000_000, 0.375},
		{"unknown model uses default row", "flash", 1_000_000, 1_000_000, 0.375},
		{"pro one million each", ModelPro, 1_000_000, 1_000_000, 6.25},
		{"zero tokens", ModelPro, 0, 0, 0},
		{"input only", ModelFlash, 2_000_000, 0, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cost(tt.model, tt.input, tt.output)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Cost(%q, %d, %d) = %v, want %v", tt.model, tt.input, tt.output, got, tt.want)
			}
		})
	}
}

func TestCostFlashIsExact(t *testing.T) {
	if got := Cost("flash", 1_000_000, 1_000_000); got != 0.375 {
		t.Errorf("Cost = %v, want exactly 0.375", got)
	}
}

func TestRateFor(t *testing.T) {
	if _, ok := RateFor(ModelPro); !ok {
		t.Error("RateFor(pro) reported default row")
	}
	r, ok := RateFor("gemini-unknown")
	if ok {
		t.Error("RateFor(unknown) reported its own row")
	}
	if r != rates[DefaultModel] {
		t.Errorf("RateFor(unknown) = %+v, want default row", r)
	}
}

func TestModels(t *testing.T) {
	list := Models()
	if len(list) != 2 {
		t.Fatalf("Models() returned %d rows, want 2", len(list))
	}
	defaults := 0
	for _, m := range list {
		if m.Default {
			defaults++
			if m.ID != DefaultModel {
				t.Errorf("default row is %q, want %q", m.ID, DefaultModel)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("found %d default rows, want 1", defaults)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"usd", FormatUSD(0.375), "$0.375000"},
		{"dual without rate", FormatDual(0.5, 0), "$0.500000"},
		{"dual with rate", FormatDual(0.5, 80), "$0.500000 (₹40.00)"},
		{"tokens grouped", FormatTokens(1234567), "1,234,567"},
		{"tokens small", FormatTokens(42), "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
