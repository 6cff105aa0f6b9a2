// Package pricing holds the static per-model price table and the cost
// arithmetic used by the cost ledger.
//
// Prices are approximate and may lag the provider's published rates. An
// unknown model falls back to the default row so a cost is always computable.
package pricing

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// Model identifiers known to the price table.
const (
	ModelFlash = "gemini-2.5-flash-latest"
	ModelPro   = "gemini-3.1-pro-preview"

	// DefaultModel is the row used for models missing from the table.
	DefaultModel = ModelFlash
)

// Rate is the price in USD per one million tokens.
type Rate struct {
	Input  float64
	Output float64
}

var rates = map[string]Rate{
	ModelFlash: {Input: 0.075, Output: 0.3},
	ModelPro:   {Input: 1.25, Output: 5.0},
}

// RateFor returns the rate row for model. The boolean is false when the
// default row was substituted.
func RateFor(model string) (Rate, bool) {
	if r, ok := rates[model]; ok {
		return r, true
	}
	return rates[DefaultModel], false
}

// Cost computes the USD cost of a request.
func Cost(model string, inputTokens, outputTokens int64) float64 {
	r, _ := RateFor(model)
	inputCost := float64(inputTokens) / 1_000_000 * r.Input
	outputCost := float64(outputTokens) / 1_000_000 * r.Output
	return inputCost + outputCost
}

// Known reports whether model has its own row in the table.
func Known(model string) bool {
	_, ok := rates[model]
	return ok
}

// Models lists the price table sorted by model id.
func Models() []models.ModelInfo {
	out := make([]models.ModelInfo, 0, len(rates))
	for id, r := range rates {
		out = append(out, models.ModelInfo{
			ID:          id,
			InputPer1M:  r.Input,
			OutputPer1M: r.Output,
			Default:     id == DefaultModel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// printer formats numbers with English digit grouping.
var printer = message.NewPrinter(language.English)

// FormatUSD renders a cost with six decimals, enough to show sub-cent requests.
func FormatUSD(amount float64) string {
	return printer.Sprintf("$%.6f", amount)
}

// FormatINR renders a converted amount in rupees.
func FormatINR(amount float64) string {
	return printer.Sprintf("₹%.2f", amount)
}

// FormatDual renders a USD amount alongside its INR conversion.
func FormatDual(usd, exchangeRate float64) string {
	if exchangeRate <= 0 {
		return FormatUSD(usd)
	}
	return FormatUSD(usd) + " (" + FormatINR(usd*exchangeRate) + ")"
}

// FormatTokens renders a token count with thousands separators.
func FormatTokens(n int64) string {
	return printer.Sprintf("%d", n)
}
