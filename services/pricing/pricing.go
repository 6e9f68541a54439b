package pricing

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"meterbackend/core"
)

//go:embed rates.yaml
var embeddedRates []byte

var million = decimal.NewFromInt(1_000_000)

// Rate holds the per-million-token prices for one (provider, model) pair
type Rate struct {
	InputCostPerMillionTokens  decimal.Decimal
	OutputCostPerMillionTokens decimal.Decimal
}

// Table is an immutable (provider, model) -> Rate lookup. It is built
// once at startup and safe for unsynchronized concurrent reads.
type Table struct {
	rates map[string]Rate
}

type ratesFile struct {
	Providers map[string]map[string]rateEntry `yaml:"providers"`
}

type rateEntry struct {
	InputCostPerMillionTokens  string `yaml:"input_cost_per_million_tokens"`
	OutputCostPerMillionTokens string `yaml:"output_cost_per_million_tokens"`
}

// LoadDefaultTable builds the pricing table from the embedded rates file
func LoadDefaultTable() (*Table, error) {
	return LoadTable(embeddedRates)
}

// LoadTable builds a pricing table from YAML data. Rates are written as
// strings in the data file and parsed as decimals so prices survive the
// round trip exactly.
func LoadTable(data []byte) (*Table, error) {
	var file ratesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pricing rates: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("pricing rates contain no providers")
	}

	rates := make(map[string]Rate)
	for provider, pmodels := range file.Providers {
		for model, entry := range pmodels {
			inputRate, err := decimal.NewFromString(entry.InputCostPerMillionTokens)
			if err != nil {
				return nil, fmt.Errorf("invalid input rate for %s/%s: %w", provider, model, err)
			}
			outputRate, err := decimal.NewFromString(entry.OutputCostPerMillionTokens)
			if err != nil {
				return nil, fmt.Errorf("invalid output rate for %s/%s: %w", provider, model, err)
			}
			if inputRate.IsNegative() || outputRate.IsNegative() {
				return nil, fmt.Errorf("negative rate for %s/%s", provider, model)
			}
			rates[rateKey(provider, model)] = Rate{
				InputCostPerMillionTokens:  inputRate,
				OutputCostPerMillionTokens: outputRate,
			}
		}
	}

	return &Table{rates: rates}, nil
}

func rateKey(provider, model string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "/" + strings.ToLower(strings.TrimSpace(model))
}

// LookupRate returns the rate for a (provider, model) pair.
// Returns a core.PricingNotFoundError when the pair is unknown.
func (t *Table) LookupRate(provider, model string) (Rate, error) {
	rate, ok := t.rates[rateKey(provider, model)]
	if !ok {
		return Rate{}, &core.PricingNotFoundError{Provider: provider, Model: model}
	}
	return rate, nil
}

// Size returns the number of (provider, model) pairs in the table
func (t *Table) Size() int {
	return len(t.rates)
}

// Calculator computes usage cost from token counts and the pricing table.
// ComputeCost is pure: no I/O, deterministic for identical inputs, so a
// persisted cost can always be recomputed from raw token counts.
type Calculator struct {
	table *Table
}

func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table}
}

// ComputeCost returns the USD cost of a call:
//
//	input_tokens/1M * input_rate + output_tokens/1M * output_rate
//
// The arithmetic stays in decimals end to end; rounding happens only at
// presentation time, never here.
func (c *Calculator) ComputeCost(provider, model string, inputTokens, outputTokens int) (decimal.Decimal, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return decimal.Zero, core.NewValidationError("tokens", "token counts cannot be negative")
	}

	rate, err := c.table.LookupRate(provider, model)
	if err != nil {
		return decimal.Zero, err
	}

	inputCost := decimal.NewFromInt(int64(inputTokens)).
		Mul(rate.InputCostPerMillionTokens).
		Div(million)
	outputCost := decimal.NewFromInt(int64(outputTokens)).
		Mul(rate.OutputCostPerMillionTokens).
		Div(million)

	return inputCost.Add(outputCost), nil
}
