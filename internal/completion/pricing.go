package completion

import (
	"math"
	"strings"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
)

// Price is a model price in USD per million tokens.
type Price struct {
	Input  float64
	Output float64
}

// Pricing converts token usage to USD.
type Pricing struct {
	prices map[string]Price
}

// NewPricing builds a pricing table from configuration. Keys are
// lowercased.
func NewPricing(table map[string]config.PriceConfig) *Pricing {
	prices := make(map[string]Price, len(table))
	for model, p := range table {
		prices[strings.ToLower(model)] = Price{Input: p.Input, Output: p.Output}
	}
	return &Pricing{prices: prices}
}

// Lookup returns the price for model: an exact match first, then the
// longest table key contained in the model name.
func (p *Pricing) Lookup(model string) (Price, bool) {
	if p == nil {
		return Price{}, false
	}
	name := strings.ToLower(strings.TrimSpace(model))
	if price, ok := p.prices[name]; ok {
		return price, true
	}
	best := ""
	for key := range p.prices {
		if strings.Contains(name, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return Price{}, false
	}
	return p.prices[best], true
}

// Cost returns the USD cost of a call. Unknown models cost nothing.
func (p *Pricing) Cost(model string, tokensIn, tokensOut int) float64 {
	price, ok := p.Lookup(model)
	if !ok {
		return 0
	}
	cost := (float64(tokensIn)*price.Input + float64(tokensOut)*price.Output) / 1_000_000
	return math.Round(cost*1e6) / 1e6
}
