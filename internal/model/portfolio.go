package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Position is a single holding: quantity held, weighted-average purchase
// price across all buys and the most recently observed market price.
type Position struct {
	Ticker    string
	Quantity  decimal.Decimal
	AvgPrice  decimal.Decimal
	LastPrice decimal.Decimal
}

func (p Position) MarketValue() decimal.Decimal {
	return p.LastPrice.Mul(p.Quantity)
}

func (p Position) PnL() decimal.Decimal {
	return p.LastPrice.Sub(p.AvgPrice).Mul(p.Quantity)
}

// Portfolio is the single unit of persistence: cash plus positions keyed by
// ticker. A ticker appears at most once; a position with zero quantity is
// never stored.
type Portfolio struct {
	Cash      decimal.Decimal
	Positions map[string]*Position
}

func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// Tickers returns held tickers sorted alphabetically.
func (p *Portfolio) Tickers() []string {
	tickers := make([]string, 0, len(p.Positions))
	for ticker := range p.Positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func (p *Portfolio) Clone() *Portfolio {
	clone := NewPortfolio(p.Cash)
	for ticker, pos := range p.Positions {
		posCopy := *pos
		clone.Positions[ticker] = &posCopy
	}
	return clone
}
