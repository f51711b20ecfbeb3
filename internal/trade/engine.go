// Package trade holds the position-accounting core: buy/sell execution
// against a portfolio, pricing refresh and valuation. It is pure logic with
// no I/O; the caller resolves prices and owns the load/save boundary.
package trade

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/papertrade/brokersim/internal/model"
)

var (
	ErrEmptyTicker        = errors.New("ticker must not be empty")
	ErrInvalidQuantity    = errors.New("quantity must be a positive number")
	ErrInvalidPrice       = errors.New("price must be a positive number")
	ErrUnknownAction      = errors.New("unknown trade action")
	ErrInsufficientFunds  = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// NormalizeTicker trims and uppercases a raw ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Execute applies a single buy or sell to the portfolio in place. All
// preconditions are checked before the first write, so on any rejection the
// portfolio is left untouched.
func Execute(p *model.Portfolio, action model.Action, ticker string, quantity, price decimal.Decimal) error {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return ErrEmptyTicker
	}

	if quantity.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}

	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrice
	}

	switch action {
	case model.ActionBuy:
		return executeBuy(p, ticker, quantity, price)
	case model.ActionSell:
		return executeSell(p, ticker, quantity, price)
	}

	return ErrUnknownAction
}

func executeBuy(p *model.Portfolio, ticker string, quantity, price decimal.Decimal) error {
	cost := price.Mul(quantity)
	if p.Cash.LessThan(cost) {
		return ErrInsufficientFunds
	}

	pos, ok := p.Positions[ticker]
	if !ok {
		p.Positions[ticker] = &model.Position{
			Ticker:    ticker,
			Quantity:  quantity,
			AvgPrice:  price,
			LastPrice: price,
		}
		p.Cash = p.Cash.Sub(cost)
		return nil
	}

	// weighted mean over the pre-update quantity and average
	pos.AvgPrice = weightedAvg(pos.AvgPrice, pos.Quantity, price, quantity)
	pos.Quantity = pos.Quantity.Add(quantity)
	pos.LastPrice = price
	p.Cash = p.Cash.Sub(cost)

	return nil
}

func executeSell(p *model.Portfolio, ticker string, quantity, price decimal.Decimal) error {
	pos, ok := p.Positions[ticker]
	if !ok || pos.Quantity.LessThan(quantity) {
		return ErrInsufficientShares
	}

	// avg price stays fixed: cost basis of the remaining shares is unchanged
	pos.Quantity = pos.Quantity.Sub(quantity)
	pos.LastPrice = price
	p.Cash = p.Cash.Add(price.Mul(quantity))

	if pos.Quantity.IsZero() {
		delete(p.Positions, ticker)
	}

	return nil
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}

// ApplyQuotes reconciles held positions against a fresh quote batch. Only
// LastPrice is touched; cash, quantity and avg price never change. Tickers
// absent from the batch or quoted non-positive keep their prior price and are
// returned sorted as unresolved.
func ApplyQuotes(p *model.Portfolio, quotes map[string]decimal.Decimal) (unresolved []string) {
	for ticker, pos := range p.Positions {
		quote, ok := quotes[ticker]
		if !ok || quote.LessThanOrEqual(decimal.Zero) {
			unresolved = append(unresolved, ticker)
			continue
		}
		pos.LastPrice = quote
	}
	sort.Strings(unresolved)
	return unresolved
}

// Valuate derives the dashboard view: one row per position sorted by ticker
// plus portfolio totals. Empty holdings yield zero sums.
func Valuate(p *model.Portfolio) model.Dashboard {
	dashboard := model.Dashboard{
		Cash:      p.Cash,
		Positions: make([]model.PositionView, 0, len(p.Positions)),
	}

	for _, ticker := range p.Tickers() {
		pos := p.Positions[ticker]
		dashboard.Positions = append(dashboard.Positions, model.PositionView{
			Ticker:      pos.Ticker,
			Quantity:    pos.Quantity,
			AvgPrice:    pos.AvgPrice,
			LastPrice:   pos.LastPrice,
			MarketValue: pos.MarketValue(),
			PnL:         pos.PnL(),
		})
		dashboard.TotalMarketValue = dashboard.TotalMarketValue.Add(pos.MarketValue())
	}

	dashboard.TotalEquity = dashboard.Cash.Add(dashboard.TotalMarketValue)

	return dashboard
}
