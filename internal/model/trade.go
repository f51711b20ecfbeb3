package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// TradeRequest is a validated trade command: action, normalized uppercase
// ticker and a positive quantity.
type TradeRequest struct {
	Action   Action
	Ticker   string
	Quantity decimal.Decimal
}

type TradeResult struct {
	Message   string
	Cash      decimal.Decimal
	Positions []PositionView
}

type PositionView struct {
	Ticker      string          `json:"ticker"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgPrice    decimal.Decimal `json:"avgPrice"`
	LastPrice   decimal.Decimal `json:"lastPrice"`
	MarketValue decimal.Decimal `json:"marketValue"`
	PnL         decimal.Decimal `json:"pnl"`
}

// Dashboard is the valuation view of the portfolio: per-position rows plus
// totals, and the tickers the last pricing refresh could not resolve.
type Dashboard struct {
	Cash             decimal.Decimal
	TotalMarketValue decimal.Decimal
	TotalEquity      decimal.Decimal
	Positions        []PositionView
	Unresolved       []string
}
