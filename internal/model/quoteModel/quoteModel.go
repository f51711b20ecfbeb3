package quoteModel

import "github.com/shopspring/decimal"

// RawQuotes mirrors the marketdata API response body.
type RawQuotes struct {
	Quotes []RawQuote `json:"quotes"`
}

type RawQuote struct {
	Symbol string   `json:"symbol"`
	Close  *float64 `json:"close"`
}

type Quote struct {
	Ticker string
	Close  decimal.Decimal
}
