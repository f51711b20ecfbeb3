package dbModel

import (
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID int64           `db:"portfolio_id"`
	Cash        decimal.Decimal `db:"cash"`
}

type Position struct {
	Ticker    string          `db:"ticker"`
	Quantity  decimal.Decimal `db:"quantity"`
	AvgPrice  decimal.Decimal `db:"avg_price"`
	LastPrice decimal.Decimal `db:"last_price"`
}
