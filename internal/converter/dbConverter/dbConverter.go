package dbConverter

import (
	"github.com/papertrade/brokersim/internal/model"
	"github.com/papertrade/brokersim/internal/model/dbModel"
)

func ConvertPortfolio(dbPortfolio dbModel.Portfolio, dbPositions []dbModel.Position) *model.Portfolio {
	portfolio := model.NewPortfolio(dbPortfolio.Cash)
	for _, dbPos := range dbPositions {
		portfolio.Positions[dbPos.Ticker] = &model.Position{
			Ticker:    dbPos.Ticker,
			Quantity:  dbPos.Quantity,
			AvgPrice:  dbPos.AvgPrice,
			LastPrice: dbPos.LastPrice,
		}
	}
	return portfolio
}
