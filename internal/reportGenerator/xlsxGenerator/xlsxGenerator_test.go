package xlsxGenerator

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/papertrade/brokersim/internal/model"
)

func TestGenerate_WritesRowsAndTotals(t *testing.T) {
	dashboard := model.Dashboard{
		Cash:             decimal.NewFromInt(97000),
		TotalMarketValue: decimal.NewFromInt(3100),
		TotalEquity:      decimal.NewFromInt(100100),
		Positions: []model.PositionView{
			{
				Ticker:      "AAPL",
				Quantity:    decimal.NewFromInt(10),
				AvgPrice:    decimal.NewFromInt(150),
				LastPrice:   decimal.NewFromInt(160),
				MarketValue: decimal.NewFromInt(1600),
				PnL:         decimal.NewFromInt(100),
			},
		},
	}

	fileBytes, ext, err := New().Generate(t.Context(), dashboard)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	require.NoError(t, err)
	defer f.Close()

	ticker, err := f.GetCellValue("Portfolio", "A2")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", ticker)

	pnl, err := f.GetCellValue("Portfolio", "F2")
	require.NoError(t, err)
	assert.Equal(t, "100", pnl)

	equityLabel, err := f.GetCellValue("Portfolio", "A6")
	require.NoError(t, err)
	assert.Equal(t, "total equity", equityLabel)
}
