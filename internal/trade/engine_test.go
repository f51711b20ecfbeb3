package trade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/brokersim/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFundedPortfolio() *model.Portfolio {
	return model.NewPortfolio(dec("100000"))
}

func TestExecute_FirstBuyCreatesPosition(t *testing.T) {
	p := newFundedPortfolio()

	err := Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150"))
	require.NoError(t, err)

	assert.True(t, p.Cash.Equal(dec("98500")), "cash = %s", p.Cash)
	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(dec("10")))
	assert.True(t, pos.AvgPrice.Equal(dec("150")))
	assert.True(t, pos.LastPrice.Equal(dec("150")))
}

func TestExecute_BuyRecomputesWeightedAverage(t *testing.T) {
	p := newFundedPortfolio()

	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("5"), dec("180")))

	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(dec("15")))
	assert.True(t, pos.AvgPrice.Equal(dec("160")), "avg = %s", pos.AvgPrice)
	assert.True(t, pos.LastPrice.Equal(dec("180")))
	assert.True(t, p.Cash.Equal(dec("97600")), "cash = %s", p.Cash)
}

func TestExecute_WeightedAverageUsesDistinctPrices(t *testing.T) {
	// (3*10 + 7*20) / 10 = 17, order of buys must not matter for the mean
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "MSFT", dec("3"), dec("10")))
	require.NoError(t, Execute(p, model.ActionBuy, "MSFT", dec("7"), dec("20")))
	assert.True(t, p.Positions["MSFT"].AvgPrice.Equal(dec("17")))

	p2 := newFundedPortfolio()
	require.NoError(t, Execute(p2, model.ActionBuy, "MSFT", dec("7"), dec("20")))
	require.NoError(t, Execute(p2, model.ActionBuy, "MSFT", dec("3"), dec("10")))
	assert.True(t, p2.Positions["MSFT"].AvgPrice.Equal(dec("17")))
}

func TestExecute_SellKeepsAvgPriceAndCreditsCash(t *testing.T) {
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("5"), dec("180")))

	require.NoError(t, Execute(p, model.ActionSell, "AAPL", dec("5"), dec("200")))

	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(dec("10")))
	assert.True(t, pos.AvgPrice.Equal(dec("160")), "avg must not move on sells, got %s", pos.AvgPrice)
	assert.True(t, pos.LastPrice.Equal(dec("200")))
	assert.True(t, p.Cash.Equal(dec("98600")), "cash = %s", p.Cash)
}

func TestExecute_SellToZeroRemovesPosition(t *testing.T) {
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("5"), dec("180")))

	require.NoError(t, Execute(p, model.ActionSell, "AAPL", dec("15"), dec("200")))

	assert.True(t, p.Cash.Equal(dec("100600")), "cash = %s", p.Cash)
	assert.NotContains(t, p.Positions, "AAPL")
}

func TestExecute_RejectionLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name     string
		action   model.Action
		ticker   string
		quantity decimal.Decimal
		price    decimal.Decimal
		wantErr  error
	}{
		{"empty ticker", model.ActionBuy, "  ", dec("1"), dec("10"), ErrEmptyTicker},
		{"zero quantity", model.ActionBuy, "AAPL", dec("0"), dec("10"), ErrInvalidQuantity},
		{"negative quantity", model.ActionSell, "AAPL", dec("-3"), dec("10"), ErrInvalidQuantity},
		{"zero price", model.ActionBuy, "AAPL", dec("1"), dec("0"), ErrInvalidPrice},
		{"unknown action", model.Action("hold"), "AAPL", dec("1"), dec("10"), ErrUnknownAction},
		{"insufficient cash", model.ActionBuy, "AAPL", dec("1"), dec("1000000"), ErrInsufficientFunds},
		{"ticker not held", model.ActionSell, "MSFT", dec("1"), dec("10"), ErrInsufficientShares},
		{"oversell", model.ActionSell, "AAPL", dec("11"), dec("10"), ErrInsufficientShares},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFundedPortfolio()
			require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
			before := p.Clone()

			err := Execute(p, tt.action, tt.ticker, tt.quantity, tt.price)
			require.ErrorIs(t, err, tt.wantErr)

			assert.True(t, p.Cash.Equal(before.Cash), "cash changed on rejection")
			require.Len(t, p.Positions, len(before.Positions))
			for ticker, want := range before.Positions {
				got := p.Positions[ticker]
				require.NotNil(t, got)
				assert.True(t, got.Quantity.Equal(want.Quantity))
				assert.True(t, got.AvgPrice.Equal(want.AvgPrice))
				assert.True(t, got.LastPrice.Equal(want.LastPrice))
			}
		})
	}
}

func TestExecute_CashNeverGoesNegative(t *testing.T) {
	p := model.NewPortfolio(dec("50000"))

	err := Execute(p, model.ActionBuy, "AAPL", dec("1"), dec("100000"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, p.Cash.Equal(dec("50000")))

	// exact spend down to zero is allowed
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("5"), dec("10000")))
	assert.True(t, p.Cash.IsZero())
	assert.False(t, p.Cash.IsNegative())
}

func TestExecute_TickerNormalization(t *testing.T) {
	p := newFundedPortfolio()

	require.NoError(t, Execute(p, model.ActionBuy, " aapl ", dec("10"), dec("150")))
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("5"), dec("180")))

	require.Len(t, p.Positions, 1)
	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.True(t, pos.Quantity.Equal(dec("15")))
}

func TestApplyQuotes_UpdatesOnlyLastPrice(t *testing.T) {
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
	require.NoError(t, Execute(p, model.ActionBuy, "MSFT", dec("5"), dec("300")))
	cashBefore := p.Cash

	unresolved := ApplyQuotes(p, map[string]decimal.Decimal{
		"AAPL": dec("155.5"),
		"MSFT": dec("310"),
	})

	assert.Empty(t, unresolved)
	assert.True(t, p.Cash.Equal(cashBefore))
	assert.True(t, p.Positions["AAPL"].LastPrice.Equal(dec("155.5")))
	assert.True(t, p.Positions["AAPL"].Quantity.Equal(dec("10")))
	assert.True(t, p.Positions["AAPL"].AvgPrice.Equal(dec("150")))
	assert.True(t, p.Positions["MSFT"].LastPrice.Equal(dec("310")))
}

func TestApplyQuotes_MissingAndInvalidQuotesAreUnresolved(t *testing.T) {
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
	require.NoError(t, Execute(p, model.ActionBuy, "MSFT", dec("5"), dec("300")))
	require.NoError(t, Execute(p, model.ActionBuy, "GOOG", dec("2"), dec("100")))

	unresolved := ApplyQuotes(p, map[string]decimal.Decimal{
		"AAPL": dec("155"),
		"MSFT": dec("0"), // malformed quote degrades to unresolved
	})

	assert.Equal(t, []string{"GOOG", "MSFT"}, unresolved)
	assert.True(t, p.Positions["MSFT"].LastPrice.Equal(dec("300")), "prior price must survive")
	assert.True(t, p.Positions["GOOG"].LastPrice.Equal(dec("100")))
}

func TestApplyQuotes_Idempotent(t *testing.T) {
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))

	batch := map[string]decimal.Decimal{"AAPL": dec("161.25")}
	ApplyQuotes(p, batch)
	first := p.Clone()
	ApplyQuotes(p, batch)

	assert.True(t, p.Cash.Equal(first.Cash))
	assert.True(t, p.Positions["AAPL"].LastPrice.Equal(first.Positions["AAPL"].LastPrice))
	assert.True(t, p.Positions["AAPL"].Quantity.Equal(first.Positions["AAPL"].Quantity))
	assert.True(t, p.Positions["AAPL"].AvgPrice.Equal(first.Positions["AAPL"].AvgPrice))
}

func TestValuate_EmptyHoldings(t *testing.T) {
	p := newFundedPortfolio()

	dashboard := Valuate(p)

	assert.Empty(t, dashboard.Positions)
	assert.True(t, dashboard.TotalMarketValue.IsZero())
	assert.True(t, dashboard.TotalEquity.Equal(dec("100000")))
}

func TestValuate_RowsAndTotals(t *testing.T) {
	p := newFundedPortfolio()
	require.NoError(t, Execute(p, model.ActionBuy, "MSFT", dec("5"), dec("300")))
	require.NoError(t, Execute(p, model.ActionBuy, "AAPL", dec("10"), dec("150")))
	ApplyQuotes(p, map[string]decimal.Decimal{"AAPL": dec("160"), "MSFT": dec("290")})

	dashboard := Valuate(p)

	require.Len(t, dashboard.Positions, 2)
	assert.Equal(t, "AAPL", dashboard.Positions[0].Ticker, "rows sorted by ticker")
	assert.Equal(t, "MSFT", dashboard.Positions[1].Ticker)

	assert.True(t, dashboard.Positions[0].MarketValue.Equal(dec("1600")))
	assert.True(t, dashboard.Positions[0].PnL.Equal(dec("100")))
	assert.True(t, dashboard.Positions[1].MarketValue.Equal(dec("1450")))
	assert.True(t, dashboard.Positions[1].PnL.Equal(dec("-50")))

	assert.True(t, dashboard.TotalMarketValue.Equal(dec("3050")))
	// 100000 - 1500 - 1500 cash remaining + market value
	assert.True(t, dashboard.Cash.Equal(dec("97000")))
	assert.True(t, dashboard.TotalEquity.Equal(dec("100050")))
}
