package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/papertrade/brokersim/data/repository"
	"github.com/papertrade/brokersim/internal/converter/dbConverter"
	"github.com/papertrade/brokersim/internal/model"
	"github.com/papertrade/brokersim/internal/model/dbModel"
	"github.com/papertrade/brokersim/utils"
)

// The deployment tracks exactly one portfolio row.
const portfolioID = 1

const startingCash = 100000

// GetPortfolioForUpdate loads the portfolio with a row lock, creating the
// default-funded one on first access. Must run inside WithinTransaction: the
// lock serializes concurrent trades into read-modify-write order.
func (r *Postgres) GetPortfolioForUpdate(ctx context.Context) (*model.Portfolio, error) {
	return r.getPortfolio(ctx, true)
}

func (r *Postgres) GetPortfolio(ctx context.Context) (*model.Portfolio, error) {
	return r.getPortfolio(ctx, false)
}

func (r *Postgres) getPortfolio(ctx context.Context, forUpdate bool) (portfolio *model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("getPortfolio start", slog.String("rqID", rqID), slog.Bool("forUpdate", forUpdate))
	defer func() {
		if err != nil {
			slog.Error("getPortfolio failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("getPortfolio completed", slog.String("rqID", rqID))
		}
	}()

	insertQuery := `INSERT INTO portfolio(portfolio_id, cash) VALUES($1, $2) ON CONFLICT (portfolio_id) DO NOTHING`
	if _, err = r.txOrDb(ctx).ExecContext(ctx, insertQuery, portfolioID, startingCash); err != nil {
		return nil, err
	}

	selectQuery := `SELECT portfolio_id, cash FROM portfolio WHERE portfolio_id = $1`
	if forUpdate {
		selectQuery += ` FOR UPDATE`
	}

	dbPortfolio := dbModel.Portfolio{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbPortfolio, selectQuery, portfolioID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	positionsQuery := `
		SELECT ticker, quantity, avg_price, last_price
		FROM positions
		WHERE portfolio_id = $1
		ORDER BY ticker
		`

	dbPositions := []dbModel.Position{}
	err = r.txOrDb(ctx).SelectContext(ctx, &dbPositions, positionsQuery, portfolioID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return dbConverter.ConvertPortfolio(dbPortfolio, dbPositions), nil
}

// SavePortfolio writes cash and the full position set: held tickers are
// upserted, vanished tickers are deleted. Call inside WithinTransaction so a
// trade either lands completely or not at all.
func (r *Postgres) SavePortfolio(ctx context.Context, portfolio *model.Portfolio) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("SavePortfolio start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("SavePortfolio failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("SavePortfolio completed", slog.String("rqID", rqID))
		}
	}()

	cashQuery := `UPDATE portfolio SET cash = $1, updated_at = now() WHERE portfolio_id = $2`
	if _, err = r.txOrDb(ctx).ExecContext(ctx, cashQuery, portfolio.Cash, portfolioID); err != nil {
		return err
	}

	tickers := portfolio.Tickers()

	if len(tickers) == 0 {
		_, err = r.txOrDb(ctx).ExecContext(ctx, `DELETE FROM positions WHERE portfolio_id = $1`, portfolioID)
		return err
	}

	sb := strings.Builder{}
	sb.WriteString(`INSERT INTO positions(portfolio_id, ticker, quantity, avg_price, last_price) VALUES `)
	args := make([]any, 0, len(tickers)*5)

	for i, ticker := range tickers {
		pos := portfolio.Positions[ticker]
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, portfolioID, pos.Ticker, pos.Quantity, pos.AvgPrice, pos.LastPrice)
	}

	sb.WriteString(`
		ON CONFLICT (portfolio_id, ticker) DO UPDATE
		SET quantity = EXCLUDED.quantity, avg_price = EXCLUDED.avg_price, last_price = EXCLUDED.last_price
		`)

	upsertQuery := r.txOrDb(ctx).Rebind(sb.String())
	if _, err = r.txOrDb(ctx).ExecContext(ctx, upsertQuery, args...); err != nil {
		return err
	}

	deleteQuery, deleteArgs, err := sqlx.In(
		`DELETE FROM positions WHERE portfolio_id = ? AND ticker NOT IN (?)`,
		portfolioID, tickers,
	)
	if err != nil {
		return err
	}

	_, err = r.txOrDb(ctx).ExecContext(ctx, r.txOrDb(ctx).Rebind(deleteQuery), deleteArgs...)
	return err
}

// UpdateLastPrices persists refreshed quotes; the pricing refresh never
// touches cash, quantity or avg_price.
func (r *Postgres) UpdateLastPrices(ctx context.Context, prices map[string]decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("UpdateLastPrices start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("UpdateLastPrices failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateLastPrices completed", slog.String("rqID", rqID))
		}
	}()

	query := `UPDATE positions SET last_price = $1 WHERE portfolio_id = $2 AND ticker = $3`
	for ticker, price := range prices {
		if _, err = r.txOrDb(ctx).ExecContext(ctx, query, price, portfolioID, ticker); err != nil {
			return err
		}
	}

	return nil
}
