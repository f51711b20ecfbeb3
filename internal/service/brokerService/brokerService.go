package brokerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/papertrade/brokersim/internal/externalApi"
	"github.com/papertrade/brokersim/internal/model"
	"github.com/papertrade/brokersim/internal/model/quoteModel"
	"github.com/papertrade/brokersim/internal/service"
	"github.com/papertrade/brokersim/internal/trade"
	"github.com/papertrade/brokersim/utils"
)

type MarketdataApi interface {
	GetQuote(ctx context.Context, ticker string) (quoteModel.Quote, error)
	GetQuotes(ctx context.Context, tickers []string) (map[string]quoteModel.Quote, error)
}

type Cache interface {
	GetQuote(ctx context.Context, ticker string) (quoteModel.Quote, error)
	GetQuotes(ctx context.Context, tickers []string) (map[string]quoteModel.Quote, error)
	SetQuotes(ctx context.Context, quotes map[string]quoteModel.Quote) error
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	GetPortfolioForUpdate(ctx context.Context) (*model.Portfolio, error)
	GetPortfolio(ctx context.Context) (*model.Portfolio, error)
	SavePortfolio(ctx context.Context, portfolio *model.Portfolio) error
	UpdateLastPrices(ctx context.Context, prices map[string]decimal.Decimal) error
}

type BrokerService struct {
	repo          Repository
	cache         Cache
	marketdataApi MarketdataApi
}

func New(repo Repository, cache Cache, marketdataApi MarketdataApi) *BrokerService {
	return &BrokerService{
		repo:          repo,
		cache:         cache,
		marketdataApi: marketdataApi,
	}
}

// ExecuteTrade resolves the current price for the traded ticker, then applies
// the buy/sell inside a single transaction holding the portfolio row lock.
// Either the whole mutation is persisted or the prior state survives.
func (s *BrokerService) ExecuteTrade(ctx context.Context, req model.TradeRequest) (result model.TradeResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "BrokerService.ExecuteTrade"

	slog.Debug("ExecuteTrade start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", req.Ticker), slog.String("action", string(req.Action)))
	defer func() {
		slog.Debug("ExecuteTrade finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", req.Ticker))
	}()

	ticker := trade.NormalizeTicker(req.Ticker)
	if ticker == "" {
		return model.TradeResult{}, trade.ErrEmptyTicker
	}

	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return model.TradeResult{}, trade.ErrInvalidQuantity
	}

	// price is resolved before the transaction: quote source calls must not
	// interleave with the mutation
	price, err := s.resolvePrice(ctx, ticker)
	if err != nil {
		return model.TradeResult{}, err
	}

	var portfolio *model.Portfolio
	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		portfolio, err = s.repo.GetPortfolioForUpdate(ctx)
		if err != nil {
			return err
		}

		if err := trade.Execute(portfolio, req.Action, ticker, req.Quantity, price); err != nil {
			return err
		}

		return s.repo.SavePortfolio(ctx, portfolio)
	})
	if err != nil {
		slog.Warn("trade not applied", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeResult{}, err
	}

	verb := "bought"
	if req.Action == model.ActionSell {
		verb = "sold"
	}

	return model.TradeResult{
		Message:   fmt.Sprintf("%s %s %s @ %s", verb, req.Quantity, ticker, price),
		Cash:      portfolio.Cash,
		Positions: trade.Valuate(portfolio).Positions,
	}, nil
}

// GetDashboard refreshes stored last prices against one batched quote lookup
// and returns the valuation view. A degraded quote source is not fatal: stale
// tickers keep their prior price and are reported as unresolved.
func (s *BrokerService) GetDashboard(ctx context.Context) (dashboard model.Dashboard, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "BrokerService.GetDashboard"

	slog.Debug("GetDashboard start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("GetDashboard finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	portfolio, err := s.repo.GetPortfolio(ctx)
	if err != nil {
		return model.Dashboard{}, err
	}

	quotes := s.resolveQuotes(ctx, portfolio.Tickers())

	// only usable prices reach the refresh and the database; a non-positive
	// close counts as unresolved and must not clobber the stored last price
	prices := make(map[string]decimal.Decimal, len(quotes))
	for ticker, quote := range quotes {
		if quote.Close.LessThanOrEqual(decimal.Zero) {
			continue
		}
		prices[ticker] = quote.Close
	}

	unresolved := trade.ApplyQuotes(portfolio, prices)

	if len(prices) > 0 {
		if err := s.repo.UpdateLastPrices(ctx, prices); err != nil {
			return model.Dashboard{}, err
		}
	}

	dashboard = trade.Valuate(portfolio)
	dashboard.Unresolved = unresolved

	return dashboard, nil
}

// WarmQuoteCache is the scheduler job body: one batched API call for all held
// tickers, results pushed into the cache.
func (s *BrokerService) WarmQuoteCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "BrokerService.WarmQuoteCache"

	portfolio, err := s.repo.GetPortfolio(ctx)
	if err != nil {
		slog.Error("got error from repo.GetPortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	tickers := portfolio.Tickers()
	if len(tickers) == 0 {
		return nil
	}

	quotes, err := s.marketdataApi.GetQuotes(ctx, tickers)
	if err != nil {
		slog.Error("got error from marketdataApi.GetQuotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return s.cache.SetQuotes(ctx, quotes)
}

// resolvePrice returns the current price for a ticker, cache first, API on
// miss. Any quote source failure degrades to ErrPriceUnavailable; a stale or
// default price is never substituted.
func (s *BrokerService) resolvePrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "BrokerService.resolvePrice"

	quote, err := s.cache.GetQuote(ctx, ticker)
	if err != nil {
		slog.Warn("can't get quote from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("err", err.Error()))
	} else if quote.Close.LessThanOrEqual(decimal.Zero) {
		// unusable cached close: consult the API before rejecting
		slog.Warn("cached quote has no usable price", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
		err = errors.New("cached quote has no usable price")
	}

	if err != nil {
		quote, err = s.marketdataApi.GetQuote(ctx, ticker)
		if err != nil {
			if !errors.Is(err, externalApi.ErrNotFound) {
				slog.Error("can't get quote from marketdataApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			}
			return decimal.Decimal{}, service.ErrPriceUnavailable
		}

		go s.cache.SetQuotes(context.WithoutCancel(ctx), map[string]quoteModel.Quote{ticker: quote})
	}

	if quote.Close.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, service.ErrPriceUnavailable
	}

	return quote.Close, nil
}

// resolveQuotes merges cached quotes with one batched API call for the cache
// misses. Failures degrade to a partial (possibly empty) result.
func (s *BrokerService) resolveQuotes(ctx context.Context, tickers []string) map[string]quoteModel.Quote {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "BrokerService.resolveQuotes"

	if len(tickers) == 0 {
		return map[string]quoteModel.Quote{}
	}

	quotes, err := s.cache.GetQuotes(ctx, tickers)
	if err != nil {
		slog.Warn("can't get quotes from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		quotes = map[string]quoteModel.Quote{}
	}

	missing := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if _, ok := quotes[ticker]; !ok {
			missing = append(missing, ticker)
		}
	}

	if len(missing) == 0 {
		return quotes
	}

	fetched, err := s.marketdataApi.GetQuotes(ctx, missing)
	if err != nil {
		slog.Error("can't get quotes from marketdataApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return quotes
	}

	for ticker, quote := range fetched {
		quotes[ticker] = quote
	}

	go s.cache.SetQuotes(context.WithoutCancel(ctx), fetched)

	return quotes
}
