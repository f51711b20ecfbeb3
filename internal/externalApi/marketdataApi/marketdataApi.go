package marketdataApi

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/papertrade/brokersim/config"
	"github.com/papertrade/brokersim/internal/externalApi"
	"github.com/papertrade/brokersim/internal/model/quoteModel"
	"github.com/papertrade/brokersim/utils"
)

type MarketdataApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *MarketdataApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MarketdataApi.Url)
	return &MarketdataApi{client: client}
}

// GetQuotes fetches the latest close for a set of tickers in a single batched
// request. Tickers the API cannot price are simply absent from the result.
func (a *MarketdataApi) GetQuotes(ctx context.Context, tickers []string) (map[string]quoteModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if len(tickers) == 0 {
		return map[string]quoteModel.Quote{}, nil
	}

	slog.Debug("start MarketdataApi.GetQuotes request", slog.String("rqID", rqID), slog.Any("tickers", tickers))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("symbols", strings.Join(tickers, ",")).
		Get("/api/v1/quotes/close")

	if err != nil {
		slog.Error("error while dialing MarketdataApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	rawQuotes := quoteModel.RawQuotes{}
	err = json.Unmarshal(resp.Body(), &rawQuotes)
	if err != nil {
		slog.Error("can't unmarshall response into quoteModel.RawQuotes", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	res := make(map[string]quoteModel.Quote, len(rawQuotes.Quotes))
	for _, raw := range rawQuotes.Quotes {
		if raw.Symbol == "" || raw.Close == nil {
			continue
		}
		res[raw.Symbol] = quoteModel.Quote{
			Ticker: raw.Symbol,
			Close:  decimal.NewFromFloat(*raw.Close),
		}
	}

	slog.Debug("MarketdataApi.GetQuotes request complete", slog.String("rqID", rqID))

	return res, nil
}

// GetQuote fetches the latest close for one ticker. Returns
// externalApi.ErrNotFound when the API has no usable price for it.
func (a *MarketdataApi) GetQuote(ctx context.Context, ticker string) (quoteModel.Quote, error) {
	quotes, err := a.GetQuotes(ctx, []string{ticker})
	if err != nil {
		return quoteModel.Quote{}, err
	}

	quote, ok := quotes[ticker]
	if !ok {
		return quoteModel.Quote{}, externalApi.ErrNotFound
	}

	return quote, nil
}
