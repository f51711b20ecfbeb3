package marketdataApi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/brokersim/config"
	"github.com/papertrade/brokersim/internal/externalApi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *MarketdataApi {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.Timeout = 2 * time.Second
	cfg.API.MarketdataApi.Url = srv.URL

	return New(cfg)
}

func TestGetQuotes_ParsesBatchResponse(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quotes/close", r.URL.Path)
		assert.Equal(t, "AAPL,MSFT", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"quotes":[{"symbol":"AAPL","close":189.95},{"symbol":"MSFT","close":410.1}]}`))
	})

	quotes, err := api.GetQuotes(t.Context(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	require.Len(t, quotes, 2)
	assert.Equal(t, "189.95", quotes["AAPL"].Close.String())
	assert.Equal(t, "410.1", quotes["MSFT"].Close.String())
}

func TestGetQuotes_SkipsQuotesWithoutClose(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quotes":[{"symbol":"AAPL","close":189.95},{"symbol":"DELISTED","close":null}]}`))
	})

	quotes, err := api.GetQuotes(t.Context(), []string{"AAPL", "DELISTED"})
	require.NoError(t, err)

	require.Len(t, quotes, 1)
	assert.Contains(t, quotes, "AAPL")
	assert.NotContains(t, quotes, "DELISTED")
}

func TestGetQuotes_EmptyTickerSetSkipsRequest(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for empty ticker set")
	})

	quotes, err := api.GetQuotes(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestGetQuote_NotFound(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quotes":[]}`))
	})

	_, err := api.GetQuote(t.Context(), "NOPE")
	require.ErrorIs(t, err, externalApi.ErrNotFound)
}
