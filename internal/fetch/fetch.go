// Package fetch pulls historical crypto bars from the Alpaca market-data API
// and loads them through the on-disk bar cache.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backlab/internal/domain"
	"backlab/internal/util"
)

// BarFetcher retrieves historical bars for a symbol from an external data
// source.
type BarFetcher interface {
	// FetchBars returns daily bars for symbol within [start, end], sorted by
	// timestamp.
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)
}

// Compile-time interface check.
var _ BarFetcher = (*AlpacaFetcher)(nil)

// AlpacaFetcher fetches daily crypto bars from Alpaca. Requests are rate
// limited and retried with backoff, so transient API failures do not abort a
// fetch run.
type AlpacaFetcher struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	retries int
	log     *slog.Logger
}

// NewAlpacaFetcher creates a fetcher using the given API credentials.
// requestsPerMinute caps the outbound request rate; dataURL overrides the
// default market-data endpoint when non-empty.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string, requestsPerMinute int) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 200
	}

	return &AlpacaFetcher{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(requestsPerMinute),
		retries: 3,
		log:     slog.Default().With("component", "fetch"),
	}
}

// FetchBars fetches daily crypto bars for symbol (for example "BTC/USD").
func (f *AlpacaFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var cryptoBars []marketdata.CryptoBar
	err := util.Retry(ctx, f.retries, time.Second, func() error {
		var err error
		cryptoBars, err = f.client.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
		})
		if err != nil {
			f.log.Warn("crypto bars request failed", "symbol", symbol, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetCryptoBars %s: %w", symbol, err)
	}

	bars := make([]domain.PriceBar, 0, len(cryptoBars))
	for _, cb := range cryptoBars {
		bars = append(bars, domain.PriceBar{
			Timestamp: cb.Timestamp.UTC(),
			Open:      cb.Open,
			High:      cb.High,
			Low:       cb.Low,
			Close:     cb.Close,
			Volume:    cb.Volume,
		})
	}
	f.log.Info("fetched bars", "symbol", symbol, "count", len(bars))
	return bars, nil
}
