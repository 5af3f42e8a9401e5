package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"backlab/internal/domain"
	"backlab/internal/store"
)

// Loader serves bar series cache-first: it reads from the local bar store
// and only hits the external fetcher for ranges the store does not cover
// yet, writing anything fetched back to the store.
type Loader struct {
	store   store.BarStore
	fetcher BarFetcher
	log     *slog.Logger
}

// NewLoader creates a Loader over the given cache and fetcher. A nil fetcher
// makes the Loader cache-only: missing ranges simply return what the store
// has.
func NewLoader(s store.BarStore, f BarFetcher) *Loader {
	return &Loader{
		store:   s,
		fetcher: f,
		log:     slog.Default().With("component", "loader"),
	}
}

// Load returns validated bars for symbol within [start, end]. Cached bars are
// used as-is; when the cache is empty or stops short of end, the uncovered
// tail is fetched and persisted before re-reading.
func (l *Loader) Load(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	cached, err := l.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading cached bars for %s: %w", symbol, err)
	}

	fetchFrom := start
	if n := len(cached); n > 0 {
		fetchFrom = cached[n-1].Timestamp.Add(time.Nanosecond)
	}

	if l.fetcher != nil && fetchFrom.Before(end) {
		fetched, err := l.fetcher.FetchBars(ctx, symbol, fetchFrom, end)
		if err != nil {
			return nil, err
		}
		if len(fetched) > 0 {
			if err := l.store.WriteBars(ctx, symbol, fetched); err != nil {
				return nil, fmt.Errorf("caching fetched bars for %s: %w", symbol, err)
			}
			l.log.Info("extended bar cache", "symbol", symbol, "added", len(fetched))
			cached, err = l.store.ReadBars(ctx, symbol, start, end)
			if err != nil {
				return nil, fmt.Errorf("re-reading bars for %s: %w", symbol, err)
			}
		}
	}

	if err := domain.ValidateBars(cached); err != nil {
		return nil, fmt.Errorf("bar series for %s: %w", symbol, err)
	}
	return cached, nil
}
