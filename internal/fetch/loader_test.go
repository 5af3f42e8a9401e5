package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"backlab/internal/domain"
	"backlab/internal/store"
)

// fakeFetcher serves a fixed bar series, recording the ranges requested.
type fakeFetcher struct {
	bars     []domain.PriceBar
	err      error
	requests []struct{ start, end time.Time }
}

func (f *fakeFetcher) FetchBars(_ context.Context, _ string, start, end time.Time) ([]domain.PriceBar, error) {
	f.requests = append(f.requests, struct{ start, end time.Time }{start, end})
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.PriceBar
	for _, b := range f.bars {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func loaderBars(t0 time.Time, closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Timestamp: t0.AddDate(0, 0, i),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume: 10,
		}
	}
	return bars
}

func TestLoadColdCacheFetchesFullRange(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := t0.AddDate(0, 0, 4)

	ff := &fakeFetcher{bars: loaderBars(t0, 100, 101, 102, 103, 104)}
	bs := store.NewParquetStore(t.TempDir())
	l := NewLoader(bs, ff)

	bars, err := l.Load(ctx, "BTC/USD", t0, end)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("got %d bars, want 5", len(bars))
	}
	if len(ff.requests) != 1 {
		t.Fatalf("fetcher called %d times, want 1", len(ff.requests))
	}
	if !ff.requests[0].start.Equal(t0) {
		t.Errorf("fetch start = %v, want %v", ff.requests[0].start, t0)
	}

	// The fetched bars must now be cached.
	cached, err := bs.ReadBars(ctx, "BTC/USD", t0, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(cached) != 5 {
		t.Errorf("cache holds %d bars, want 5", len(cached))
	}
}

func TestLoadWarmCacheSkipsFetcher(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := t0.AddDate(0, 0, 2)

	bs := store.NewParquetStore(t.TempDir())
	if err := bs.WriteBars(ctx, "BTC/USD", loaderBars(t0, 100, 101, 102)); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	ff := &fakeFetcher{}
	l := NewLoader(bs, ff)

	bars, err := l.Load(ctx, "BTC/USD", t0, end)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	if len(ff.requests) != 0 {
		t.Errorf("fetcher called %d times, want 0 for covered range", len(ff.requests))
	}
}

func TestLoadFetchesOnlyUncoveredTail(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := t0.AddDate(0, 0, 5)

	bs := store.NewParquetStore(t.TempDir())
	if err := bs.WriteBars(ctx, "BTC/USD", loaderBars(t0, 100, 101, 102)); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	ff := &fakeFetcher{bars: loaderBars(t0, 100, 101, 102, 103, 104, 105)}
	l := NewLoader(bs, ff)

	bars, err := l.Load(ctx, "BTC/USD", t0, end)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bars) != 6 {
		t.Fatalf("got %d bars, want 6", len(bars))
	}
	if len(ff.requests) != 1 {
		t.Fatalf("fetcher called %d times, want 1", len(ff.requests))
	}
	if !ff.requests[0].start.After(t0.AddDate(0, 0, 2)) {
		t.Errorf("fetch start = %v, want after the last cached bar", ff.requests[0].start)
	}
}

func TestLoadNilFetcherIsCacheOnly(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	bs := store.NewParquetStore(t.TempDir())
	if err := bs.WriteBars(ctx, "BTC/USD", loaderBars(t0, 100, 101)); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	l := NewLoader(bs, nil)
	bars, err := l.Load(ctx, "BTC/USD", t0, t0.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("got %d bars, want the 2 cached ones", len(bars))
	}
}

func TestLoadPropagatesFetchError(t *testing.T) {
	wantErr := errors.New("api down")
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	l := NewLoader(store.NewParquetStore(t.TempDir()), &fakeFetcher{err: wantErr})
	_, err := l.Load(context.Background(), "BTC/USD", t0, t0.AddDate(0, 0, 3))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
