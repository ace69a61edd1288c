package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coinfolio/internal/coins"
	"coinfolio/internal/database"
	"coinfolio/internal/market"
	"coinfolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	charts map[string][]models.PricePoint
	calls  map[string]int
	err    error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{prices: map[string]decimal.Decimal{}, charts: map[string][]models.PricePoint{}, calls: map[string]int{}}
}

func (f *fakeFeed) TopCoins(ctx context.Context, limit int) ([]models.Coin, error) {
	return nil, nil
}

func (f *fakeFeed) Price(ctx context.Context, coinID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["price:"+coinID]++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	p, ok := f.prices[coinID]
	if !ok {
		return decimal.Zero, market.ErrUnknownCoin
	}
	return p, nil
}

func (f *fakeFeed) MarketChart(ctx context.Context, coinID string, days int) ([]models.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["chart:"+coinID]++
	if f.err != nil {
		return nil, f.err
	}
	return f.charts[coinID], nil
}

type priceRow struct {
	price decimal.Decimal
	ts    time.Time
}

type fakeStore struct {
	latest map[string]priceRow
	names  []string
	series map[string][]models.PricePoint
}

func newFakeStore() *fakeStore {
	return &fakeStore{latest: map[string]priceRow{}, series: map[string][]models.PricePoint{}}
}

func (s *fakeStore) GetLatestPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error) {
	r, ok := s.latest[coinID]
	if !ok {
		return decimal.Zero, time.Time{}, database.ErrNotFound
	}
	return r.price, r.ts, nil
}

func (s *fakeStore) UpsertPrice(ctx context.Context, coinID string, price decimal.Decimal, ts time.Time) error {
	s.latest[coinID] = priceRow{price, ts}
	return nil
}

func (s *fakeStore) GetAllAssetNames(ctx context.Context) ([]string, error) { return s.names, nil }

func (s *fakeStore) UpsertPrices(ctx context.Context, coinID string, points []models.PricePoint) error {
	s.series[coinID] = points
	return nil
}

func TestGetPrice_FreshCacheSkipsFeed(t *testing.T) {
	feed, store := newFakeFeed(), newFakeStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.latest["bitcoin"] = priceRow{decimal.NewFromInt(60000), now.Add(-5 * time.Minute)}
	svc := NewCleanPriceService(store, feed, coins.Default(), logrus.New())
	svc.now = func() time.Time { return now }

	p, _, err := svc.GetPrice(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(60000)))
	assert.Zero(t, feed.calls["price:bitcoin"])
}

func TestGetPrice_StaleCacheRefetches(t *testing.T) {
	feed, store := newFakeFeed(), newFakeStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.latest["bitcoin"] = priceRow{decimal.NewFromInt(60000), now.Add(-time.Hour)}
	feed.prices["bitcoin"] = decimal.NewFromInt(61000)
	svc := NewCleanPriceService(store, feed, coins.Default(), logrus.New())
	svc.now = func() time.Time { return now }

	p, ts, err := svc.GetPrice(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(61000)))
	assert.Equal(t, now, ts)
	assert.True(t, store.latest["bitcoin"].price.Equal(decimal.NewFromInt(61000)))

	// feed down: the stale quote is still served
	feed.err = errors.New("boom")
	store.latest["bitcoin"] = priceRow{decimal.NewFromInt(60000), now.Add(-time.Hour)}
	p, _, err = svc.GetPrice(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(60000)))

	// nothing cached and feed down: error
	_, _, err = svc.GetPrice(context.Background(), "ethereum")
	require.Error(t, err)
}

func TestPriceForName(t *testing.T) {
	feed, store := newFakeFeed(), newFakeStore()
	feed.prices["ethereum"] = decimal.NewFromInt(3000)
	svc := NewCleanPriceService(store, feed, coins.Default(), logrus.New())

	p, err := svc.PriceForName(context.Background(), " ETH ")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(3000)))

	_, err = svc.PriceForName(context.Background(), "Apple Inc")
	require.ErrorIs(t, err, market.ErrUnknownCoin)
}

func TestRefreshHeld_DedupesResolvedCoins(t *testing.T) {
	feed, store := newFakeFeed(), newFakeStore()
	store.names = []string{"Bitcoin", "btc", "Tesla", "Ethereum"}
	feed.prices["bitcoin"] = decimal.NewFromInt(1)
	feed.prices["ethereum"] = decimal.NewFromInt(2)
	svc := NewCleanPriceService(store, feed, coins.Default(), logrus.New())

	svc.refreshHeld(context.Background())
	assert.Equal(t, 1, feed.calls["price:bitcoin"])
	assert.Equal(t, 1, feed.calls["price:ethereum"])
	assert.Len(t, store.latest, 2)
}

func TestHistory_CachesAndStores(t *testing.T) {
	feed, store := newFakeFeed(), newFakeStore()
	feed.charts["bitcoin"] = []models.PricePoint{{Timestamp: 1, Price: decimal.NewFromInt(10)}, {Timestamp: 2, Price: decimal.NewFromInt(11)}}
	h := NewHistoryService(feed, store, logrus.New())
	ctx := context.Background()

	pts, err := h.History(ctx, "bitcoin", 0)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	_, err = h.History(ctx, "bitcoin", DefaultHistoryDays)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.calls["chart:bitcoin"])
	assert.Len(t, store.series["bitcoin"], 2)

	st := h.CoinStatus("bitcoin")
	assert.True(t, st.IsCached)
	assert.Equal(t, 2, st.DataPoints)
	assert.Equal(t, 1, st.RequestCount)

	status := h.Status()
	assert.Equal(t, 1, status.TotalCachedSeries)
	assert.Contains(t, status.Coins, "bitcoin")
}

func TestRefresh_RateLimited(t *testing.T) {
	feed := newFakeFeed()
	feed.charts["solana"] = []models.PricePoint{{Timestamp: 1, Price: decimal.NewFromInt(1)}}
	h := NewHistoryService(feed, nil, logrus.New())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < maxRefreshesPerDay; i++ {
		require.NoError(t, h.Refresh(ctx, "solana", 0))
	}
	require.ErrorIs(t, h.Refresh(ctx, "solana", 0), ErrRateLimited)
	assert.True(t, h.CoinStatus("solana").IsRateLimited)

	now = now.Add(refreshWindow)
	require.NoError(t, h.Refresh(ctx, "solana", 0))
}

func TestRefreshPopular_OnlyCached(t *testing.T) {
	feed := newFakeFeed()
	feed.charts["bitcoin"] = []models.PricePoint{{Timestamp: 1, Price: decimal.NewFromInt(1)}}
	h := NewHistoryService(feed, nil, logrus.New())
	ctx := context.Background()

	_, err := h.History(ctx, "bitcoin", 0)
	require.NoError(t, err)
	h.RefreshPopular(ctx)

	assert.Equal(t, 2, feed.calls["chart:bitcoin"])
	assert.Zero(t, feed.calls["chart:ethereum"])
}
