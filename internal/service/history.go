package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"coinfolio/internal/market"
	"coinfolio/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	historyTTL         = 30 * time.Minute
	maxRefreshesPerDay = 50
	refreshWindow      = 24 * time.Hour
	DefaultHistoryDays = 90
)

var ErrRateLimited = errors.New("refresh limit reached")

var PopularCoins = []string{"bitcoin", "ethereum", "ripple", "cardano", "solana"}

type HistoryStore interface {
	UpsertPrices(ctx context.Context, coinID string, points []models.PricePoint) error
}

type historyEntry struct {
	points    []models.PricePoint
	fetchedAt time.Time
}

type refreshCount struct {
	n     int
	since time.Time
}

// HistoryService serves market_chart series from a 30 minute cache and
// copies every fetched series into the price_history table.
type HistoryService struct {
	feed  market.Feed
	store HistoryStore
	log   *logrus.Logger
	cache *expirable.LRU[string, historyEntry]
	now   func() time.Time

	mu       sync.Mutex
	requests map[string]*refreshCount
}

func NewHistoryService(feed market.Feed, store HistoryStore, log *logrus.Logger) *HistoryService {
	return &HistoryService{
		feed:     feed,
		store:    store,
		log:      log,
		cache:    expirable.NewLRU[string, historyEntry](512, nil, historyTTL),
		now:      time.Now,
		requests: map[string]*refreshCount{},
	}
}

func historyKey(coinID string, days int) string { return fmt.Sprintf("%s/%d", coinID, days) }

// History returns the daily series of coinID over the last days.
func (h *HistoryService) History(ctx context.Context, coinID string, days int) ([]models.PricePoint, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	if e, ok := h.cache.Get(historyKey(coinID, days)); ok {
		h.log.Debugf("history cache hit for %s (age %s)", coinID, h.now().Sub(e.fetchedAt).Round(time.Second))
		return e.points, nil
	}
	return h.fetch(ctx, coinID, days)
}

// Refresh refetches a series regardless of the cache, at most 50 times per
// coin per 24 hours.
func (h *HistoryService) Refresh(ctx context.Context, coinID string, days int) error {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	if h.RateLimited(coinID) {
		return fmt.Errorf("%w for %s", ErrRateLimited, coinID)
	}
	_, err := h.fetch(ctx, coinID, days)
	return err
}

func (h *HistoryService) fetch(ctx context.Context, coinID string, days int) ([]models.PricePoint, error) {
	h.count(coinID)
	points, err := h.feed.MarketChart(ctx, coinID, days)
	if err != nil {
		return nil, err
	}
	h.cache.Add(historyKey(coinID, days), historyEntry{points: points, fetchedAt: h.now()})
	if h.store != nil {
		if err := h.store.UpsertPrices(ctx, coinID, points); err != nil {
			h.log.Warnf("store history for %s: %v", coinID, err)
		}
	}
	h.log.Debugf("cached %d points for %s", len(points), coinID)
	return points, nil
}

func (h *HistoryService) count(coinID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rc, ok := h.requests[coinID]
	if !ok || h.now().Sub(rc.since) >= refreshWindow {
		rc = &refreshCount{since: h.now()}
		h.requests[coinID] = rc
	}
	rc.n++
}

func (h *HistoryService) requestCount(coinID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	rc, ok := h.requests[coinID]
	if !ok || h.now().Sub(rc.since) >= refreshWindow {
		return 0
	}
	return rc.n
}

func (h *HistoryService) RateLimited(coinID string) bool {
	return h.requestCount(coinID) >= maxRefreshesPerDay
}

// RefreshPopular refetches the default series of popular coins that are
// already cached.
func (h *HistoryService) RefreshPopular(ctx context.Context) {
	for _, coinID := range PopularCoins {
		if !h.cache.Contains(historyKey(coinID, DefaultHistoryDays)) {
			continue
		}
		if err := h.Refresh(ctx, coinID, DefaultHistoryDays); err != nil {
			h.log.Warnf("scheduled refresh of %s: %v", coinID, err)
		}
	}
}

func (h *HistoryService) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.log.Info("history refresher stopping")
				return
			case <-ticker.C:
				h.RefreshPopular(ctx)
			}
		}
	}()
}

type CoinStatus struct {
	CoinID          string    `json:"coinId"`
	IsCached        bool      `json:"isCached"`
	DataPoints      int       `json:"dataPoints"`
	LastUpdated     time.Time `json:"lastUpdated"`
	CacheAgeMinutes int64     `json:"cacheAgeMinutes"`
	RequestCount    int       `json:"requestCount"`
	MaxRequests     int       `json:"maxRequests"`
	IsRateLimited   bool      `json:"isRateLimited"`
}

type ServiceStatus struct {
	TotalCachedSeries    int                   `json:"totalCachedSeries"`
	CacheDurationMinutes int64                 `json:"cacheDurationMinutes"`
	MaxRequestsPerCoin   int                   `json:"maxRequestsPerCoin"`
	RateLimitResetHours  int64                 `json:"rateLimitResetHours"`
	Coins                map[string]CoinStatus `json:"coins"`
}

// CoinStatus reports the cache state of the default series of coinID.
func (h *HistoryService) CoinStatus(coinID string) CoinStatus {
	st := CoinStatus{
		CoinID:       coinID,
		RequestCount: h.requestCount(coinID),
		MaxRequests:  maxRefreshesPerDay,
	}
	st.IsRateLimited = st.RequestCount >= maxRefreshesPerDay
	if e, ok := h.cache.Peek(historyKey(coinID, DefaultHistoryDays)); ok {
		st.IsCached = true
		st.DataPoints = len(e.points)
		st.LastUpdated = e.fetchedAt
		st.CacheAgeMinutes = int64(h.now().Sub(e.fetchedAt) / time.Minute)
	}
	return st
}

func (h *HistoryService) Status() ServiceStatus {
	st := ServiceStatus{
		TotalCachedSeries:    h.cache.Len(),
		CacheDurationMinutes: int64(historyTTL / time.Minute),
		MaxRequestsPerCoin:   maxRefreshesPerDay,
		RateLimitResetHours:  int64(refreshWindow / time.Hour),
		Coins:                map[string]CoinStatus{},
	}
	h.mu.Lock()
	ids := make([]string, 0, len(h.requests))
	for id := range h.requests {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		st.Coins[id] = h.CoinStatus(id)
	}
	return st
}
