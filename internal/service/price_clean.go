package service

import (
	"context"
	"errors"
	"time"

	"coinfolio/internal/coins"
	"coinfolio/internal/database"
	"coinfolio/internal/market"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const priceFreshness = 15 * time.Minute

type PriceProvider interface {
	GetPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error)
	Start(ctx context.Context, interval time.Duration)
}

type PriceStore interface {
	GetLatestPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error)
	UpsertPrice(ctx context.Context, coinID string, price decimal.Decimal, ts time.Time) error
	GetAllAssetNames(ctx context.Context) ([]string, error)
}

// CleanPriceService serves current coin prices, keeping the latest quote of
// each coin in the price_history table for 15 minutes.
type CleanPriceService struct {
	store PriceStore
	feed  market.Feed
	coins coins.Resolver
	log   *logrus.Logger
	now   func() time.Time
}

var _ PriceProvider = (*CleanPriceService)(nil)

func NewCleanPriceService(s PriceStore, feed market.Feed, resolver coins.Resolver, log *logrus.Logger) *CleanPriceService {
	return &CleanPriceService{store: s, feed: feed, coins: resolver, log: log, now: time.Now}
}

func (p *CleanPriceService) GetPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error) {
	cached, ts, err := p.store.GetLatestPrice(ctx, coinID)
	if err == nil && p.now().Sub(ts) < priceFreshness {
		return cached, ts, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		p.log.Warnf("read cached price for %s: %v", coinID, err)
	}

	val, ferr := p.feed.Price(ctx, coinID)
	if ferr != nil {
		if err == nil {
			p.log.Warnf("price feed failed for %s, serving quote from %s: %v", coinID, ts.Format(time.RFC3339), ferr)
			return cached, ts, nil
		}
		return decimal.Zero, time.Time{}, ferr
	}
	now := p.now().UTC()
	if err := p.store.UpsertPrice(ctx, coinID, val, now); err != nil {
		p.log.Warnf("store price for %s: %v", coinID, err)
	}
	return val, now, nil
}

// PriceForName resolves a free-text asset name before pricing it.
func (p *CleanPriceService) PriceForName(ctx context.Context, name string) (decimal.Decimal, error) {
	coinID, ok := p.coins.Resolve(name)
	if !ok {
		return decimal.Zero, market.ErrUnknownCoin
	}
	val, _, err := p.GetPrice(ctx, coinID)
	return val, err
}

func (p *CleanPriceService) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.log.Info("price updater stopping")
				return
			case <-ticker.C:
				p.refreshHeld(ctx)
			}
		}
	}()
}

// refreshHeld re-quotes every coin that some asset name resolves to.
func (p *CleanPriceService) refreshHeld(ctx context.Context) {
	names, err := p.store.GetAllAssetNames(ctx)
	if err != nil {
		p.log.Warnf("failed to fetch asset names: %v", err)
		return
	}
	seen := map[string]bool{}
	for _, n := range names {
		coinID, ok := p.coins.Resolve(n)
		if !ok || seen[coinID] {
			continue
		}
		seen[coinID] = true
		val, err := p.feed.Price(ctx, coinID)
		if err != nil {
			p.log.Warnf("refresh price for %s: %v", coinID, err)
			continue
		}
		if err := p.store.UpsertPrice(ctx, coinID, val, p.now().UTC()); err != nil {
			p.log.Warnf("store price for %s: %v", coinID, err)
		}
	}
	p.log.Debugf("refreshed %d coin prices", len(seen))
}
