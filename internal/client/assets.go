package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"coinfolio/internal/models"

	"github.com/shopspring/decimal"
)

func assetPath(id int64) string { return "/api/assets/" + strconv.FormatInt(id, 10) }

func (c *Client) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var res []models.Asset
	err := c.doJSON(ctx, http.MethodGet, "/api/assets", nil, &res)
	return res, err
}

func (c *Client) GetAsset(ctx context.Context, id int64) (models.Asset, error) {
	var a models.Asset
	err := c.doJSON(ctx, http.MethodGet, assetPath(id), nil, &a)
	return a, err
}

// AddAsset validates in locally before sending it.
func (c *Client) AddAsset(ctx context.Context, in models.AssetInput) (models.Asset, error) {
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return models.Asset{}, err
	}
	var a models.Asset
	err := c.doJSON(ctx, http.MethodPost, "/api/assets", in, &a)
	return a, err
}

func (c *Client) UpdateAsset(ctx context.Context, id int64, in models.AssetInput) (models.Asset, error) {
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return models.Asset{}, err
	}
	var a models.Asset
	err := c.doJSON(ctx, http.MethodPut, assetPath(id), in, &a)
	return a, err
}

// DeleteAsset reports whether the asset was removed.
func (c *Client) DeleteAsset(ctx context.Context, id int64) (bool, error) {
	if err := c.doJSON(ctx, http.MethodDelete, assetPath(id), nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) TotalValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/total", nil, &total)
	return total, err
}

// AssetsWithPrices fetches assets annotated with live prices. When that
// endpoint fails it falls back to the plain list with LivePrice=false and
// the stored price standing in for the current one.
func (c *Client) AssetsWithPrices(ctx context.Context) ([]models.AssetWithPrice, error) {
	var res []models.AssetWithPrice
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/with-prices", nil, &res)
	if err == nil {
		return res, nil
	}
	if IsUnauthorized(err) {
		return nil, err
	}
	c.log.Warnf("live prices unavailable, using stored prices: %v", err)

	assets, err := c.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	res = make([]models.AssetWithPrice, 0, len(assets))
	for _, a := range assets {
		res = append(res, models.WithStoredPrice(a))
	}
	return res, nil
}

// UpdateAssetPrice asks the backend to reprice an asset from the market.
func (c *Client) UpdateAssetPrice(ctx context.Context, id int64) (models.Asset, error) {
	var a models.Asset
	err := c.doJSON(ctx, http.MethodPut, assetPath(id)+"/update-price", nil, &a)
	return a, err
}

// ROI is the portfolio return as a fraction of the investment.
func (c *Client) ROI(ctx context.Context) (decimal.Decimal, error) {
	var roi decimal.Decimal
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/roi", nil, &roi)
	return roi, err
}

func (c *Client) SharpeRatio(ctx context.Context) (float64, error) {
	var v float64
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/sharpe", nil, &v)
	return v, err
}

func (c *Client) Metrics(ctx context.Context) (models.PortfolioMetrics, error) {
	var m models.PortfolioMetrics
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/metrics", nil, &m)
	return m, err
}

func (c *Client) Performance(ctx context.Context) ([]models.AssetPerformance, error) {
	var res []models.AssetPerformance
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/performance", nil, &res)
	return res, err
}

func (c *Client) Risk(ctx context.Context) (models.RiskMetrics, error) {
	var r models.RiskMetrics
	err := c.doJSON(ctx, http.MethodGet, "/api/assets/risk", nil, &r)
	return r, err
}

func (c *Client) TopCoins(ctx context.Context, limit int) ([]models.Coin, error) {
	var res []models.Coin
	err := c.doJSON(ctx, http.MethodGet, "/api/coins/top?limit="+strconv.Itoa(limit), nil, &res)
	return res, err
}

type CoinPrice struct {
	CoinID      string          `json:"coinId"`
	Price       decimal.Decimal `json:"price"`
	LastUpdated string          `json:"lastUpdated"`
}

func (c *Client) CoinPrice(ctx context.Context, coinID string) (CoinPrice, error) {
	var p CoinPrice
	err := c.doJSON(ctx, http.MethodGet, "/api/coins/"+url.PathEscape(coinID)+"/price", nil, &p)
	return p, err
}

func (c *Client) PriceHistory(ctx context.Context, coinID string, days int) (models.PriceHistory, error) {
	var h models.PriceHistory
	path := fmt.Sprintf("/api/price-history/%s?days=%d", url.PathEscape(coinID), days)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &h)
	return h, err
}
