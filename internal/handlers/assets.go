package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coinfolio/internal/analytics"
	"coinfolio/internal/database"
	"coinfolio/internal/market"
	"coinfolio/internal/models"
	"coinfolio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const benchmarkCoin = "bitcoin"

func assetID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return 0, false
	}
	return id, true
}

func bindAsset(c *gin.Context) (models.AssetInput, bool) {
	var in models.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, false
	}
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return in, false
	}
	return in, true
}

func (h *Handler) assetError(c *gin.Context, op string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	h.log.Errorf("%s failed: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}

func (h *Handler) ListAssets(c *gin.Context) {
	assets, err := h.store.ListAssets(c.Request.Context(), userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) CreateAsset(c *gin.Context) {
	in, ok := bindAsset(c)
	if !ok {
		return
	}
	a, err := h.store.CreateAsset(c.Request.Context(), userID(c), in)
	if err != nil {
		h.assetError(c, "create asset", err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	a, err := h.store.GetAsset(c.Request.Context(), userID(c), id)
	if err != nil {
		h.assetError(c, "get asset", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	in, ok := bindAsset(c)
	if !ok {
		return
	}
	a, err := h.store.UpdateAsset(c.Request.Context(), userID(c), id, in)
	if err != nil {
		h.assetError(c, "update asset", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteAsset(c.Request.Context(), userID(c), id); err != nil {
		h.assetError(c, "delete asset", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateAssetPrice sets the stored unit price to the live quote.
func (h *Handler) UpdateAssetPrice(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a, err := h.store.GetAsset(ctx, userID(c), id)
	if err != nil {
		h.assetError(c, "get asset", err)
		return
	}
	price, err := h.prices.PriceForName(ctx, a.Name)
	if errors.Is(err, market.ErrUnknownCoin) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": a.Name + " is not a known coin"})
		return
	}
	if err != nil {
		h.log.Warnf("price for %q: %v", a.Name, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "no live price for " + a.Name})
		return
	}
	a, err = h.store.SetAssetPrice(ctx, userID(c), id, price)
	if err != nil {
		h.assetError(c, "update asset price", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) GetTotalValue(c *gin.Context) {
	total, err := h.store.TotalValue(c.Request.Context(), userID(c))
	if err != nil {
		h.assetError(c, "total value", err)
		return
	}
	c.JSON(http.StatusOK, total)
}

// GetAssetsWithPrices annotates each asset with its live price. Assets
// without one get the stored price and LivePrice=false.
func (h *Handler) GetAssetsWithPrices(c *gin.Context) {
	ctx := c.Request.Context()
	assets, err := h.store.ListAssets(ctx, userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	res := make([]models.AssetWithPrice, 0, len(assets))
	for _, a := range assets {
		price, err := h.prices.PriceForName(ctx, a.Name)
		if err != nil {
			h.log.Debugf("no live price for %q: %v", a.Name, err)
			res = append(res, models.WithStoredPrice(a))
			continue
		}
		res = append(res, models.WithPrice(a, price))
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetROI(c *gin.Context) {
	assets, err := h.store.ListAssets(c.Request.Context(), userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	c.JSON(http.StatusOK, analytics.Summarize(assets).ROIPercentage)
}

func (h *Handler) GetSharpe(c *gin.Context) {
	ctx := c.Request.Context()
	assets, err := h.store.ListAssets(ctx, userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	c.JSON(http.StatusOK, h.risk(ctx, assets).SharpeRatio)
}

func (h *Handler) GetMetrics(c *gin.Context) {
	ctx := c.Request.Context()
	assets, err := h.store.ListAssets(ctx, userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	tot := analytics.Summarize(assets)
	top, worst := analytics.Performers(analytics.Performance(assets))
	risk := h.risk(ctx, assets)
	c.JSON(http.StatusOK, models.PortfolioMetrics{
		TotalValue:      tot.Value,
		TotalInvestment: tot.Investment,
		ROI:             tot.ROI,
		ROIPercentage:   tot.ROIPercentage,
		SharpeRatio:     risk.SharpeRatio,
		Volatility:      risk.Volatility,
		AssetCount:      len(assets),
		TopPerformer:    top,
		WorstPerformer:  worst,
	})
}

func (h *Handler) GetPerformance(c *gin.Context) {
	assets, err := h.store.ListAssets(c.Request.Context(), userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	c.JSON(http.StatusOK, analytics.Performance(assets))
}

func (h *Handler) GetRisk(c *gin.Context) {
	ctx := c.Request.Context()
	assets, err := h.store.ListAssets(ctx, userID(c))
	if err != nil {
		h.assetError(c, "list assets", err)
		return
	}
	c.JSON(http.StatusOK, h.risk(ctx, assets))
}

// risk values the current holdings over the default history window. Assets
// whose name resolves to no coin do not contribute to the series.
func (h *Handler) risk(ctx context.Context, assets []models.Asset) models.RiskMetrics {
	holdings := map[string]decimal.Decimal{}
	for _, a := range assets {
		if coinID, ok := h.coins.Resolve(a.Name); ok {
			holdings[coinID] = holdings[coinID].Add(a.Quantity)
		}
	}
	for coinID := range holdings {
		h.warmHistory(ctx, coinID)
	}
	h.warmHistory(ctx, benchmarkCoin)

	since := time.Now().UTC().AddDate(0, 0, -service.DefaultHistoryDays)
	values := h.valuationSeries(ctx, holdings, since)
	bench := h.valuationSeries(ctx, map[string]decimal.Decimal{benchmarkCoin: decimal.NewFromInt(1)}, since)
	return analytics.Risk(values, bench, analytics.Performance(assets), 0)
}

func (h *Handler) warmHistory(ctx context.Context, coinID string) {
	if _, err := h.history.History(ctx, coinID, service.DefaultHistoryDays); err != nil {
		h.log.Warnf("load history for %s: %v", coinID, err)
	}
}

func (h *Handler) valuationSeries(ctx context.Context, holdings map[string]decimal.Decimal, since time.Time) []analytics.Point {
	if len(holdings) == 0 {
		return nil
	}
	vals, err := h.store.DailyValuations(ctx, holdings, since)
	if err != nil {
		h.log.Warnf("daily valuations: %v", err)
		return nil
	}
	res := make([]analytics.Point, 0, len(vals))
	for _, v := range vals {
		res = append(res, analytics.Point{Date: v.Date, Value: v.TotalUSD.InexactFloat64()})
	}
	return res
}
