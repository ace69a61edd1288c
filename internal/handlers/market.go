package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"coinfolio/internal/market"
	"coinfolio/internal/models"
	"coinfolio/internal/service"

	"github.com/gin-gonic/gin"
)

const maxTopCoins = 300

func (h *Handler) GetTopCoins(c *gin.Context) {
	limit := maxTopCoins
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxTopCoins)
	}
	if cached, ok := h.topCoins.Get(limit); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	coins, err := h.markets.TopCoins(c.Request.Context(), limit)
	if err != nil {
		h.log.Errorf("top coins failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}
	h.topCoins.Add(limit, coins)
	c.JSON(http.StatusOK, coins)
}

type coinPrice struct {
	CoinID      string    `json:"coinId"`
	Price       string    `json:"price"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (h *Handler) GetCoinPrice(c *gin.Context) {
	coinID := c.Param("id")
	price, ts, err := h.prices.GetPrice(c.Request.Context(), coinID)
	if errors.Is(err, market.ErrUnknownCoin) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown coin " + coinID})
		return
	}
	if err != nil {
		h.log.Errorf("price for %s failed: %v", coinID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}
	c.JSON(http.StatusOK, coinPrice{CoinID: coinID, Price: price.String(), LastUpdated: ts})
}

func historyDays(c *gin.Context) (int, bool) {
	v := c.Query("days")
	if v == "" {
		return service.DefaultHistoryDays, true
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 || days > 365 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return 0, false
	}
	return days, true
}

func (h *Handler) GetPriceHistory(c *gin.Context) {
	coinID := c.Param("coinId")
	days, ok := historyDays(c)
	if !ok {
		return
	}
	points, err := h.history.History(c.Request.Context(), coinID, days)
	if errors.Is(err, market.ErrUnknownCoin) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown coin " + coinID})
		return
	}
	if err != nil {
		h.log.Errorf("price history for %s failed: %v", coinID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}
	h.log.Debugf("returning %d points for %s", len(points), coinID)
	c.JSON(http.StatusOK, models.PriceHistory{CoinID: coinID, Days: days, Data: points})
}

func (h *Handler) RefreshHistory(c *gin.Context) {
	coinID := c.Param("coinId")
	days, ok := historyDays(c)
	if !ok {
		return
	}
	err := h.history.Refresh(c.Request.Context(), coinID, days)
	if errors.Is(err, service.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Errorf("refresh history for %s failed: %v", coinID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Price history refreshed for " + coinID, "coinId": coinID, "status": "success"})
}

func (h *Handler) GetHistoryDebug(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.CoinStatus(c.Param("coinId")))
}

func (h *Handler) GetHistoryStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.Status())
}
