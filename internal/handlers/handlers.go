package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"coinfolio/internal/auth"
	"coinfolio/internal/coins"
	"coinfolio/internal/database"
	"coinfolio/internal/models"
	"coinfolio/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateAsset(ctx context.Context, userID string, in models.AssetInput) (models.Asset, error)
	ListAssets(ctx context.Context, userID string) ([]models.Asset, error)
	GetAsset(ctx context.Context, userID string, id int64) (models.Asset, error)
	UpdateAsset(ctx context.Context, userID string, id int64, in models.AssetInput) (models.Asset, error)
	SetAssetPrice(ctx context.Context, userID string, id int64, price decimal.Decimal) (models.Asset, error)
	DeleteAsset(ctx context.Context, userID string, id int64) error
	TotalValue(ctx context.Context, userID string) (decimal.Decimal, error)
	DailyValuations(ctx context.Context, holdings map[string]decimal.Decimal, since time.Time) ([]database.DailyValuation, error)
}

type Prices interface {
	GetPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error)
	PriceForName(ctx context.Context, name string) (decimal.Decimal, error)
}

type History interface {
	History(ctx context.Context, coinID string, days int) ([]models.PricePoint, error)
	Refresh(ctx context.Context, coinID string, days int) error
	CoinStatus(coinID string) service.CoinStatus
	Status() service.ServiceStatus
}

type Markets interface {
	TopCoins(ctx context.Context, limit int) ([]models.Coin, error)
}

type Handler struct {
	store    Store
	prices   Prices
	history  History
	markets  Markets
	coins    coins.Resolver
	tokens   *auth.Issuer
	log      *logrus.Logger
	topCoins *expirable.LRU[int, []models.Coin]
}

func NewHandler(s Store, p Prices, h History, m Markets, resolver coins.Resolver, tokens *auth.Issuer, log *logrus.Logger) *Handler {
	return &Handler{
		store:    s,
		prices:   p,
		history:  h,
		markets:  m,
		coins:    resolver,
		tokens:   tokens,
		log:      log,
		topCoins: expirable.NewLRU[int, []models.Coin](8, nil, 5*time.Minute),
	}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	a := r.Group("/api/assets", h.RequireAuth)
	a.GET("", h.ListAssets)
	a.POST("", h.CreateAsset)
	a.GET("/total", h.GetTotalValue)
	a.GET("/roi", h.GetROI)
	a.GET("/sharpe", h.GetSharpe)
	a.GET("/metrics", h.GetMetrics)
	a.GET("/performance", h.GetPerformance)
	a.GET("/risk", h.GetRisk)
	a.GET("/with-prices", h.GetAssetsWithPrices)
	a.GET("/:id", h.GetAsset)
	a.PUT("/:id", h.UpdateAsset)
	a.DELETE("/:id", h.DeleteAsset)
	a.PUT("/:id/update-price", h.UpdateAssetPrice)

	r.GET("/api/coins/top", h.GetTopCoins)
	r.GET("/api/coins/:id/price", h.GetCoinPrice)

	ph := r.Group("/api/price-history")
	ph.GET("/status", h.GetHistoryStatus)
	ph.GET("/debug/:coinId", h.GetHistoryDebug)
	ph.POST("/refresh/:coinId", h.RefreshHistory)
	ph.GET("/:coinId", h.GetPriceHistory)
}

// CORS allows the configured browser origin.
func CORS(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{origin},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	})
}

const userIDKey = "userID"

// RequireAuth rejects requests without a valid bearer token.
func (h *Handler) RequireAuth(c *gin.Context) {
	raw := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	claims, err := h.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		h.log.Debugf("rejected token: %v", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(userIDKey, claims.UID)
	c.Next()
}

func userID(c *gin.Context) string { return c.GetString(userIDKey) }
