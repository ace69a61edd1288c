package main

import (
	"context"
	"time"

	"coinfolio/internal/auth"
	"coinfolio/internal/coins"
	"coinfolio/internal/config"
	"coinfolio/internal/database"
	"coinfolio/internal/handlers"
	"coinfolio/internal/market"
	"coinfolio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Fatal(err)
	}
	logger.SetLevel(cfg.LogLevel)

	db, err := initDB(cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	catalog, err := coins.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		logger.Fatalf("load coin catalog: %v", err)
	}
	logger.Infof("coin catalog has %d entries", catalog.Len())

	r := database.New(db, logger)
	feed := market.NewCoinGecko(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, cfg.CoinGeckoRPS, logger)
	priceSvc := service.NewCleanPriceService(r, feed, catalog, logger)
	historySvc := service.NewHistoryService(feed, r, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	priceSvc.Start(ctx, cfg.PriceUpdateInterval)
	historySvc.Start(ctx, 30*time.Minute)

	tokens := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	h := handlers.NewHandler(r, priceSvc, historySvc, feed, catalog, tokens, logger)

	rg := gin.Default()
	rg.Use(handlers.CORS(cfg.CORSOrigin))
	h.Routes(rg)

	logger.Infof("server starting on :%s", cfg.Port)
	if err := rg.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}

func initDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}
