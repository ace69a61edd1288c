package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"coinfolio/internal/auth"
	"coinfolio/internal/coins"
	"coinfolio/internal/database"
	"coinfolio/internal/market"
	"coinfolio/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	days := flag.Int("days", 90, "days of daily prices to load")
	ids := flag.String("coins", "", "comma separated coin ids, default the whole catalog")
	demo := flag.Bool("demo", false, "also create user demo/demo123 with a few holdings")
	flag.Parse()

	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	ctx := context.Background()
	repo := database.New(db, logger)

	catalog, err := coins.LoadCatalog(os.Getenv("COIN_CATALOG_FILE"))
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	baseURL := os.Getenv("COINGECKO_URL")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	feed := market.NewCoinGecko(baseURL, os.Getenv("COINGECKO_API_KEY"), 0.5, logger)

	var targets []string
	if *ids != "" {
		targets = strings.Split(*ids, ",")
	} else {
		for _, m := range catalog.Available() {
			targets = append(targets, m.ID)
		}
	}

	// 1. Daily closes for each coin
	for _, id := range targets {
		id = strings.TrimSpace(id)
		points, err := feed.MarketChart(ctx, id, *days)
		if err != nil {
			fmt.Printf("Warning: could not fetch %s: %v\n", id, err)
			continue
		}
		if err := repo.UpsertPrices(ctx, id, points); err != nil {
			fmt.Printf("Warning: could not store %s: %v\n", id, err)
			continue
		}
		fmt.Printf("Stored %d prices for %s\n", len(points), id)
	}

	if !*demo {
		return
	}

	// 2. Demo account with holdings priced at the latest close
	hash, err := auth.HashPassword("demo123")
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	u, err := repo.CreateUser(ctx, "demo", hash)
	if err != nil {
		if u, err = repo.GetUserByUsername(ctx, "demo"); err != nil {
			log.Fatalf("demo user: %v", err)
		}
	}
	holdings := map[string]string{"bitcoin": "0.5", "ethereum": "4", "solana": "25"}
	for id, qty := range holdings {
		price, _, err := repo.GetLatestPrice(ctx, id)
		if err != nil {
			fmt.Printf("Warning: no stored price for %s, skipping\n", id)
			continue
		}
		info, _ := catalog.Info(id)
		in := models.AssetInput{Name: info.Name, Quantity: decimal.RequireFromString(qty), PricePerUnit: price}
		if _, err := repo.CreateAsset(ctx, u.ID, in); err != nil {
			fmt.Printf("Warning: could not add %s: %v\n", id, err)
		}
	}
	fmt.Println("Successfully backfilled price history!")
}
