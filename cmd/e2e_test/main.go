package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"coinfolio/internal/client"
	"coinfolio/internal/models"
	"coinfolio/internal/session"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	baseURL := os.Getenv("FOLIO_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	// Wait for server to start
	time.Sleep(2 * time.Second)

	logger := logrus.New()
	ctx := context.Background()
	store := &session.MemoryStore{}
	sess, err := session.New(store, logger)
	if err != nil {
		log.Fatal(err)
	}
	api := client.New(baseURL, 15*time.Second, sess, logger)

	// 1. Health Check
	resp, err := http.Get(baseURL + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	// 2. Register
	cr := client.Credentials{Username: fmt.Sprintf("e2e-%d", time.Now().UnixNano()), Password: "secret1"}
	if err := sess.Register(ctx, api, cr, cr.Password); err != nil {
		log.Fatalf("register failed: %v", err)
	}
	fmt.Printf("Registered %s\n", cr.Username)

	// 3. Add Bitcoin, 2 @ 50000
	a, err := api.AddAsset(ctx, models.AssetInput{Name: "Bitcoin", Quantity: decimal.NewFromInt(2), PricePerUnit: decimal.NewFromInt(50000)})
	if err != nil {
		log.Fatalf("add asset failed: %v", err)
	}
	expectTotal(ctx, api, decimal.NewFromInt(100000))

	// 4. Live prices and analytics
	if _, err := api.AssetsWithPrices(ctx); err != nil {
		log.Fatalf("assets with prices failed: %v", err)
	}
	if _, err := api.Metrics(ctx); err != nil {
		log.Fatalf("metrics failed: %v", err)
	}

	// 5. Delete
	if _, err := api.DeleteAsset(ctx, a.ID); err != nil {
		log.Fatalf("delete failed: %v", err)
	}
	expectTotal(ctx, api, decimal.Zero)

	// 6. Bad login keeps the session empty
	if err := sess.Logout(); err != nil {
		log.Fatal(err)
	}
	if err := sess.Login(ctx, api, client.Credentials{Username: cr.Username, Password: "wrong!"}); err == nil {
		log.Fatal("login with a wrong password succeeded")
	}
	if sess.IsAuthenticated() || store.Saves() != 1 {
		log.Fatal("failed login stored a token")
	}

	fmt.Println("ALL TESTS PASSED")
}

func expectTotal(ctx context.Context, api *client.Client, want decimal.Decimal) {
	total, err := api.TotalValue(ctx)
	if err != nil {
		log.Fatalf("total failed: %v", err)
	}
	if !total.Equal(want) {
		log.Fatalf("Expected total %s, got %s", want, total)
	}
	fmt.Printf("Total value: %s\n", total)
}
