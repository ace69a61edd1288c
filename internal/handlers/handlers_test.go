package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"coinfolio/internal/auth"
	"coinfolio/internal/coins"
	"coinfolio/internal/database"
	"coinfolio/internal/market"
	"coinfolio/internal/models"
	"coinfolio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	users  map[string]models.User
	assets map[int64]models.Asset
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}, assets: map[int64]models.Asset{}}
}

func (s *memStore) CreateUser(ctx context.Context, username, hash string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return models.User{}, database.ErrUserExists
	}
	u := models.User{ID: fmt.Sprintf("uid-%d", len(s.users)+1), Username: username, PasswordHash: hash}
	s.users[username] = u
	return u, nil
}

func (s *memStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return models.User{}, database.ErrNotFound
	}
	return u, nil
}

func (s *memStore) CreateAsset(ctx context.Context, userID string, in models.AssetInput) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a := models.Asset{ID: s.nextID, UserID: userID, Name: in.Name, Quantity: in.Quantity, PricePerUnit: in.PricePerUnit,
		PurchasePricePerUnit: in.PurchasePricePerUnit, InitialInvestment: in.InitialInvestment}
	s.assets[a.ID] = a
	return a, nil
}

func (s *memStore) ListAssets(ctx context.Context, userID string) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := []models.Asset{}
	for id := int64(1); id <= s.nextID; id++ {
		if a, ok := s.assets[id]; ok && a.UserID == userID {
			res = append(res, a)
		}
	}
	return res, nil
}

func (s *memStore) GetAsset(ctx context.Context, userID string, id int64) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok || a.UserID != userID {
		return models.Asset{}, database.ErrNotFound
	}
	return a, nil
}

func (s *memStore) UpdateAsset(ctx context.Context, userID string, id int64, in models.AssetInput) (models.Asset, error) {
	if _, err := s.GetAsset(ctx, userID, id); err != nil {
		return models.Asset{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := models.Asset{ID: id, UserID: userID, Name: in.Name, Quantity: in.Quantity, PricePerUnit: in.PricePerUnit,
		PurchasePricePerUnit: in.PurchasePricePerUnit, InitialInvestment: in.InitialInvestment}
	s.assets[id] = a
	return a, nil
}

func (s *memStore) SetAssetPrice(ctx context.Context, userID string, id int64, price decimal.Decimal) (models.Asset, error) {
	a, err := s.GetAsset(ctx, userID, id)
	if err != nil {
		return a, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.PricePerUnit = price
	s.assets[id] = a
	return a, nil
}

func (s *memStore) DeleteAsset(ctx context.Context, userID string, id int64) error {
	if _, err := s.GetAsset(ctx, userID, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, id)
	return nil
}

func (s *memStore) TotalValue(ctx context.Context, userID string) (decimal.Decimal, error) {
	assets, _ := s.ListAssets(ctx, userID)
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(a.Value())
	}
	return total, nil
}

func (s *memStore) DailyValuations(ctx context.Context, holdings map[string]decimal.Decimal, since time.Time) ([]database.DailyValuation, error) {
	var res []database.DailyValuation
	for i, v := range []int64{100, 110, 99, 120} {
		res = append(res, database.DailyValuation{TotalUSD: decimal.NewFromInt(v), Date: since.AddDate(0, 0, i).Format(time.DateOnly)})
	}
	return res, nil
}

type stubPrices struct {
	byCoin map[string]decimal.Decimal
	down   map[string]bool
}

func (p stubPrices) GetPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error) {
	if p.down[coinID] {
		return decimal.Zero, time.Time{}, errors.New("coingecko: 503 Service Unavailable")
	}
	v, ok := p.byCoin[coinID]
	if !ok {
		return decimal.Zero, time.Time{}, market.ErrUnknownCoin
	}
	return v, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (p stubPrices) PriceForName(ctx context.Context, name string) (decimal.Decimal, error) {
	id, ok := coins.Default().Resolve(name)
	if !ok {
		return decimal.Zero, market.ErrUnknownCoin
	}
	v, _, err := p.GetPrice(ctx, id)
	return v, err
}

type stubHistory struct {
	limited map[string]bool
}

func (s stubHistory) History(ctx context.Context, coinID string, days int) ([]models.PricePoint, error) {
	if coinID == "nope" {
		return nil, market.ErrUnknownCoin
	}
	return []models.PricePoint{{Timestamp: 1, Price: decimal.NewFromInt(10)}, {Timestamp: 2, Price: decimal.NewFromInt(11)}}, nil
}

func (s stubHistory) Refresh(ctx context.Context, coinID string, days int) error {
	if s.limited[coinID] {
		return service.ErrRateLimited
	}
	return nil
}

func (s stubHistory) CoinStatus(coinID string) service.CoinStatus {
	return service.CoinStatus{CoinID: coinID}
}

func (s stubHistory) Status() service.ServiceStatus { return service.ServiceStatus{} }

type stubMarkets struct{ calls int }

func (m *stubMarkets) TopCoins(ctx context.Context, limit int) ([]models.Coin, error) {
	m.calls++
	return []models.Coin{{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}}, nil
}

type testServer struct {
	r       *gin.Engine
	store   *memStore
	markets *stubMarkets
	tokens  *auth.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	ts := &testServer{
		r:       gin.New(),
		store:   newMemStore(),
		markets: &stubMarkets{},
		tokens:  auth.NewIssuer("test-secret", time.Hour),
	}
	prices := stubPrices{
		byCoin: map[string]decimal.Decimal{"bitcoin": decimal.NewFromInt(60000)},
		down:   map[string]bool{"solana": true},
	}
	hist := stubHistory{limited: map[string]bool{"ethereum": true}}
	NewHandler(ts.store, prices, hist, ts.markets, coins.Default(), ts.tokens, log).Routes(ts.r)
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func (ts *testServer) form(path string, vals url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	w := ts.form("/auth/register", url.Values{"username": {username}, "password": {"secret1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return w.Body.String()
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.register(t, "alice")
	claims, err := ts.tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	w := ts.form("/auth/register", url.Values{"username": {"alice"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.form("/auth/register", url.Values{"username": {"bob"}, "password": {"123"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.form("/auth/login", url.Values{"username": {"alice"}, "password": {"secret1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())

	w = ts.form("/auth/login", url.Values{"username": {"alice"}, "password": {"wrong!"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username or password", w.Body.String())

	w = ts.form("/auth/login", url.Values{"username": {"nobody"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAssets_RequireAuth(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/assets", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/assets", "garbage", nil).Code)
}

func TestAssetLifecycle(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.register(t, "alice")

	w := ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": " Bitcoin ", "quantity": 2, "pricePerUnit": 50000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a models.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, "Bitcoin", a.Name)

	w = ts.do(http.MethodGet, "/api/assets/total", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var total decimal.Decimal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &total))
	assert.True(t, total.Equal(decimal.NewFromInt(100000)), total.String())

	path := fmt.Sprintf("/api/assets/%d", a.ID)
	w = ts.do(http.MethodPut, path, tok, map[string]any{"name": "Bitcoin", "quantity": 3, "pricePerUnit": 50000})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPut, path+"/update-price", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.True(t, a.PricePerUnit.Equal(decimal.NewFromInt(60000)))

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, path, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, path, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/assets/abc", tok, nil).Code)
}

func TestUpdateAssetPrice_Errors(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.register(t, "alice")

	create := func(name string) string {
		w := ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": name, "quantity": 1, "pricePerUnit": 100})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var a models.Asset
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
		return fmt.Sprintf("/api/assets/%d/update-price", a.ID)
	}

	w := ts.do(http.MethodPut, create("Apple Stock"), tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Apple Stock is not a known coin")

	w = ts.do(http.MethodPut, create("Solana"), tok, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "no live price for Solana")

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/assets/999/update-price", tok, nil).Code)
}

func TestCreateAsset_Validation(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.register(t, "alice")

	w := ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": "Bitcoin", "quantity": 0, "pricePerUnit": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "quantity")

	w = ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": "  ", "quantity": 1, "pricePerUnit": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssets_ScopedToUser(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")

	w := ts.do(http.MethodPost, "/api/assets", alice, map[string]any{"name": "Bitcoin", "quantity": 1, "pricePerUnit": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodGet, "/api/assets", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/assets/1", bob, nil).Code)
}

func TestAssetsWithPrices_FallsBackToStored(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.register(t, "alice")
	ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": "Bitcoin", "quantity": 1, "pricePerUnit": 50000})
	ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": "Gold bar", "quantity": 1, "pricePerUnit": 1800})

	w := ts.do(http.MethodGet, "/api/assets/with-prices", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res []models.AssetWithPrice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res, 2)

	assert.True(t, res[0].LivePrice)
	assert.True(t, res[0].CurrentPrice.Equal(decimal.NewFromInt(60000)))
	assert.True(t, res[0].PriceChangePercent.Equal(decimal.NewFromInt(20)))

	assert.False(t, res[1].LivePrice)
	assert.True(t, res[1].CurrentPrice.Equal(decimal.NewFromInt(1800)))
	assert.True(t, res[1].PriceChange.IsZero())
}

func TestAnalyticsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.register(t, "alice")
	ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": "Bitcoin", "quantity": 1, "pricePerUnit": 150, "initialInvestment": 100})
	ts.do(http.MethodPost, "/api/assets", tok, map[string]any{"name": "Ethereum", "quantity": 1, "pricePerUnit": 50, "initialInvestment": 100})

	w := ts.do(http.MethodGet, "/api/assets/roi", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var roi decimal.Decimal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roi))
	assert.True(t, roi.IsZero(), roi.String())

	w = ts.do(http.MethodGet, "/api/assets/metrics", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m models.PortfolioMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, 2, m.AssetCount)
	assert.Equal(t, "Bitcoin", m.TopPerformer)
	assert.Equal(t, "Ethereum", m.WorstPerformer)
	assert.True(t, m.TotalValue.Equal(decimal.NewFromInt(200)))

	w = ts.do(http.MethodGet, "/api/assets/risk", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var r models.RiskMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Greater(t, r.Volatility, 0.0)
	assert.Less(t, r.MaxDrawdown, 0.0)
	assert.Greater(t, r.DiversificationScore, 0.0)

	w = ts.do(http.MethodGet, "/api/assets/performance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var perf []models.AssetPerformance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &perf))
	assert.Len(t, perf, 2)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/assets/sharpe", tok, nil).Code)
}

func TestTopCoins_Cached(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		w := ts.do(http.MethodGet, "/api/coins/top?limit=10", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, ts.markets.calls)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/coins/top?limit=x", "", nil).Code)
}

func TestCoinPrice(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/coins/bitcoin/price", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p coinPrice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "bitcoin", p.CoinID)
	assert.Equal(t, "60000", p.Price)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/coins/dogecoin/price", "", nil).Code)
}

func TestPriceHistoryRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/price-history/bitcoin?days=7", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ph models.PriceHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ph))
	assert.Equal(t, 7, ph.Days)
	assert.Len(t, ph.Data, 2)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/price-history/bitcoin?days=0", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/price-history/nope", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/price-history/refresh/bitcoin", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodPost, "/api/price-history/refresh/ethereum", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/price-history/status", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/price-history/debug/bitcoin", "", nil).Code)
}

func TestCORS_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:5173"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
