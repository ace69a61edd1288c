// Package market fetches instrument snapshots and price series from the
// CoinGecko API.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coinfolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var ErrUnknownCoin = errors.New("unknown coin")

// Feed is the subset of the market API the services depend on.
type Feed interface {
	TopCoins(ctx context.Context, limit int) ([]models.Coin, error)
	Price(ctx context.Context, coinID string) (decimal.Decimal, error)
	MarketChart(ctx context.Context, coinID string, days int) ([]models.PricePoint, error)
}

type CoinGecko struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Logger
}

// NewCoinGecko builds a client limited to rps requests per second.
func NewCoinGecko(baseURL, apiKey string, rps float64, log *logrus.Logger) *CoinGecko {
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}
}

var _ Feed = (*CoinGecko)(nil)

// TopCoins returns up to limit coins ordered by market cap. CoinGecko
// serves at most 250 per page.
func (c *CoinGecko) TopCoins(ctx context.Context, limit int) ([]models.Coin, error) {
	perPage := min(250, limit)
	res := make([]models.Coin, 0, limit)
	for page := 1; len(res) < limit; page++ {
		q := url.Values{
			"vs_currency": {"usd"},
			"order":       {"market_cap_desc"},
			"per_page":    {strconv.Itoa(perPage)},
			"page":        {strconv.Itoa(page)},
			"sparkline":   {"false"},
		}
		var batch []models.Coin
		if err := c.get(ctx, "/coins/markets", q, &batch); err != nil {
			return nil, err
		}
		res = append(res, batch[:min(len(batch), limit-len(res))]...)
		if len(batch) < perPage {
			break
		}
	}
	return res, nil
}

func (c *CoinGecko) Price(ctx context.Context, coinID string) (decimal.Decimal, error) {
	q := url.Values{"ids": {coinID}, "vs_currencies": {"usd"}}
	var body map[string]map[string]decimal.Decimal
	if err := c.get(ctx, "/simple/price", q, &body); err != nil {
		return decimal.Zero, err
	}
	p, ok := body[coinID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCoin, coinID)
	}
	return p, nil
}

// MarketChart returns daily [timestamp, price] points over the last days.
func (c *CoinGecko) MarketChart(ctx context.Context, coinID string, days int) ([]models.PricePoint, error) {
	q := url.Values{"vs_currency": {"usd"}, "days": {strconv.Itoa(days)}, "interval": {"daily"}}
	var body struct {
		Prices [][2]json.Number `json:"prices"`
	}
	if err := c.get(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", q, &body); err != nil {
		return nil, err
	}
	if len(body.Prices) == 0 {
		return nil, fmt.Errorf("empty prices for %s", coinID)
	}
	points := make([]models.PricePoint, 0, len(body.Prices))
	for _, e := range body.Prices {
		ts, err := e[0].Float64()
		if err != nil {
			c.log.Warnf("bad timestamp %q for %s", e[0], coinID)
			continue
		}
		p, err := decimal.NewFromString(e[1].String())
		if err != nil {
			c.log.Warnf("bad price %q for %s", e[1], coinID)
			continue
		}
		points = append(points, models.PricePoint{Timestamp: int64(ts), Price: p})
	}
	return points, nil
}

func (c *CoinGecko) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}
	c.log.Debugf("coingecko GET %s", req.URL)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrUnknownCoin, path)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("coingecko %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko %s: decode: %w", path, err)
	}
	return nil
}
