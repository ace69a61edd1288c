package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAsset = errors.New("invalid asset")

type Asset struct {
	ID                   int64            `db:"id" json:"id"`
	UserID               string           `db:"user_id" json:"-"`
	Name                 string           `db:"name" json:"name"`
	Quantity             decimal.Decimal  `db:"quantity" json:"quantity"`
	PricePerUnit         decimal.Decimal  `db:"price_per_unit" json:"pricePerUnit"`
	PurchasePricePerUnit *decimal.Decimal `db:"purchase_price_per_unit" json:"purchasePricePerUnit,omitempty"`
	InitialInvestment    *decimal.Decimal `db:"initial_investment" json:"initialInvestment,omitempty"`
}

// Value is quantity × pricePerUnit, unrounded.
func (a Asset) Value() decimal.Decimal {
	return a.Quantity.Mul(a.PricePerUnit)
}

// Investment is what was paid for the holding: the recorded initial
// investment, else quantity × purchase price, else the current value.
func (a Asset) Investment() decimal.Decimal {
	if a.InitialInvestment != nil {
		return *a.InitialInvestment
	}
	if a.PurchasePricePerUnit != nil {
		return a.Quantity.Mul(*a.PurchasePricePerUnit)
	}
	return a.Value()
}

// AssetInput is the payload for creating or replacing an asset.
type AssetInput struct {
	Name                 string           `json:"name" binding:"required"`
	Quantity             decimal.Decimal  `json:"quantity"`
	PricePerUnit         decimal.Decimal  `json:"pricePerUnit"`
	PurchasePricePerUnit *decimal.Decimal `json:"purchasePricePerUnit,omitempty"`
	InitialInvestment    *decimal.Decimal `json:"initialInvestment,omitempty"`
}

// Validate reports the first problem with the input. Checked before any
// network call and again by the API.
func (in AssetInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAsset)
	}
	if !in.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than 0", ErrInvalidAsset)
	}
	if !in.PricePerUnit.IsPositive() {
		return fmt.Errorf("%w: price per unit must be greater than 0", ErrInvalidAsset)
	}
	if in.PurchasePricePerUnit != nil && in.PurchasePricePerUnit.IsNegative() {
		return fmt.Errorf("%w: purchase price must not be negative", ErrInvalidAsset)
	}
	if in.InitialInvestment != nil && in.InitialInvestment.IsNegative() {
		return fmt.Errorf("%w: initial investment must not be negative", ErrInvalidAsset)
	}
	return nil
}

// Normalized returns a copy with the name trimmed.
func (in AssetInput) Normalized() AssetInput {
	in.Name = strings.TrimSpace(in.Name)
	return in
}

func (a Asset) Input() AssetInput {
	return AssetInput{
		Name:                 a.Name,
		Quantity:             a.Quantity,
		PricePerUnit:         a.PricePerUnit,
		PurchasePricePerUnit: a.PurchasePricePerUnit,
		InitialInvestment:    a.InitialInvestment,
	}
}

// AssetWithPrice is an asset annotated with a transient market price.
// LivePrice is false when CurrentPrice was synthesised from the stored price,
// which means the live price is unknown, not that it did not move.
type AssetWithPrice struct {
	Asset
	CurrentPrice       decimal.Decimal `json:"currentPrice"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
	LivePrice          bool            `json:"livePrice"`
}

// WithPrice annotates a with a live price.
func WithPrice(a Asset, current decimal.Decimal) AssetWithPrice {
	change := current.Sub(a.PricePerUnit)
	pct := decimal.Zero
	if !a.PricePerUnit.IsZero() {
		pct = change.Div(a.PricePerUnit).Mul(decimal.NewFromInt(100))
	}
	return AssetWithPrice{Asset: a, CurrentPrice: current, PriceChange: change, PriceChangePercent: pct, LivePrice: true}
}

// WithStoredPrice is the fallback view: current price equals the stored one.
func WithStoredPrice(a Asset) AssetWithPrice {
	return AssetWithPrice{Asset: a, CurrentPrice: a.PricePerUnit, PriceChange: decimal.Zero, PriceChangePercent: decimal.Zero}
}

// Coin is a market snapshot of one instrument.
type Coin struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image,omitempty"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	PriceChangePercentage24h decimal.Decimal `json:"price_change_percentage_24h"`
}

type PricePoint struct {
	Timestamp int64           `json:"timestamp"` // unix millis
	Price     decimal.Decimal `json:"price"`
}

type PriceHistory struct {
	CoinID string       `json:"coinId"`
	Days   int          `json:"days"`
	Data   []PricePoint `json:"data"`
}

type PortfolioMetrics struct {
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalInvestment decimal.Decimal `json:"totalInvestment"`
	ROI             decimal.Decimal `json:"roi"`
	ROIPercentage   decimal.Decimal `json:"roiPercentage"`
	SharpeRatio     float64         `json:"sharpeRatio"`
	Volatility      float64         `json:"volatility"`
	AssetCount      int             `json:"assetCount"`
	TopPerformer    string          `json:"topPerformer"`
	WorstPerformer  string          `json:"worstPerformer"`
}

type AssetPerformance struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	CurrentValue      decimal.Decimal `json:"currentValue"`
	InitialInvestment decimal.Decimal `json:"initialInvestment"`
	ROI               decimal.Decimal `json:"roi"`
	ROIPercentage     decimal.Decimal `json:"roiPercentage"`
	Weight            decimal.Decimal `json:"weight"`
}

type RiskMetrics struct {
	SharpeRatio          float64 `json:"sharpeRatio"`
	Volatility           float64 `json:"volatility"`
	MaxDrawdown          float64 `json:"maxDrawdown"`
	Beta                 float64 `json:"beta"`
	DiversificationScore float64 `json:"diversificationScore"`
}

type User struct {
	ID           string `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
}
