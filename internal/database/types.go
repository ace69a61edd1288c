package database

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("username already taken")
)

type DailyValuation struct {
	TotalUSD decimal.Decimal `db:"total_usd" json:"total_usd"`
	Date     string          `db:"date" json:"date"`
}

type DailyClose struct {
	Day   time.Time       `db:"day" json:"day"`
	Price decimal.Decimal `db:"price_usd" json:"price"`
}

type PriceRow struct {
	CoinID    string          `db:"coin_id" json:"coin_id"`
	Price     decimal.Decimal `db:"price_usd" json:"price_usd"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}
