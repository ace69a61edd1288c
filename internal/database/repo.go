package database

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"coinfolio/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

const assetColumns = `id, user_id, name, quantity, price_per_unit, purchase_price_per_unit, initial_investment`

func (r *Repo) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	u := models.User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`, u.ID, u.Username, u.PasswordHash)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}
	return u, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, password_hash FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) CreateAsset(ctx context.Context, userID string, in models.AssetInput) (models.Asset, error) {
	var a models.Asset
	q := `INSERT INTO assets (user_id, name, quantity, price_per_unit, purchase_price_per_unit, initial_investment)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric) RETURNING ` + assetColumns
	if err := r.db.GetContext(ctx, &a, q, userID, in.Name, in.Quantity.String(), in.PricePerUnit.String(), in.PurchasePricePerUnit, in.InitialInvestment); err != nil {
		return models.Asset{}, err
	}
	return a, nil
}

func (r *Repo) ListAssets(ctx context.Context, userID string) ([]models.Asset, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE user_id = $1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Asset{}
	for rows.Next() {
		var a models.Asset
		if err := rows.StructScan(&a); err != nil {
			r.log.Warnf("scan asset failed: %v", err)
			continue
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r *Repo) GetAsset(ctx context.Context, userID string, id int64) (models.Asset, error) {
	var a models.Asset
	err := r.db.GetContext(ctx, &a, `SELECT `+assetColumns+` FROM assets WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrNotFound
	}
	return a, err
}

func (r *Repo) UpdateAsset(ctx context.Context, userID string, id int64, in models.AssetInput) (models.Asset, error) {
	var a models.Asset
	q := `UPDATE assets SET name = $3, quantity = $4::numeric, price_per_unit = $5::numeric,
		purchase_price_per_unit = $6::numeric, initial_investment = $7::numeric, updated_at = now()
		WHERE id = $1 AND user_id = $2 RETURNING ` + assetColumns
	err := r.db.GetContext(ctx, &a, q, id, userID, in.Name, in.Quantity.String(), in.PricePerUnit.String(), in.PurchasePricePerUnit, in.InitialInvestment)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrNotFound
	}
	return a, err
}

func (r *Repo) SetAssetPrice(ctx context.Context, userID string, id int64, price decimal.Decimal) (models.Asset, error) {
	var a models.Asset
	q := `UPDATE assets SET price_per_unit = $3::numeric, updated_at = now() WHERE id = $1 AND user_id = $2 RETURNING ` + assetColumns
	err := r.db.GetContext(ctx, &a, q, id, userID, price.String())
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrNotFound
	}
	return a, err
}

func (r *Repo) DeleteAsset(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) TotalValue(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(quantity * price_per_unit), 0) FROM assets WHERE user_id = $1`, userID)
	return total, err
}

// GetAllAssetNames lists the distinct asset names held by any user.
func (r *Repo) GetAllAssetNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT DISTINCT name FROM assets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			r.log.Warnf("scan asset name failed: %v", err)
			continue
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r *Repo) GetLatestPrice(ctx context.Context, coinID string) (decimal.Decimal, time.Time, error) {
	var row PriceRow
	err := r.db.GetContext(ctx, &row, `SELECT coin_id, price_usd, timestamp FROM price_history WHERE coin_id = $1 ORDER BY timestamp DESC LIMIT 1`, coinID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, time.Time{}, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return row.Price, row.Timestamp, nil
}

func (r *Repo) UpsertPrice(ctx context.Context, coinID string, price decimal.Decimal, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO price_history (coin_id, price_usd, timestamp) VALUES ($1, $2::numeric, $3)
		ON CONFLICT (coin_id, timestamp) DO UPDATE SET price_usd = EXCLUDED.price_usd`, coinID, price.String(), ts)
	return err
}

// UpsertPrices stores a series in one transaction.
func (r *Repo) UpsertPrices(ctx context.Context, coinID string, points []models.PricePoint) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := `INSERT INTO price_history (coin_id, price_usd, timestamp) VALUES ($1, $2::numeric, $3)
		ON CONFLICT (coin_id, timestamp) DO UPDATE SET price_usd = EXCLUDED.price_usd`
	for _, p := range points {
		if _, err := tx.ExecContext(ctx, q, coinID, p.Price.String(), time.UnixMilli(p.Timestamp).UTC()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DailyCloses returns the last recorded price of each UTC day since since.
func (r *Repo) DailyCloses(ctx context.Context, coinID string, since time.Time) ([]DailyClose, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT DISTINCT ON (date_trunc('day', timestamp AT TIME ZONE 'UTC'))
			date_trunc('day', timestamp AT TIME ZONE 'UTC') AS day, price_usd
		FROM price_history
		WHERE coin_id = $1 AND timestamp >= $2
		ORDER BY date_trunc('day', timestamp AT TIME ZONE 'UTC'), timestamp DESC`, coinID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []DailyClose{}
	for rows.Next() {
		var d DailyClose
		if err := rows.StructScan(&d); err != nil {
			r.log.Warnf("scan daily close failed: %v", err)
			continue
		}
		d.Day = time.Date(d.Day.Year(), d.Day.Month(), d.Day.Day(), 0, 0, 0, 0, time.UTC)
		res = append(res, d)
	}
	return res, rows.Err()
}

// DailyValuations values the given holdings (coin id -> quantity) on every
// day from since to yesterday, carrying the last known close forward. Days
// before any coin has a price are skipped.
func (r *Repo) DailyValuations(ctx context.Context, holdings map[string]decimal.Decimal, since time.Time) ([]DailyValuation, error) {
	closes := map[string][]DailyClose{}
	for coinID := range holdings {
		c, err := r.DailyCloses(ctx, coinID, since)
		if err != nil {
			r.log.Warnf("daily closes for %s failed: %v", coinID, err)
			continue
		}
		closes[coinID] = c
	}
	end := time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	return combineDaily(holdings, closes, since.UTC().Truncate(24*time.Hour), end), nil
}

func combineDaily(holdings map[string]decimal.Decimal, closes map[string][]DailyClose, start, end time.Time) []DailyValuation {
	res := []DailyValuation{}
	if start.After(end) {
		return res
	}
	coinIDs := make([]string, 0, len(holdings))
	for id := range holdings {
		coinIDs = append(coinIDs, id)
	}
	sort.Strings(coinIDs)

	next := map[string]int{}
	last := map[string]decimal.Decimal{}
	for d := start; !d.After(end); d = d.Add(24 * time.Hour) {
		priced := false
		total := decimal.Zero
		for _, id := range coinIDs {
			series := closes[id]
			for next[id] < len(series) && !series[next[id]].Day.After(d) {
				last[id] = series[next[id]].Price
				next[id]++
			}
			if p, ok := last[id]; ok {
				total = total.Add(holdings[id].Mul(p))
				priced = true
			}
		}
		if priced {
			res = append(res, DailyValuation{Date: d.Format("2006-01-02"), TotalUSD: total})
		}
	}
	return res
}
