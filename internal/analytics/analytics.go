// Package analytics computes portfolio returns and risk figures.
package analytics

import (
	"math"

	"coinfolio/internal/models"

	"github.com/shopspring/decimal"
)

const daysPerYear = 365

var hundred = decimal.NewFromInt(100)

type Totals struct {
	Value      decimal.Decimal
	Investment decimal.Decimal
	ROI        decimal.Decimal
	// ROIPercentage is a fraction: 0.25 means +25%.
	ROIPercentage decimal.Decimal
}

// Summarize totals the current value and cost of assets.
func Summarize(assets []models.Asset) Totals {
	var t Totals
	for _, a := range assets {
		t.Value = t.Value.Add(a.Value())
		t.Investment = t.Investment.Add(a.Investment())
	}
	t.ROI = t.Value.Sub(t.Investment)
	if t.Investment.IsPositive() {
		t.ROIPercentage = t.ROI.DivRound(t.Investment, 8)
	}
	return t
}

// Performance breaks the portfolio down per asset; weights are percentages
// of the total value.
func Performance(assets []models.Asset) []models.AssetPerformance {
	total := Summarize(assets).Value
	res := make([]models.AssetPerformance, 0, len(assets))
	for _, a := range assets {
		value, invest := a.Value(), a.Investment()
		p := models.AssetPerformance{
			ID:                a.ID,
			Name:              a.Name,
			CurrentValue:      value,
			InitialInvestment: invest,
			ROI:               value.Sub(invest),
		}
		if invest.IsPositive() {
			p.ROIPercentage = p.ROI.DivRound(invest, 8)
		}
		if total.IsPositive() {
			p.Weight = value.Div(total).Mul(hundred).Round(4)
		}
		res = append(res, p)
	}
	return res
}

// Performers returns the names of the best and worst assets by ROI
// percentage, "N/A" for an empty portfolio.
func Performers(perf []models.AssetPerformance) (top, worst string) {
	if len(perf) == 0 {
		return "N/A", "N/A"
	}
	best, low := perf[0], perf[0]
	for _, p := range perf[1:] {
		if p.ROIPercentage.GreaterThan(best.ROIPercentage) {
			best = p
		}
		if p.ROIPercentage.LessThan(low.ROIPercentage) {
			low = p
		}
	}
	return best.Name, low.Name
}

// Returns converts a value series into simple period returns. Periods
// starting from a zero value are skipped.
func Returns(values []float64) []float64 {
	res := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		res = append(res, values[i]/values[i-1]-1)
	}
	return res
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stddev is the sample standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var s float64
	for _, x := range xs {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(xs)-1))
}

// Volatility annualises the standard deviation of daily returns.
func Volatility(daily []float64) float64 {
	return stddev(daily) * math.Sqrt(daysPerYear)
}

// Sharpe is the annualised excess return per unit of volatility; 0 when
// the series has no volatility.
func Sharpe(daily []float64, riskFree float64) float64 {
	vol := Volatility(daily)
	if vol == 0 {
		return 0
	}
	return (mean(daily)*daysPerYear - riskFree) / vol
}

// MaxDrawdown is the deepest peak-to-trough fall of values as a negative
// fraction, 0 when the series never falls.
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Beta of paired returns: returns[i] and benchmark[i] cover the same
// period. 1 when there are fewer than two pairs or the benchmark is flat.
func Beta(returns, benchmark []float64) float64 {
	n := min(len(returns), len(benchmark))
	if n < 2 {
		return 1
	}
	r, b := returns[:n], benchmark[:n]
	mr, mb := mean(r), mean(b)
	var cov, varb float64
	for i := 0; i < n; i++ {
		cov += (r[i] - mr) * (b[i] - mb)
		varb += (b[i] - mb) * (b[i] - mb)
	}
	if varb == 0 {
		return 1
	}
	return cov / varb
}

// Point is one value of a daily series. Date is YYYY-MM-DD.
type Point struct {
	Date  string
	Value float64
}

// Values drops the dates of points.
func Values(points []Point) []float64 {
	res := make([]float64, len(points))
	for i, p := range points {
		res[i] = p.Value
	}
	return res
}

type period struct{ from, to string }

// AlignedReturns pairs the returns of values and benchmark over the periods
// both series cover with the same start and end date, in the order of
// values. Periods starting from zero are skipped in either series.
func AlignedReturns(values, benchmark []Point) (r, b []float64) {
	bench := make(map[period]float64, len(benchmark))
	for i := 1; i < len(benchmark); i++ {
		if prev := benchmark[i-1]; prev.Value != 0 {
			bench[period{prev.Date, benchmark[i].Date}] = benchmark[i].Value/prev.Value - 1
		}
	}
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev.Value == 0 {
			continue
		}
		br, ok := bench[period{prev.Date, values[i].Date}]
		if !ok {
			continue
		}
		r = append(r, values[i].Value/prev.Value-1)
		b = append(b, br)
	}
	return r, b
}

// Diversification scores weight concentration from 0 (one asset) towards 10
// (many equally weighted assets): 10 × (1 − Σ w²).
func Diversification(perf []models.AssetPerformance) float64 {
	if len(perf) == 0 {
		return 0
	}
	var hhi float64
	for _, p := range perf {
		w := p.Weight.Div(hundred).InexactFloat64()
		hhi += w * w
	}
	return math.Round(10*(1-hhi)*100) / 100
}

// Risk assembles the risk figures from a daily portfolio value series and a
// daily benchmark value series. Beta only uses days present in both.
func Risk(values, benchmark []Point, perf []models.AssetPerformance, riskFree float64) models.RiskMetrics {
	series := Values(values)
	daily := Returns(series)
	return models.RiskMetrics{
		SharpeRatio:          Sharpe(daily, riskFree),
		Volatility:           Volatility(daily),
		MaxDrawdown:          MaxDrawdown(series),
		Beta:                 Beta(AlignedReturns(values, benchmark)),
		DiversificationScore: Diversification(perf),
	}
}
