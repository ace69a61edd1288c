package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"coinfolio/internal/coins"
	"coinfolio/internal/models"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

// Total is Σ quantity × price over assets, exact.
func Total(assets []models.Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(a.Value())
	}
	return total
}

type renderer struct {
	*strings.Builder
}

func newRenderer() renderer { return renderer{&strings.Builder{}} }

func (r renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r, format, args...)
}

// Assets renders the holdings table. Rows whose name the resolver knows are
// tagged with their coin id; a price marked "stored" is not a live quote.
func Assets(assets []models.AssetWithPrice, resolver coins.Resolver) string {
	r := newRenderer()
	r.Printf("## Holdings\n\n")
	if len(assets) == 0 {
		r.Printf("No assets yet. Add one with `folio add`.\n")
		return r.String()
	}
	r.Printf("| ID | Name | Coin | Quantity | Price | Current | Change | Value |\n")
	r.Printf("|---:|:---|:---|---:|---:|---:|---:|---:|\n")
	total := decimal.Zero
	for _, a := range assets {
		coin := "-"
		if id, ok := resolver.Resolve(a.Name); ok {
			coin = id
		}
		current, change := Price(a.CurrentPrice), Percent(a.PriceChangePercent)
		if !a.LivePrice {
			current += " (stored)"
			change = "n/a"
		}
		value := a.Quantity.Mul(a.CurrentPrice)
		total = total.Add(value)
		r.Printf("| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			a.ID, escape(a.Name), coin, a.Quantity.String(), Price(a.PricePerUnit), current, change, USD(value))
	}
	r.Printf("\n**Market value:** %s\n", USD(total))
	return r.String()
}

// Summary renders the portfolio total from stored prices.
func Summary(assets []models.Asset) string {
	r := newRenderer()
	r.Printf("## Summary\n\n")
	r.Printf("| Name | Quantity | Price | Value |\n")
	r.Printf("|:---|---:|---:|---:|\n")
	for _, a := range assets {
		r.Printf("| %s | %s | %s | %s |\n", escape(a.Name), a.Quantity.String(), Price(a.PricePerUnit), USD(a.Value()))
	}
	r.Printf("\n**Assets:** %d  \n**Total value:** %s\n", len(assets), USD(Total(assets)))
	return r.String()
}

// Coins renders the current page of the market browser.
func Coins(b *CoinBrowser) string {
	r := newRenderer()
	r.Printf("## Market\n\n")
	if b.Term() != "" {
		r.Printf("%d matches for `%s`\n\n", b.Matches(), b.Term())
	}
	r.Printf("| # | Coin | Symbol | Price | 24h | Market cap |\n")
	r.Printf("|---:|:---|:---|---:|---:|---:|\n")
	lo, _ := b.Pager.Bounds()
	for i, c := range b.Current() {
		r.Printf("| %d | %s | %s | %s | %s | %s |\n",
			lo+i+1, escape(c.Name), strings.ToUpper(c.Symbol), Price(c.CurrentPrice), Percent(c.PriceChangePercentage24h), USD(c.MarketCap))
	}
	r.Printf("\nPage %d of %d\n", b.Pager.Page(), b.Pager.Pages())
	return r.String()
}

// PriceHistory renders a price series with its range and overall change.
func PriceHistory(h models.PriceHistory) string {
	r := newRenderer()
	r.Printf("## %s, last %d days\n\n", h.CoinID, h.Days)
	if len(h.Data) == 0 {
		r.Printf("No price data.\n")
		return r.String()
	}
	low, high := h.Data[0].Price, h.Data[0].Price
	for _, p := range h.Data {
		low = decimal.Min(low, p.Price)
		high = decimal.Max(high, p.Price)
	}
	first, last := h.Data[0].Price, h.Data[len(h.Data)-1].Price
	r.Printf("**Low:** %s  \n**High:** %s  \n", Price(low), Price(high))
	if first.IsPositive() {
		r.Printf("**Change:** %s\n\n", Percent(last.Sub(first).Div(first).Shift(2)))
	}
	r.Printf("| Date | Price |\n|:---|---:|\n")
	for _, p := range h.Data {
		r.Printf("| %s | %s |\n", time.UnixMilli(p.Timestamp).UTC().Format(time.DateOnly), Price(p.Price))
	}
	return r.String()
}

// Analytics renders the metrics, risk and per-asset breakdown.
func Analytics(m models.PortfolioMetrics, risk models.RiskMetrics, perf []models.AssetPerformance) string {
	r := newRenderer()
	r.Printf("## Portfolio analytics\n\n")
	r.Printf("| Metric | Value |\n|:---|---:|\n")
	r.Printf("| Total value | %s |\n", USD(m.TotalValue))
	r.Printf("| Total investment | %s |\n", USD(m.TotalInvestment))
	r.Printf("| ROI | %s (%s) |\n", USD(m.ROI), Fraction(m.ROIPercentage))
	r.Printf("| Assets | %d |\n", m.AssetCount)
	r.Printf("| Top performer | %s |\n", escape(m.TopPerformer))
	r.Printf("| Worst performer | %s |\n\n", escape(m.WorstPerformer))

	r.Printf("### Risk\n\n| Metric | Value |\n|:---|---:|\n")
	r.Printf("| Sharpe ratio | %.2f |\n", risk.SharpeRatio)
	r.Printf("| Volatility | %.2f%% |\n", risk.Volatility*100)
	r.Printf("| Max drawdown | %.2f%% |\n", risk.MaxDrawdown*100)
	r.Printf("| Beta | %.2f |\n", risk.Beta)
	r.Printf("| Diversification | %.2f / 10 |\n\n", risk.DiversificationScore)

	if len(perf) == 0 {
		return r.String()
	}
	r.Printf("### Assets\n\n| Name | Value | Invested | ROI | Weight |\n|:---|---:|---:|---:|---:|\n")
	for _, p := range perf {
		r.Printf("| %s | %s | %s | %s | %s%% |\n",
			escape(p.Name), USD(p.CurrentValue), USD(p.InitialInvestment), Fraction(p.ROIPercentage), p.Weight.StringFixed(2))
	}
	return r.String()
}

func escape(s string) string { return strings.ReplaceAll(s, "|", `\|`) }

// Display writes md to w, styled for a terminal unless plain is set.
func Display(w io.Writer, md string, plain bool) error {
	if plain {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
