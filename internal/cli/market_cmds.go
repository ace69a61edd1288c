package cli

import (
	"context"
	"flag"
	"fmt"

	"coinfolio/internal/view"

	"github.com/google/subcommands"
)

type coinsCmd struct {
	app    *App
	search string
	page   int
	limit  int
}

func (*coinsCmd) Name() string     { return "coins" }
func (*coinsCmd) Synopsis() string { return "browse the top coins by market cap" }
func (*coinsCmd) Usage() string {
	return `coins [-search <text>] [-page <n>] [-limit <n>]
`
}

func (c *coinsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.search, "search", "", "filter by name, symbol or id")
	f.IntVar(&c.page, "page", 1, "page to show, 50 coins per page")
	f.IntVar(&c.limit, "limit", 300, "number of coins to load")
}

func (c *coinsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	list, err := c.app.API.TopCoins(ctx, c.limit)
	if err != nil {
		return c.app.fail("load coins", err)
	}
	b := view.NewCoinBrowser(list)
	if c.search != "" {
		b.Search(c.search)
	}
	b.Pager.SetPage(c.page)
	return c.app.show(view.Coins(b))
}

type historyCmd struct {
	app  *App
	days int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show the daily price of a coin" }
func (*historyCmd) Usage() string {
	return `history [-days <n>] <coin>

  coin may be an id, symbol or name: bitcoin, BTC, Bitcoin.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 30, "number of days, at most 365")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.app.Err, "Error: expected one coin.")
		return subcommands.ExitUsageError
	}
	id, ok := c.app.Coins.Resolve(f.Arg(0))
	if !ok {
		id = f.Arg(0)
	}
	h, err := c.app.API.PriceHistory(ctx, id, c.days)
	if err != nil {
		return c.app.fail("price history", err)
	}
	return c.app.show(view.PriceHistory(h))
}

type analyticsCmd struct{ app *App }

func (*analyticsCmd) Name() string             { return "analytics" }
func (*analyticsCmd) Synopsis() string         { return "show returns and risk of the portfolio" }
func (*analyticsCmd) Usage() string            { return "analytics\n" }
func (*analyticsCmd) SetFlags(f *flag.FlagSet) {}

func (c *analyticsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	m, err := c.app.API.Metrics(ctx)
	if err != nil {
		return c.app.fail("analytics", err)
	}
	risk, err := c.app.API.Risk(ctx)
	if err != nil {
		return c.app.fail("analytics", err)
	}
	perf, err := c.app.API.Performance(ctx)
	if err != nil {
		return c.app.fail("analytics", err)
	}
	return c.app.show(view.Analytics(m, risk, perf))
}

type resolveCmd struct {
	app   *App
	exact bool
	list  bool
}

func (*resolveCmd) Name() string     { return "resolve" }
func (*resolveCmd) Synopsis() string { return "map names to coin ids" }
func (*resolveCmd) Usage() string {
	return `resolve [-exact] <name>...
resolve -list

  Prints the coin id each name resolves to, or "-" when none does.
`
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.exact, "exact", false, "only exact id, symbol, name or alias matches")
	f.BoolVar(&c.list, "list", false, "list the known coins")
}

func (c *resolveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list {
		for _, m := range c.app.Catalog.Available() {
			fmt.Fprintf(c.app.Out, "%s\t%s\t%s\n", m.ID, m.Symbol, m.Name)
		}
		return subcommands.ExitSuccess
	}
	if f.NArg() == 0 {
		fmt.Fprintln(c.app.Err, "Error: expected at least one name.")
		return subcommands.ExitUsageError
	}
	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		resolve := c.app.Catalog.Resolve
		if c.exact {
			resolve = c.app.Catalog.ResolveExact
		}
		id, ok := resolve(name)
		if !ok {
			id, status = "-", subcommands.ExitFailure
		}
		fmt.Fprintf(c.app.Out, "%s\t%s\n", name, id)
	}
	return status
}
