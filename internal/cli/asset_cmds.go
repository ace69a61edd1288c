package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"coinfolio/internal/models"
	"coinfolio/internal/view"

	"github.com/google/subcommands"
)

type assetsCmd struct{ app *App }

func (*assetsCmd) Name() string             { return "assets" }
func (*assetsCmd) Synopsis() string         { return "list holdings with live prices" }
func (*assetsCmd) Usage() string            { return "assets\n" }
func (*assetsCmd) SetFlags(f *flag.FlagSet) {}

func (c *assetsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	assets, err := c.app.API.AssetsWithPrices(ctx)
	if err != nil {
		return c.app.fail("list assets", err)
	}
	return c.app.show(view.Assets(assets, c.app.Coins))
}

// assetFlags are shared by add and edit.
type assetFlags struct {
	name       string
	quantity   decimalFlag
	price      decimalFlag
	purchase   decimalFlag
	investment decimalFlag
}

func (a *assetFlags) set(f *flag.FlagSet) {
	f.StringVar(&a.name, "name", "", "asset name, e.g. Bitcoin")
	f.Var(&a.quantity, "qty", "quantity held")
	f.Var(&a.price, "price", "price per unit in USD")
	f.Var(&a.purchase, "purchase", "purchase price per unit in USD")
	f.Var(&a.investment, "invested", "total amount invested in USD")
}

// apply overwrites the fields of in that were given on the command line.
func (a *assetFlags) apply(in *models.AssetInput) {
	if a.name != "" {
		in.Name = a.name
	}
	if a.quantity.set {
		in.Quantity = a.quantity.v
	}
	if a.price.set {
		in.PricePerUnit = a.price.v
	}
	if a.purchase.set {
		in.PurchasePricePerUnit = a.purchase.ptr()
	}
	if a.investment.set {
		in.InitialInvestment = a.investment.ptr()
	}
}

type addCmd struct {
	app *App
	assetFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a holding" }
func (*addCmd) Usage() string {
	return `add -name <name> -qty <quantity> -price <usd> [-purchase <usd>] [-invested <usd>]

  Names the market knows (Bitcoin, ETH, ...) get live prices.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) { c.assetFlags.set(f) }

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	var in models.AssetInput
	c.apply(&in)
	a, err := c.app.API.AddAsset(ctx, in)
	if err != nil {
		return c.app.fail("add asset", err)
	}
	c.app.Notes.Success("added %s (#%d), value %s", a.Name, a.ID, view.USD(a.Value()))
	if !c.app.Coins.IsRecognized(a.Name) {
		c.app.Log.Infof("%q is not a known coin, its price will not be tracked", a.Name)
	}
	return subcommands.ExitSuccess
}

type editCmd struct {
	app *App
	assetFlags
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change a holding" }
func (*editCmd) Usage() string {
	return `edit [-name <name>] [-qty <quantity>] [-price <usd>] [-purchase <usd>] [-invested <usd>] <id>

  Only the given fields change.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) { c.assetFlags.set(f) }

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := parseID(f)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	a, err := c.app.API.GetAsset(ctx, id)
	if err != nil {
		return c.app.fail("edit asset", err)
	}

	st := view.NewEditState(a)
	st.Begin()
	c.apply(&st.Draft)
	in, err := st.Save()
	if err != nil {
		st.Cancel()
		return c.app.fail("edit asset", err)
	}
	updated, err := c.app.API.UpdateAsset(ctx, id, in)
	if err != nil {
		return c.app.fail("edit asset", err)
	}
	st.Commit(updated)
	c.app.Notes.Success("updated %s (#%d)", updated.Name, updated.ID)
	return subcommands.ExitSuccess
}

type deleteCmd struct{ app *App }

func (*deleteCmd) Name() string             { return "delete" }
func (*deleteCmd) Synopsis() string         { return "remove a holding" }
func (*deleteCmd) Usage() string            { return "delete <id>\n" }
func (*deleteCmd) SetFlags(f *flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id, err := parseID(f)
	if err != nil {
		fmt.Fprintf(c.app.Err, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	if _, err := c.app.API.DeleteAsset(ctx, id); err != nil {
		return c.app.fail("delete asset", err)
	}
	c.app.Notes.Success("deleted asset #%d", id)
	return subcommands.ExitSuccess
}

type summaryCmd struct{ app *App }

func (*summaryCmd) Name() string             { return "summary" }
func (*summaryCmd) Synopsis() string         { return "show the total value from stored prices" }
func (*summaryCmd) Usage() string            { return "summary\n" }
func (*summaryCmd) SetFlags(f *flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	assets, err := c.app.API.ListAssets(ctx)
	if err != nil {
		return c.app.fail("summary", err)
	}
	return c.app.show(view.Summary(assets))
}

type pricesCmd struct{ app *App }

func (*pricesCmd) Name() string             { return "prices" }
func (*pricesCmd) Synopsis() string         { return "reprice crypto holdings from the market" }
func (*pricesCmd) Usage() string            { return "prices\n" }
func (*pricesCmd) SetFlags(f *flag.FlagSet) {}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.app.requireLogin() {
		return subcommands.ExitFailure
	}
	assets, err := c.app.API.ListAssets(ctx)
	if err != nil {
		return c.app.fail("prices", err)
	}
	var updated, failed []string
	for _, a := range assets {
		if !c.app.Coins.IsRecognized(a.Name) {
			continue
		}
		got, err := c.app.API.UpdateAssetPrice(ctx, a.ID)
		if err != nil {
			c.app.Log.Warnf("reprice %s: %v", a.Name, err)
			failed = append(failed, a.Name)
			continue
		}
		updated = append(updated, fmt.Sprintf("%s %s", got.Name, view.Price(got.PricePerUnit)))
	}
	if len(updated) > 0 {
		c.app.Notes.Success("repriced %s", strings.Join(updated, ", "))
	}
	if len(failed) > 0 {
		c.app.Notes.Error("no live price for %s", strings.Join(failed, ", "))
		return subcommands.ExitFailure
	}
	if len(updated) == 0 {
		c.app.Notes.Success("no crypto holdings to reprice")
	}
	return subcommands.ExitSuccess
}
