// Package cli implements the folio terminal client.
package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"coinfolio/internal/client"
	"coinfolio/internal/coins"
	"coinfolio/internal/session"
	"coinfolio/internal/view"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// App is what every command shares.
type App struct {
	API     *client.Client
	Session *session.Session
	Coins   coins.Resolver
	Catalog *coins.Catalog
	Notes   *view.Notifier
	Log     *logrus.Logger

	Out   io.Writer
	Err   io.Writer
	In    io.Reader
	Plain bool

	lines *bufio.Reader
}

// Commands lists the commands in the order they are registered.
func Commands(app *App) []subcommands.Command {
	return []subcommands.Command{
		&registerCmd{app: app},
		&loginCmd{app: app},
		&logoutCmd{app: app},
		&whoamiCmd{app: app},
		&assetsCmd{app: app},
		&addCmd{app: app},
		&editCmd{app: app},
		&deleteCmd{app: app},
		&summaryCmd{app: app},
		&pricesCmd{app: app},
		&coinsCmd{app: app},
		&historyCmd{app: app},
		&analyticsCmd{app: app},
		&resolveCmd{app: app},
	}
}

func (a *App) show(md string) subcommands.ExitStatus {
	if err := view.Display(a.Out, md, a.Plain); err != nil {
		a.Notes.Error("render: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// fail queues err as an error toast. A rejected token is dropped so the
// next command starts signed out.
func (a *App) fail(action string, err error) subcommands.ExitStatus {
	if client.IsUnauthorized(err) && a.Session.IsAuthenticated() {
		if lerr := a.Session.Logout(); lerr != nil {
			a.Log.Warnf("clear session: %v", lerr)
		}
		a.Notes.Error("%s: session expired, run `folio login`", action)
		return subcommands.ExitFailure
	}
	a.Notes.Error("%s: %v", action, err)
	return subcommands.ExitFailure
}

func (a *App) requireLogin() bool {
	if a.Session.IsAuthenticated() {
		return true
	}
	a.Notes.Error("not signed in, run `folio login`")
	return false
}

// Flush prints queued toasts to Err.
func (a *App) Flush() {
	for _, t := range a.Notes.Drain() {
		fmt.Fprintf(a.Err, "[%s] %s\n", t.Kind, t.Text)
	}
}

// readSecret prompts on the terminal without echo, or reads a line when
// stdin is not a terminal.
func (a *App) readSecret(prompt string) (string, error) {
	fmt.Fprint(a.Err, prompt)
	if f, ok := a.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.Err)
		return string(b), err
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.In)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseID(f *flag.FlagSet) (int64, error) {
	if f.NArg() != 1 {
		return 0, fmt.Errorf("expected one asset id")
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid asset id %q", f.Arg(0))
	}
	return id, nil
}

// decimalFlag is a flag.Value for an optional decimal.
type decimalFlag struct {
	v   decimal.Decimal
	set bool
}

func (d *decimalFlag) String() string {
	if d == nil || !d.set {
		return ""
	}
	return d.v.String()
}

func (d *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return err
	}
	d.v, d.set = v, true
	return nil
}

func (d *decimalFlag) ptr() *decimal.Decimal {
	if !d.set {
		return nil
	}
	v := d.v
	return &v
}

// Run registers the commands on a commander and executes the one named in
// args.
func Run(ctx context.Context, app *App, name string, args []string) subcommands.ExitStatus {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.Err)
	cmdr := subcommands.NewCommander(fs, name)
	cmdr.Output = app.Out
	cmdr.Error = app.Err
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")
	for _, c := range Commands(app) {
		cmdr.Register(c, "")
	}
	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	status := cmdr.Execute(ctx)
	app.Flush()
	return status
}
