package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"coinfolio/internal/client"

	"github.com/google/subcommands"
)

type registerCmd struct {
	app      *App
	username string
	password string
	confirm  string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account and sign in" }
func (*registerCmd) Usage() string {
	return `register -u <username> [-p <password>] [-confirm <password>]

  Creates an account. The password and its confirmation are prompted
  for when not given.
  The password must be at least 6 characters long.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username (required)")
	f.StringVar(&c.password, "p", "", "password")
	f.StringVar(&c.confirm, "confirm", "", "password confirmation")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		fmt.Fprintln(c.app.Err, "Error: -u is required.")
		return subcommands.ExitUsageError
	}
	var err error
	if c.password == "" {
		if c.password, err = c.app.readSecret("Password: "); err != nil {
			return c.app.fail("register", err)
		}
	}
	if c.confirm == "" {
		if c.confirm, err = c.app.readSecret("Confirm password: "); err != nil {
			return c.app.fail("register", err)
		}
	}
	cr := client.Credentials{Username: c.username, Password: c.password}
	if err := c.app.Session.Register(ctx, c.app.API, cr, c.confirm); err != nil {
		return c.app.fail("register", err)
	}
	c.app.Notes.Success("registered and signed in as %s", c.username)
	return subcommands.ExitSuccess
}

type loginCmd struct {
	app      *App
	username string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in and remember the session" }
func (*loginCmd) Usage() string {
	return `login -u <username> [-p <password>]
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "username (required)")
	f.StringVar(&c.password, "p", "", "password, prompted for when empty")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		fmt.Fprintln(c.app.Err, "Error: -u is required.")
		return subcommands.ExitUsageError
	}
	if c.password == "" {
		var err error
		if c.password, err = c.app.readSecret("Password: "); err != nil {
			return c.app.fail("login", err)
		}
	}
	cr := client.Credentials{Username: c.username, Password: c.password}
	if err := c.app.Session.Login(ctx, c.app.API, cr); err != nil {
		c.app.Notes.Error("login failed: %s", loginMessage(err))
		return subcommands.ExitFailure
	}
	c.app.Notes.Success("signed in as %s", c.username)
	return subcommands.ExitSuccess
}

func loginMessage(err error) string {
	var rf *client.RequestFailed
	if errors.As(err, &rf) && rf.Message != "" {
		return rf.Message
	}
	return err.Error()
}

type logoutCmd struct{ app *App }

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the stored session" }
func (*logoutCmd) Usage() string            { return "logout\n" }
func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.app.Session.Logout(); err != nil {
		return c.app.fail("logout", err)
	}
	c.app.Notes.Success("signed out")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{ app *App }

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "show the signed-in user" }
func (*whoamiCmd) Usage() string            { return "whoami\n" }
func (*whoamiCmd) SetFlags(f *flag.FlagSet) {}

func (c *whoamiCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	u, ok := c.app.Session.CurrentUser()
	if !ok {
		fmt.Fprintln(c.app.Out, "not signed in")
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.app.Out, u.Username)
	return subcommands.ExitSuccess
}
