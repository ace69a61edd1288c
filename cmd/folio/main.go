package main

import (
	"context"
	"os"
	"path"

	"coinfolio/internal/cli"
	"coinfolio/internal/client"
	"coinfolio/internal/coins"
	"coinfolio/internal/config"
	"coinfolio/internal/session"
	"coinfolio/internal/view"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatal(err)
	}
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	catalog, err := coins.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		logger.Fatalf("load coin catalog: %v", err)
	}
	sess, err := session.New(session.NewFileStore(cfg.SessionFile), logger)
	if err != nil {
		logger.Fatal(err)
	}

	app := &cli.App{
		API:     client.New(cfg.APIURL, cfg.Timeout, sess, logger),
		Session: sess,
		Coins:   catalog,
		Catalog: catalog,
		Notes:   &view.Notifier{},
		Log:     logger,
		Out:     os.Stdout,
		Err:     os.Stderr,
		In:      os.Stdin,
		Plain:   cfg.Plain,
	}
	os.Exit(int(cli.Run(context.Background(), app, path.Base(os.Args[0]), os.Args[1:])))
}
