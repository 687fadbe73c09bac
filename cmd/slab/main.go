// Command slab manages Urbit points as on-chain accounts and Syndicates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tocwex/slab-sub000/config"
	"github.com/tocwex/slab-sub000/pkg/commands"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the config file is only known once flags are parsed, so the command logger comes from env
	envCfg, err := config.LoadEnv()
	if err != nil {
		return err
	}
	lggr, err := envCfg.Log.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = lggr.Sync() }()

	root, err := commands.NewRootCommand(commands.Config{
		Logger:   lggr,
		Load:     loadApp,
		Settings: settings,
		Version:  version,
	})
	if err != nil {
		return err
	}

	return root.ExecuteContext(ctx)
}
