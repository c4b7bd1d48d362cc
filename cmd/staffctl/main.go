package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/staffkeeper/internal/cli"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func open(ctx context.Context, c *config.Config, l logging.Logger) (cli.Backend, error) {
	return server.NewApp(ctx, c, l)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	app := cli.NewApp(open, os.Stdin, os.Stdout, os.Stderr, version)
	err := app.Execute(ctx, os.Args[1:])
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
