package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "fnjudge",
		Usage: "judge function-style submissions in a WebAssembly sandbox",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "TOML config file"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
			generateCommand(),
			customCommand(),
			behaveCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
