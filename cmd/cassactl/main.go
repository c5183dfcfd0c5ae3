package main

import (
	"context"
	"flag"
	"os"
	"path"
	"time"

	"github.com/google/subcommands"

	"cassa/internal/backend"
	"cassa/internal/cli"
	"cassa/internal/log"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLoggerTo(os.Stderr, log.ComponentCLI, cfg.LogLevel)

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
		open: func(ctx context.Context) (*backend.BackendResult, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			bc, err := backend.FromAppConfig(cfg)
			if err != nil {
				return nil, err
			}
			// The CLI does not publish ledger events.
			bc.AMQPURL = ""
			return backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bc)
		},
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range a.commands() {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
