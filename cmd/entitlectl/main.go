package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/entitle/pkg/cli"
	"github.com/platinummonkey/entitle/pkg/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := cli.NewLogger(os.Getenv("ENTITLE_LOG_LEVEL"), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.NewEnv(cfg, logger))
	if err := root.Execute(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, cli.ErrDenied) {
			logger.Error(err)
		}
		os.Exit(1)
	}
}
