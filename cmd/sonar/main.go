// main is the entry point of the sonar command.
// It parses the configuration, sets up logging and runs the selected command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/sonar/internal/config"
	"github.com/woozymasta/sonar/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, command := config.Parse()

	closer, err := logger.Setup(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, cfg, command, os.Stdout); err != nil {
		log.Error().Err(err).Str("command", command).Msg("Command failed")
		return 1
	}

	return 0
}
