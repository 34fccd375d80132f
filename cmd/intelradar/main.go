package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"

	"IntelRadar/internal/app"
	"IntelRadar/internal/config"
	"IntelRadar/internal/logging"
)

func main() {
	envErr := godotenv.Load()

	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("cannot load .env", "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if _, err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		application.Close()
		os.Exit(1)
	}
}
