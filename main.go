package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"docparse/cmd"
	"docparse/internal/config"
	"docparse/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Fall back to the default logger so config errors are still reported
	// by the command that needs the config.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	mainLog := logger.WithComponent("main")
	mainLog.Debug().Msg("Starting docparse")
	cmd.Execute()
}
