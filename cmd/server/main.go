package main

import (
	"context"
	"flag"
	"log"
	"os"

	"BTCPulse/internal/di"
	"BTCPulse/pkg/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s port=%d data=%s", cfg.Environment, cfg.Server.Port, cfg.Storage.DataDir)

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeServer(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	err = app.Run(context.Background())
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
