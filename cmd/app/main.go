package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"BTCPulse/internal/di"
	"BTCPulse/internal/usecase"
	"BTCPulse/pkg/config"

	"github.com/joho/godotenv"
)

// app runs one pipeline pass: fetch every exchange, validate, reconcile and persist.
// Schedule it externally (cron, systemd timer, k8s CronJob).
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	modeFlag := flag.String("mode", "increment", "fetch mode: full or increment")
	flag.Parse()

	_ = godotenv.Load()

	mode, err := usecase.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	pipeline, cleanup, err := di.InitializePipeline(cfg)
	if err != nil {
		log.Fatalf("pipeline initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	res, err := pipeline.Run(ctx, mode)
	stop()
	cleanup()
	if err != nil {
		log.Printf("pipeline failed: %v", err)
		os.Exit(1)
	}
	fmt.Print(res.Summary())
}
