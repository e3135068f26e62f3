package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"BTCPulse/internal/di"
	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	exchangeFlag := flag.String("exchange", "binance", "exchange to predict for")
	backfill := flag.Bool("backfill", false, "predict every historical day for all exchanges and save them")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	predictor, cleanup, err := di.InitializePredictor(cfg)
	if err != nil {
		log.Fatalf("predictor initialization failed: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	if *backfill {
		preds, err := predictor.Backfill(ctx, models.Exchanges)
		if err != nil {
			log.Printf("backfill failed: %v", err)
			cleanup()
			os.Exit(1)
		}
		fmt.Printf("saved %d predictions\n", len(preds))
		return
	}

	ex, ok := models.CanonicalExchange(*exchangeFlag)
	if !ok {
		log.Printf("unknown exchange %q", *exchangeFlag)
		cleanup()
		os.Exit(2)
	}
	fc, err := predictor.Latest(ctx, ex)
	if err != nil {
		log.Printf("prediction failed: %v", err)
		cleanup()
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(fc)
}
