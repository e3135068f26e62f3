package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

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

	trainer, cleanup, err := di.InitializeTrainer(cfg)
	if err != nil {
		log.Fatalf("trainer initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rep, err := trainer.Run(ctx)
	stop()
	cleanup()
	if err != nil {
		log.Printf("training failed: %v", err)
		os.Exit(1)
	}

	train, val := rep.FinalAccuracy()
	fmt.Printf("trained on %d samples from %s in %s\n", rep.Samples, rep.FeatureFrom, rep.Took.Round(time.Millisecond))
	for _, regime := range slices.Sorted(maps.Keys(rep.ByRegime)) {
		fmt.Printf("  %-9s %d\n", regime, rep.ByRegime[regime])
	}
	fmt.Printf("accuracy %.4f, validation accuracy %.4f\n", train, val)
	fmt.Printf("model saved to %s\n", rep.ModelDir)

	// Show what the fresh model says about today.
	predictor, cleanup, err := di.InitializePredictor(cfg)
	if err != nil {
		log.Fatalf("predictor initialization failed: %v", err)
	}
	defer cleanup()
	fc, err := predictor.Latest(context.Background(), rep.FeatureFrom)
	if err != nil {
		log.Printf("prediction failed: %v", err)
		return
	}
	p := fc.Prediction
	fmt.Printf("%s %s: %s (uptrend %.3f, downtrend %.3f, sideways %.3f, confidence %.3f)\n",
		fc.Exchange, fc.Date, fc.Regime, p.Uptrend, p.Downtrend, p.Sideways, fc.Confidence)
}
