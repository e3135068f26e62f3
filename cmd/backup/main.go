package main

import (
	"context"
	"flag"
	"fmt"
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

	backup, cleanup, err := di.InitializeBackup(cfg)
	if err != nil {
		log.Fatalf("backup initialization failed: %v", err)
	}

	rep, err := backup.Run(context.Background())
	cleanup()
	if err != nil {
		log.Printf("backup failed: %v", err)
		os.Exit(1)
	}
	fmt.Println(rep.Summary())
}
