// @title        Delivery Time Estimation API
// @version      1.0.0
// @description  Predicts delivery time in days for e-commerce orders from a model trained at startup.
// @BasePath     /
package main

import (
	"flag"
	"log"
	"os"

	_ "github.com/GabrielWalak/delivery-prediction/docs"
	"github.com/GabrielWalak/delivery-prediction/internal/di"
	"github.com/GabrielWalak/delivery-prediction/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s training_source=%s", cfg.Environment, cfg.Training.Source)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
