package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"StockCast/internal/di"
	"StockCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults only when empty)")
	check := flag.Bool("check", false, "validate the config, print the resolved backends and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *check {
		fmt.Printf("config ok: env=%s port=%d provider=%s archive=%t cache=%s kafka=%t queue=%t\n",
			cfg.Environment, cfg.Server.Port, cfg.Provider.Type, cfg.Provider.Archive,
			cfg.Cache.Driver, cfg.Kafka.Enabled, cfg.Queue.Enabled)
		return
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("stockcast stopped: %v", err)
		os.Exit(1)
	}
}
