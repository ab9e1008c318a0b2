package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"driftnet/netcode/internal/app"
)

func main() {
	cfg := app.DefaultConfig()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.IntVar(&cfg.SimulationRate, "sim-rate", cfg.SimulationRate, "simulation ticks per second")
	flag.IntVar(&cfg.CompressMin, "compress-min", cfg.CompressMin, "payload size at which websocket frames are compressed; 0 disables")
	flag.StringVar(&cfg.LogJSONPath, "log-json", cfg.LogJSONPath, "path for line-delimited JSON event log")
	flag.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "colorize console log severities")
	flag.IntVar(&cfg.DemoSpawns, "demo-spawns", cfg.DemoSpawns, "identities seeded into the demo scene")
	flag.Parse()

	if raw := os.Getenv("SIM_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			cfg.SimulationRate = value
		} else {
			log.Printf("invalid SIM_RATE=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("ADDR"); raw != "" {
		cfg.Addr = raw
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
