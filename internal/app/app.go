// Package app assembles the demo replication server: logging, metrics, the
// websocket transport, and a server-role manager hosting one demo scene.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	netcode "driftnet/netcode"
	"driftnet/netcode/hierarchy"
	"driftnet/netcode/internal/net/ws"
	"driftnet/netcode/logging"
	loggingSinks "driftnet/netcode/logging/sinks"
	"driftnet/netcode/telemetry"
	"driftnet/netcode/tick"
	"driftnet/netcode/transport"
)

// Config is the demo server's document. cmd/schema exports its JSON schema
// for tooling.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `json:"addr" jsonschema:"default=:8080,description=HTTP listen address"`
	// SimulationRate is the fixed simulation cadence in ticks per second.
	SimulationRate int `json:"simulationRate" jsonschema:"default=20,minimum=1"`
	// CompressMin is the websocket payload size at which frames are
	// compressed; zero disables compression.
	CompressMin int `json:"compressMin" jsonschema:"default=512,minimum=0"`
	// LogJSONPath receives line-delimited JSON events; empty keeps logging
	// on the console only.
	LogJSONPath string `json:"logJsonPath,omitempty"`
	// LogColor enables ANSI severity colors on the console sink.
	LogColor bool `json:"logColor,omitempty"`
	// DemoScene is the scene the server loads at startup.
	DemoScene uint32 `json:"demoScene" jsonschema:"default=1"`
	// DemoSpawns is how many identities the server seeds into the demo
	// scene so late joiners have something to sync.
	DemoSpawns int `json:"demoSpawns" jsonschema:"default=3,minimum=0"`

	Logger telemetry.Logger `json:"-"`
}

// DefaultConfig returns the demo defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		SimulationRate: 20,
		CompressMin:    512,
		DemoScene:      1,
		DemoSpawns:     3,
	}
}

// staticProvider places every object in the one demo scene.
type staticProvider struct {
	scene hierarchy.SceneID
}

func (p staticProvider) TryGetSceneID(hierarchy.ObjectHandle) (hierarchy.SceneID, bool) {
	return p.scene, true
}

// Run hosts the demo server until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg Config) error {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.SimulationRate <= 0 {
		cfg.SimulationRate = defaults.SimulationRate
	}
	if cfg.DemoScene == 0 {
		cfg.DemoScene = defaults.DemoScene
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	logCfg := logging.DefaultConfig()
	logCfg.Console.UseColor = cfg.LogColor
	if cfg.LogJSONPath != "" {
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
		logCfg.JSON.FilePath = cfg.LogJSONPath
	}
	sinks, err := loggingSinks.FromConfig(logCfg, os.Stdout)
	if err != nil {
		return fmt.Errorf("assemble log sinks: %w", err)
	}
	events := logging.NewRouter(nil, logCfg, sinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := events.Close(closeCtx); err != nil {
			logger.Printf("logging router close: %v", err)
		}
	}()

	metrics := logging.NewMetrics()

	tr := ws.NewServerTransport(ws.Config{
		CompressMin: cfg.CompressMin,
		Logger:      logger,
	})

	manager, err := netcode.NewManager(tr, staticProvider{scene: hierarchy.SceneID(cfg.DemoScene)}, netcode.Config{
		IsServer: true,
		Tick:     tick.Config{SimulationRate: cfg.SimulationRate},
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("assemble manager: %w", err)
	}

	// Structured lifecycle events ride the same tick-side callbacks the
	// host would use.
	tr.OnConnectionState(func(conn transport.Connection, connected bool, asServer bool) {
		tickNow := manager.Loop().SimTick()
		if connected {
			events.Publish(ctx, logging.ConnectionOpened(tickNow, conn.String()))
		} else {
			events.Publish(ctx, logging.ConnectionClosed(tickNow, conn.String(), "socket closed"))
		}
	})
	manager.Hierarchy().OnIdentityAdded(func(identity *hierarchy.NetworkIdentity) {
		events.Publish(ctx, logging.IdentitySpawned(manager.Loop().SimTick(), uint32(identity.Scene), identity.ID, uint32(identity.Prefab)))
	})
	manager.Hierarchy().OnIdentityRemoved(func(identity *hierarchy.NetworkIdentity) {
		events.Publish(ctx, logging.IdentityRemoved(manager.Loop().SimTick(), uint32(identity.Scene), identity.ID))
	})

	manager.LoadScene(hierarchy.SceneID(cfg.DemoScene))
	events.Publish(ctx, logging.SceneLoaded(0, cfg.DemoScene, true))
	for i := 0; i < cfg.DemoSpawns; i++ {
		if _, err := manager.Spawn(hierarchy.ObjectHandle{Ref: uint64(i + 1), Prefab: hierarchy.PrefabID(i%3 + 1)}, 0); err != nil {
			logger.Printf("seed spawn %d: %v", i, err)
		}
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go manager.Run(loopCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", tr.Handle)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(metrics.Snapshot())
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	events.Publish(ctx, logging.ServerStarted(cfg.Addr))
	logger.Printf("server listening on %s", cfg.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
