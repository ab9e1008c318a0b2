package logging_test

import (
	"context"
	"testing"
	"time"

	"driftnet/netcode/logging"
	"driftnet/netcode/logging/sinks"
)

func TestRouterForwardsToSink(t *testing.T) {
	memory := sinks.NewMemorySink()
	router := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.FrameDropped(3, "conn(1)", "unknown type"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != logging.EventFrameDropped || events[0].Tick != 3 {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if events[0].Time.IsZero() {
		t.Fatalf("router must stamp missing timestamps")
	}
}

func TestRouterFiltersBySeverity(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.IdentitySpawned(1, 1, 1, 1)) // debug
	router.Publish(context.Background(), logging.FrameDropped(2, "conn(1)", "truncated"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 || events[0].Type != logging.EventFrameDropped {
		t.Fatalf("expected only the warn event, got %+v", events)
	}
}

func TestRouterStampsDefaultFields(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"node": "server-1"}
	router := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.ConnectionOpened(1, "conn(7)"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Extra["node"] != "server-1" {
		t.Fatalf("default fields not stamped: %+v", events[0].Extra)
	}
}
