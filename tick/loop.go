// Package tick drives the two update cadences the replication core runs
// on: a fixed-rate simulation tick and a variable-rate presentation tick.
// The core never owns timers; a Loop is the external driver that invokes it
// synchronously.
package tick

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"driftnet/netcode/telemetry"
)

// Config tunes the loop cadences.
type Config struct {
	// SimulationRate is the fixed simulation cadence in ticks per second.
	SimulationRate int
	// CatchupMaxTicks caps how many simulation steps one advance may run
	// when the loop falls behind; the remaining debt is dropped with a
	// warning rather than spiralling.
	CatchupMaxTicks int
	// PresentationInterval is how often Run wakes to advance. Each wake
	// fires one presentation tick with the real elapsed time.
	PresentationInterval time.Duration
}

// DefaultConfig mirrors a 20 Hz simulation presented at 60 Hz.
func DefaultConfig() Config {
	return Config{
		SimulationRate:       20,
		CatchupMaxTicks:      5,
		PresentationInterval: time.Second / 60,
	}
}

// Hooks are the per-cadence callbacks a Loop fans out to. Either may be
// nil.
type Hooks struct {
	Simulation   func(delta time.Duration)
	Presentation func(delta time.Duration)
}

// Loop accumulates wall time and converts it into fixed simulation steps
// plus per-wake presentation steps. Time comes from an injected clock so
// tests can drive it deterministically.
type Loop struct {
	clk     clock.Clock
	cfg     Config
	hooks   Hooks
	logger  telemetry.Logger
	metrics telemetry.Metrics

	started     bool
	last        time.Time
	accumulator time.Duration
	simTick     uint64
}

// NewLoop builds a loop around the given clock. A nil clock falls back to
// wall time.
func NewLoop(clk clock.Clock, cfg Config, hooks Hooks, logger telemetry.Logger, metrics telemetry.Metrics) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.SimulationRate <= 0 {
		cfg.SimulationRate = DefaultConfig().SimulationRate
	}
	if cfg.CatchupMaxTicks <= 0 {
		cfg.CatchupMaxTicks = DefaultConfig().CatchupMaxTicks
	}
	if cfg.PresentationInterval <= 0 {
		cfg.PresentationInterval = DefaultConfig().PresentationInterval
	}
	if logger == nil {
		logger = telemetry.Discard()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Loop{clk: clk, cfg: cfg, hooks: hooks, logger: logger, metrics: metrics}
}

// SimTick returns the number of simulation steps run so far.
func (l *Loop) SimTick() uint64 { return l.simTick }

// Advance runs the loop up to now: as many fixed simulation steps as the
// accumulated time covers (clamped to CatchupMaxTicks), then one
// presentation step with the real elapsed time. Hosts with their own frame
// clock call Advance directly instead of Run.
func (l *Loop) Advance(now time.Time) {
	if !l.started {
		l.started = true
		l.last = now
		return
	}
	elapsed := now.Sub(l.last)
	if elapsed < 0 {
		elapsed = 0
	}
	l.last = now
	l.accumulator += elapsed

	step := time.Second / time.Duration(l.cfg.SimulationRate)
	ran := 0
	for l.accumulator >= step {
		if ran >= l.cfg.CatchupMaxTicks {
			dropped := l.accumulator
			l.accumulator = 0
			l.logger.Printf("tick: falling behind; dropping %v of simulation debt", dropped)
			l.metrics.Add("tick.dropped_debt_ticks", 1)
			break
		}
		l.accumulator -= step
		l.simTick++
		ran++
		if l.hooks.Simulation != nil {
			l.hooks.Simulation(step)
		}
	}
	if ran > 0 {
		l.metrics.Add("tick.simulation_steps", uint64(ran))
	}
	if l.hooks.Presentation != nil && elapsed > 0 {
		l.hooks.Presentation(elapsed)
	}
}

// Run advances the loop on its own ticker until the context is cancelled.
// All hook invocations happen on the calling goroutine, preserving the
// single-threaded model.
func (l *Loop) Run(ctx context.Context) {
	ticker := l.clk.Ticker(l.cfg.PresentationInterval)
	defer ticker.Stop()
	l.Advance(l.clk.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Advance(now)
		}
	}
}
