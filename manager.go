// Package netcode assembles the replication substrate: the wire registry,
// the broadcast router, the hierarchy registry, and a tick loop, wired to
// one transport endpoint. A Manager is the single object a host embeds;
// everything underneath can also be used piecemeal.
package netcode

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"driftnet/netcode/broadcast"
	"driftnet/netcode/hierarchy"
	"driftnet/netcode/telemetry"
	"driftnet/netcode/tick"
	"driftnet/netcode/transport"
	"driftnet/netcode/wire"
)

// Poller is implemented by transports that buffer socket traffic off the
// tick goroutine and deliver it when drained. The Manager drains such
// transports at the start of every simulation tick, so all callbacks fire
// on the tick goroutine.
type Poller interface {
	Poll()
}

// Config tunes a Manager. Zero values fall back to defaults in NewManager.
type Config struct {
	// IsServer selects the authoritative role. Servers assign player
	// identities and are the only side allowed to broadcast.
	IsServer bool
	Tick     tick.Config
	// Clock drives the loop; nil means wall time. Tests inject mocks.
	Clock   clock.Clock
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Manager owns the composed replication stack for one endpoint.
type Manager struct {
	cfg       Config
	tr        transport.Transport
	registry  *wire.Registry
	router    *broadcast.Router
	hierarchy *hierarchy.Registry
	loop      *tick.Loop
	logger    telemetry.Logger

	players    map[transport.Connection]transport.PlayerID
	nextPlayer uint32
}

// NewManager wires the stack around one transport endpoint. The provider
// resolves which scene owns an object queued for spawning.
func NewManager(tr transport.Transport, provider hierarchy.SceneProvider, cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}

	m := &Manager{
		cfg:     cfg,
		tr:      tr,
		logger:  cfg.Logger,
		players: make(map[transport.Connection]transport.PlayerID),
	}

	m.registry = wire.NewRegistry(cfg.Logger)
	m.router = broadcast.NewRouter(m.registry, tr, cfg.IsServer, cfg.Logger, cfg.Metrics)

	hier, err := hierarchy.NewRegistry(m.router, provider, cfg.Logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}
	m.hierarchy = hier

	tr.OnConnectionState(m.onConnectionState)

	m.loop = tick.NewLoop(cfg.Clock, cfg.Tick, tick.Hooks{
		Simulation:   m.simulate,
		Presentation: m.present,
	}, cfg.Logger, cfg.Metrics)

	return m, nil
}

// Registry exposes the wire type registry for message registration.
func (m *Manager) Registry() *wire.Registry { return m.registry }

// Router exposes the broadcast router for send and callback registration.
func (m *Manager) Router() *broadcast.Router { return m.router }

// Hierarchy exposes the identity registry.
func (m *Manager) Hierarchy() *hierarchy.Registry { return m.hierarchy }

// Loop exposes the tick loop for hosts that drive time themselves.
func (m *Manager) Loop() *tick.Loop { return m.loop }

// PlayerFor returns the player identity assigned to a connection. Only the
// server assigns identities; on clients the second result is always false.
func (m *Manager) PlayerFor(conn transport.Connection) (transport.PlayerID, bool) {
	id, ok := m.players[conn]
	return id, ok
}

// LoadScene starts tracking a scene so identities can spawn into it.
func (m *Manager) LoadScene(scene hierarchy.SceneID) {
	m.hierarchy.OnPreSceneLoaded(scene, m.cfg.IsServer)
}

// UnloadScene drops a scene and every identity it held.
func (m *Manager) UnloadScene(scene hierarchy.SceneID) {
	m.hierarchy.OnSceneUnloaded(scene, m.cfg.IsServer)
}

// Spawn replicates an object. Server only; the owning scene comes from the
// provider.
func (m *Manager) Spawn(obj hierarchy.ObjectHandle, owner transport.PlayerID) (*hierarchy.NetworkIdentity, error) {
	return m.hierarchy.Spawn(obj, owner)
}

// Despawn removes a replicated identity.
func (m *Manager) Despawn(scene hierarchy.SceneID, localID uint32) bool {
	return m.hierarchy.Despawn(scene, localID)
}

// Advance runs the loop up to now. Hosts with their own frame loop call
// this once per frame instead of Run.
func (m *Manager) Advance(now time.Time) {
	m.loop.Advance(now)
}

// Run drives the loop on the calling goroutine until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.loop.Run(ctx)
}

func (m *Manager) simulate(delta time.Duration) {
	if poller, ok := m.tr.(Poller); ok {
		poller.Poll()
	}
	m.hierarchy.TickSimulation(delta)
}

func (m *Manager) present(delta time.Duration) {
	m.hierarchy.TickPresentation(delta)
}

// onConnectionState translates transport lifecycle events into hierarchy
// notifications, assigning a player identity per connection on the server.
func (m *Manager) onConnectionState(conn transport.Connection, connected bool, asServer bool) {
	var player transport.PlayerID
	if m.cfg.IsServer {
		if connected {
			m.nextPlayer++
			player = transport.PlayerID(m.nextPlayer)
			m.players[conn] = player
			m.logger.Printf("netcode: %v joined as %v", conn, player)
		} else {
			player = m.players[conn]
			delete(m.players, conn)
			m.logger.Printf("netcode: %v left, releasing %v", conn, player)
		}
	}
	m.hierarchy.OnConnectionStateChanged(hierarchy.ConnectionState{
		Connection: conn,
		Player:     player,
		Connected:  connected,
	}, asServer)
}
