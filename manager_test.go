package netcode

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"driftnet/netcode/hierarchy"
	"driftnet/netcode/tick"
	"driftnet/netcode/transport"
)

type mapProvider struct {
	scenes map[uint64]hierarchy.SceneID
}

func (p *mapProvider) TryGetSceneID(obj hierarchy.ObjectHandle) (hierarchy.SceneID, bool) {
	scene, ok := p.scenes[obj.Ref]
	return scene, ok
}

func newPair(t *testing.T, provider hierarchy.SceneProvider) (*Manager, *Manager, *transport.MemoryEndpoint) {
	t.Helper()
	link := transport.NewLink()

	server, err := NewManager(link.Server(), provider, Config{IsServer: true})
	if err != nil {
		t.Fatalf("server manager failed: %v", err)
	}

	endpoint := link.Connect()
	client, err := NewManager(endpoint, provider, Config{})
	if err != nil {
		t.Fatalf("client manager failed: %v", err)
	}
	return server, client, endpoint
}

func TestManagerAssignsPlayersPerConnection(t *testing.T) {
	provider := &mapProvider{scenes: map[uint64]hierarchy.SceneID{}}
	link := transport.NewLink()
	server, err := NewManager(link.Server(), provider, Config{IsServer: true})
	if err != nil {
		t.Fatalf("server manager failed: %v", err)
	}

	first := link.Connect()
	second := link.Connect()

	a, ok := server.PlayerFor(first.Connection())
	if !ok || !a.Valid() {
		t.Fatalf("first connection has no player identity")
	}
	b, ok := server.PlayerFor(second.Connection())
	if !ok || b == a {
		t.Fatalf("player identities must be unique, got %v and %v", a, b)
	}

	link.Disconnect(first.Connection())
	if _, ok := server.PlayerFor(first.Connection()); ok {
		t.Fatalf("player identity must be released on disconnect")
	}
}

func TestManagerReplicatesSpawnsEndToEnd(t *testing.T) {
	provider := &mapProvider{scenes: map[uint64]hierarchy.SceneID{10: 1}}
	server, client, endpoint := newPair(t, provider)
	server.LoadScene(1)
	client.LoadScene(1)

	owner, _ := server.PlayerFor(endpoint.Connection())
	identity, err := server.Spawn(hierarchy.ObjectHandle{Ref: 10, Prefab: 4}, owner)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	got, ok := client.Hierarchy().TryGetIdentity(1, identity.ID)
	if !ok {
		t.Fatalf("client never saw spawn of %d", identity.ID)
	}
	if got.Prefab != 4 || got.Owner != owner {
		t.Fatalf("replicated identity mismatch: %+v", got)
	}

	if !server.Despawn(1, identity.ID) {
		t.Fatalf("despawn failed")
	}
	if _, ok := client.Hierarchy().TryGetIdentity(1, identity.ID); ok {
		t.Fatalf("client still resolves %d after despawn", identity.ID)
	}
}

func TestManagerDespawnsOwnedIdentitiesOnDisconnect(t *testing.T) {
	provider := &mapProvider{scenes: map[uint64]hierarchy.SceneID{10: 1, 11: 1}}
	link := transport.NewLink()
	server, err := NewManager(link.Server(), provider, Config{IsServer: true})
	if err != nil {
		t.Fatalf("server manager failed: %v", err)
	}
	server.LoadScene(1)

	endpoint := link.Connect()
	owner, _ := server.PlayerFor(endpoint.Connection())

	owned, err := server.Spawn(hierarchy.ObjectHandle{Ref: 10}, owner)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}
	neutral, err := server.Spawn(hierarchy.ObjectHandle{Ref: 11}, 0)
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	link.Disconnect(endpoint.Connection())

	if _, ok := server.Hierarchy().TryGetIdentity(1, owned.ID); ok {
		t.Fatalf("identity owned by departed player must despawn")
	}
	if _, ok := server.Hierarchy().TryGetIdentity(1, neutral.ID); !ok {
		t.Fatalf("unowned identity must survive the disconnect")
	}
}

func TestManagerLoopDrivesLateJoinReplay(t *testing.T) {
	provider := &mapProvider{scenes: map[uint64]hierarchy.SceneID{10: 1}}
	mock := clock.NewMock()
	link := transport.NewLink()

	server, err := NewManager(link.Server(), provider, Config{
		IsServer: true,
		Clock:    mock,
		Tick:     tick.Config{SimulationRate: 10},
	})
	if err != nil {
		t.Fatalf("server manager failed: %v", err)
	}
	server.LoadScene(1)
	if _, err := server.Spawn(hierarchy.ObjectHandle{Ref: 10, Prefab: 9}, 0); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	// Joins after the spawn; the sync replay rides the next simulation tick.
	endpoint := link.Connect()
	client, err := NewManager(endpoint, provider, Config{Clock: mock})
	if err != nil {
		t.Fatalf("client manager failed: %v", err)
	}
	client.LoadScene(1)

	server.Advance(mock.Now())
	mock.Add(150 * time.Millisecond)
	server.Advance(mock.Now())

	scene, ok := client.Hierarchy().Scene(1)
	if !ok || scene.Count() != 1 {
		t.Fatalf("late joiner expected 1 identity after the tick")
	}
	if server.Loop().SimTick() == 0 {
		t.Fatalf("loop never stepped the simulation")
	}
}
