package logging

import "fmt"

// Event types emitted by the netcode core.
const (
	EventConnectionOpened EventType = "network.connection_opened"
	EventConnectionClosed EventType = "network.connection_closed"
	EventFrameDropped     EventType = "network.frame_dropped"
	EventSceneLoaded      EventType = "hierarchy.scene_loaded"
	EventSceneUnloaded    EventType = "hierarchy.scene_unloaded"
	EventIdentitySpawned  EventType = "hierarchy.identity_spawned"
	EventIdentityRemoved  EventType = "hierarchy.identity_removed"
	EventServerStarted    EventType = "system.server_started"
)

// ConnectionOpened records a peer entering the session.
func ConnectionOpened(tick uint64, connection string) Event {
	return Event{
		Type:     EventConnectionOpened,
		Tick:     tick,
		Subject:  PeerRef{ID: connection, Kind: PeerKindConnection},
		Severity: SeverityInfo,
		Category: CategoryNetwork,
	}
}

// ConnectionClosed records a peer leaving the session.
func ConnectionClosed(tick uint64, connection string, reason string) Event {
	return Event{
		Type:     EventConnectionClosed,
		Tick:     tick,
		Subject:  PeerRef{ID: connection, Kind: PeerKindConnection},
		Severity: SeverityInfo,
		Category: CategoryNetwork,
		Payload:  map[string]any{"reason": reason},
	}
}

// FrameDropped records a received frame that could not be dispatched.
func FrameDropped(tick uint64, connection string, reason string) Event {
	return Event{
		Type:     EventFrameDropped,
		Tick:     tick,
		Subject:  PeerRef{ID: connection, Kind: PeerKindConnection},
		Severity: SeverityWarn,
		Category: CategoryNetwork,
		Payload:  map[string]any{"reason": reason},
	}
}

// SceneLoaded records a scene sub-registry coming alive.
func SceneLoaded(tick uint64, scene uint32, asServer bool) Event {
	return Event{
		Type:     EventSceneLoaded,
		Tick:     tick,
		Subject:  PeerRef{ID: fmt.Sprintf("%d", scene), Kind: PeerKindScene},
		Severity: SeverityInfo,
		Category: CategoryHierarchy,
		Payload:  map[string]any{"asServer": asServer},
	}
}

// SceneUnloaded records a scene sub-registry being discarded.
func SceneUnloaded(tick uint64, scene uint32, asServer bool) Event {
	return Event{
		Type:     EventSceneUnloaded,
		Tick:     tick,
		Subject:  PeerRef{ID: fmt.Sprintf("%d", scene), Kind: PeerKindScene},
		Severity: SeverityInfo,
		Category: CategoryHierarchy,
		Payload:  map[string]any{"asServer": asServer},
	}
}

// IdentitySpawned records one identity entering a scene.
func IdentitySpawned(tick uint64, scene uint32, localID uint32, prefab uint32) Event {
	return Event{
		Type:     EventIdentitySpawned,
		Tick:     tick,
		Subject:  PeerRef{ID: fmt.Sprintf("%d/%d", scene, localID), Kind: PeerKindIdentity},
		Severity: SeverityDebug,
		Category: CategoryHierarchy,
		Payload:  map[string]any{"prefab": prefab},
	}
}

// IdentityRemoved records one identity leaving a scene.
func IdentityRemoved(tick uint64, scene uint32, localID uint32) Event {
	return Event{
		Type:     EventIdentityRemoved,
		Tick:     tick,
		Subject:  PeerRef{ID: fmt.Sprintf("%d/%d", scene, localID), Kind: PeerKindIdentity},
		Severity: SeverityDebug,
		Category: CategoryHierarchy,
	}
}

// ServerStarted records the demo server accepting traffic.
func ServerStarted(addr string) Event {
	return Event{
		Type:     EventServerStarted,
		Subject:  PeerRef{ID: addr, Kind: PeerKindSystem},
		Severity: SeverityInfo,
		Category: CategorySystem,
	}
}
