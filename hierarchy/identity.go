// Package hierarchy tracks which replicated objects exist, per scene: which
// scene owns them, who controls them, and how spawn/despawn events reach
// peers. One sub-registry exists per live scene; unloading a scene makes
// every identity it held unresolvable at once.
package hierarchy

import (
	"errors"
	"fmt"

	"driftnet/netcode/transport"
)

var (
	// ErrUnknownScene means the owning scene of an object could not be
	// resolved. Logged and skipped; never fatal.
	ErrUnknownScene = errors.New("hierarchy: cannot resolve owning scene")

	// ErrUntrackedScene means a scene has no live sub-registry, e.g. the
	// object lives in a scene that never loaded through the registry.
	ErrUntrackedScene = errors.New("hierarchy: scene is not tracked")
)

// SceneID identifies one loaded scene.
type SceneID uint32

func (s SceneID) String() string { return fmt.Sprintf("scene(%d)", uint32(s)) }

// PrefabID names the template the remote side instantiates for a spawned
// identity.
type PrefabID uint32

// ObjectHandle references an engine-owned object queued for replication.
// The engine's object model stays outside this package; the handle only
// carries what the registry needs.
type ObjectHandle struct {
	Ref    uint64 // engine object reference, opaque here
	Prefab PrefabID
}

// SceneProvider is the scene-loading collaborator the registry resolves
// object ownership through.
type SceneProvider interface {
	TryGetSceneID(obj ObjectHandle) (SceneID, bool)
}

// NetworkIdentity is one replicated object reference. (Scene, ID) is unique
// among currently spawned identities in that scene, and an ID is never
// reused while its identity stays registered.
type NetworkIdentity struct {
	Scene  SceneID
	ID     uint32
	Prefab PrefabID
	Owner  transport.PlayerID
}

// ConnectionState describes one connection lifecycle change fanned out to
// active scenes.
type ConnectionState struct {
	Connection transport.Connection
	Player     transport.PlayerID
	Connected  bool
}
