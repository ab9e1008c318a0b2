package hierarchy

import (
	"fmt"
	"time"

	"driftnet/netcode/broadcast"
	"driftnet/netcode/telemetry"
	"driftnet/netcode/transport"
)

// IdentityListener observes identities entering or leaving any active
// scene. Consumers (visibility, ownership) subscribe once at the registry
// level instead of per scene.
type IdentityListener func(identity *NetworkIdentity)

// Subscription identifies one registered identity listener.
type Subscription struct {
	kind string
	id   uint64
}

type listenerEntry struct {
	id uint64
	fn IdentityListener
}

// Registry is the per-process table of scene sub-registries. Scene
// lifecycle transitions (Unloaded → Loaded → Unloaded) are driven by the
// external scene-loading collaborator through OnPreSceneLoaded and
// OnSceneUnloaded; the registry owns every Scene it creates and destroys
// them deterministically on unload.
type Registry struct {
	router   *broadcast.Router
	provider SceneProvider
	logger   telemetry.Logger
	metrics  telemetry.Metrics

	scenes map[SceneID]*Scene
	order  []SceneID // registration order, drives tick fan-out

	nextListener uint64
	added        []listenerEntry
	removed      []listenerEntry
}

// NewRegistry wires a hierarchy registry onto a broadcast router. The spawn
// and despawn payload types are registered here so both roles agree on
// their wire tags; the apply callbacks only fire on the client side.
func NewRegistry(router *broadcast.Router, provider SceneProvider, logger telemetry.Logger, metrics telemetry.Metrics) (*Registry, error) {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	r := &Registry{
		router:   router,
		provider: provider,
		logger:   logger,
		metrics:  metrics,
		scenes:   make(map[SceneID]*Scene),
	}
	if _, err := router.Handle(&SpawnMessage{}, false, r.onRemoteSpawn); err != nil {
		return nil, fmt.Errorf("hierarchy: register spawn message: %w", err)
	}
	if _, err := router.Handle(&DespawnMessage{}, false, r.onRemoteDespawn); err != nil {
		return nil, fmt.Errorf("hierarchy: register despawn message: %w", err)
	}
	return r, nil
}

// OnPreSceneLoaded creates and activates the sub-registry for a loading
// scene. Loading an already-tracked scene is logged and ignored.
func (r *Registry) OnPreSceneLoaded(scene SceneID, asServer bool) {
	if _, ok := r.scenes[scene]; ok {
		r.logger.Printf("hierarchy: %v already tracked; ignoring duplicate load", scene)
		return
	}
	r.scenes[scene] = newScene(scene, asServer, r)
	r.order = append(r.order, scene)
	r.metrics.Store("hierarchy.scenes", uint64(len(r.scenes)))
}

// OnSceneUnloaded deactivates and discards a scene's sub-registry. Every
// identity still registered there is removed (listeners fire) and becomes
// unresolvable immediately.
func (r *Registry) OnSceneUnloaded(scene SceneID, asServer bool) {
	sub, ok := r.scenes[scene]
	if !ok {
		return
	}
	for id := range sub.identities {
		sub.despawn(id, false)
	}
	delete(r.scenes, scene)
	for i, s := range r.order {
		if s == scene {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.metrics.Store("hierarchy.scenes", uint64(len(r.scenes)))
}

// Scene returns the live sub-registry for a scene id.
func (r *Registry) Scene(scene SceneID) (*Scene, bool) {
	s, ok := r.scenes[scene]
	return s, ok
}

// Spawn resolves the object's owning scene and delegates spawning to its
// sub-registry. Failure to resolve or locate the scene is logged and
// returned; callers continue.
func (r *Registry) Spawn(obj ObjectHandle, owner transport.PlayerID) (*NetworkIdentity, error) {
	scene, ok := r.provider.TryGetSceneID(obj)
	if !ok {
		r.logger.Printf("hierarchy: cannot resolve scene for object %d; spawn skipped", obj.Ref)
		return nil, ErrUnknownScene
	}
	sub, ok := r.scenes[scene]
	if !ok {
		r.logger.Printf("hierarchy: object %d belongs to untracked %v; spawn skipped", obj.Ref, scene)
		return nil, fmt.Errorf("%w: %v", ErrUntrackedScene, scene)
	}
	return sub.spawn(obj, owner), nil
}

// Despawn removes one identity and replicates the removal.
func (r *Registry) Despawn(scene SceneID, localID uint32) bool {
	sub, ok := r.scenes[scene]
	if !ok {
		return false
	}
	return sub.despawn(localID, true)
}

// TryGetIdentity resolves (scene, local id) to a live identity. Absence is
// a normal, expected outcome.
func (r *Registry) TryGetIdentity(scene SceneID, localID uint32) (*NetworkIdentity, bool) {
	sub, ok := r.scenes[scene]
	if !ok {
		return nil, false
	}
	return sub.tryGet(localID)
}

// TickSimulation fans the fixed-cadence pass out to every active scene, in
// scene-registration order.
func (r *Registry) TickSimulation(delta time.Duration) {
	for _, scene := range r.order {
		if sub, ok := r.scenes[scene]; ok {
			sub.tickSimulation(delta)
		}
	}
}

// TickPresentation fans the variable-cadence pass out to every active
// scene, in scene-registration order.
func (r *Registry) TickPresentation(delta time.Duration) {
	for _, scene := range r.order {
		if sub, ok := r.scenes[scene]; ok {
			sub.tickPresentation(delta)
		}
	}
}

// OnConnectionStateChanged fans a connection lifecycle change out to every
// active scene so each can revoke or re-grant interest and ownership.
func (r *Registry) OnConnectionStateChanged(state ConnectionState, asServer bool) {
	for _, scene := range r.order {
		if sub, ok := r.scenes[scene]; ok {
			sub.handleConnectionState(state, asServer)
		}
	}
}

// OnIdentityAdded subscribes to identities appearing in any active scene.
func (r *Registry) OnIdentityAdded(fn IdentityListener) Subscription {
	r.nextListener++
	r.added = append(r.added, listenerEntry{id: r.nextListener, fn: fn})
	return Subscription{kind: "added", id: r.nextListener}
}

// OnIdentityRemoved subscribes to identities leaving any active scene.
func (r *Registry) OnIdentityRemoved(fn IdentityListener) Subscription {
	r.nextListener++
	r.removed = append(r.removed, listenerEntry{id: r.nextListener, fn: fn})
	return Subscription{kind: "removed", id: r.nextListener}
}

// Unsubscribe removes at most the first listener matching the subscription.
func (r *Registry) Unsubscribe(sub Subscription) {
	var list *[]listenerEntry
	switch sub.kind {
	case "added":
		list = &r.added
	case "removed":
		list = &r.removed
	default:
		return
	}
	for i, entry := range *list {
		if entry.id == sub.id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func (r *Registry) raiseAdded(identity *NetworkIdentity) {
	r.metrics.Add("hierarchy.identities_added", 1)
	snapshot := append([]listenerEntry(nil), r.added...)
	for _, entry := range snapshot {
		entry.fn(identity)
	}
}

func (r *Registry) raiseRemoved(identity *NetworkIdentity) {
	r.metrics.Add("hierarchy.identities_removed", 1)
	snapshot := append([]listenerEntry(nil), r.removed...)
	for _, entry := range snapshot {
		entry.fn(identity)
	}
}

func (r *Registry) onRemoteSpawn(conn transport.Connection, payload any, asServer bool) {
	msg, ok := payload.(*SpawnMessage)
	if !ok {
		return
	}
	sub, ok := r.scenes[msg.Scene]
	if !ok {
		r.logger.Printf("hierarchy: spawn for untracked %v from %v; dropped", msg.Scene, conn)
		return
	}
	sub.applyRemote(msg)
}

func (r *Registry) onRemoteDespawn(conn transport.Connection, payload any, asServer bool) {
	msg, ok := payload.(*DespawnMessage)
	if !ok {
		return
	}
	sub, ok := r.scenes[msg.Scene]
	if !ok {
		return
	}
	sub.despawn(msg.ID, false)
}
