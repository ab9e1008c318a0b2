package hierarchy

import (
	"time"

	"driftnet/netcode/transport"
)

// Scene is the sub-registry for one loaded scene. It owns the local id →
// identity mapping and is itself exclusively owned by the Registry: created
// on scene load, discarded on unload. Local ids are monotonic and never
// handed out twice within one Scene lifetime.
type Scene struct {
	id       SceneID
	asServer bool
	registry *Registry

	nextLocalID uint32
	identities  map[uint32]*NetworkIdentity

	tick uint64

	// Connections that joined since the last simulation tick and still
	// need the scene's existing identities replayed to them. Server side
	// only.
	pendingSync []transport.Connection
}

func newScene(id SceneID, asServer bool, registry *Registry) *Scene {
	return &Scene{
		id:         id,
		asServer:   asServer,
		registry:   registry,
		identities: make(map[uint32]*NetworkIdentity),
	}
}

// ID returns the scene this sub-registry tracks.
func (s *Scene) ID() SceneID { return s.id }

// Count returns the number of currently registered identities.
func (s *Scene) Count() int { return len(s.identities) }

// spawn assigns a fresh local id, records the identity, notifies aggregate
// listeners, and (server side) broadcasts the spawn.
func (s *Scene) spawn(obj ObjectHandle, owner transport.PlayerID) *NetworkIdentity {
	s.nextLocalID++
	identity := &NetworkIdentity{
		Scene:  s.id,
		ID:     s.nextLocalID,
		Prefab: obj.Prefab,
		Owner:  owner,
	}
	s.identities[identity.ID] = identity
	s.registry.raiseAdded(identity)
	if s.asServer {
		msg := &SpawnMessage{Scene: s.id, ID: identity.ID, Prefab: identity.Prefab, Owner: identity.Owner}
		if err := s.registry.router.SendToAll(msg, transport.ChannelReliableOrdered); err != nil {
			s.registry.logger.Printf("hierarchy: broadcast spawn %v/%d failed: %v", s.id, identity.ID, err)
		}
	}
	return identity
}

// applyRemote records a server-assigned identity on the client side. The
// local id counter is pushed past server-assigned ids so a later local
// assignment cannot collide.
func (s *Scene) applyRemote(msg *SpawnMessage) *NetworkIdentity {
	if existing, ok := s.identities[msg.ID]; ok {
		return existing
	}
	identity := &NetworkIdentity{Scene: msg.Scene, ID: msg.ID, Prefab: msg.Prefab, Owner: msg.Owner}
	s.identities[identity.ID] = identity
	if msg.ID > s.nextLocalID {
		s.nextLocalID = msg.ID
	}
	s.registry.raiseAdded(identity)
	return identity
}

// despawn removes an identity, notifies aggregate listeners, and (server
// side, when broadcastRemoval is set) tells every peer.
func (s *Scene) despawn(localID uint32, broadcastRemoval bool) bool {
	identity, ok := s.identities[localID]
	if !ok {
		return false
	}
	delete(s.identities, localID)
	s.registry.raiseRemoved(identity)
	if s.asServer && broadcastRemoval {
		msg := &DespawnMessage{Scene: s.id, ID: localID}
		if err := s.registry.router.SendToAll(msg, transport.ChannelReliableOrdered); err != nil {
			s.registry.logger.Printf("hierarchy: broadcast despawn %v/%d failed: %v", s.id, localID, err)
		}
	}
	return true
}

// tryGet resolves a local id. Absence is a normal outcome, e.g. the
// identity already despawned.
func (s *Scene) tryGet(localID uint32) (*NetworkIdentity, bool) {
	identity, ok := s.identities[localID]
	return identity, ok
}

// tickSimulation advances the fixed-cadence pass. Late joiners queued since
// the previous tick get the scene's current identities replayed here, so a
// client connecting mid-session converges within one tick.
func (s *Scene) tickSimulation(delta time.Duration) {
	s.tick++
	if !s.asServer || len(s.pendingSync) == 0 {
		return
	}
	pending := s.pendingSync
	s.pendingSync = nil
	for _, conn := range pending {
		for _, identity := range s.identities {
			msg := &SpawnMessage{Scene: s.id, ID: identity.ID, Prefab: identity.Prefab, Owner: identity.Owner}
			if err := s.registry.router.SendToClient(conn, msg, transport.ChannelReliableOrdered); err != nil {
				s.registry.logger.Printf("hierarchy: replay spawn %v/%d to %v failed: %v", s.id, identity.ID, conn, err)
			}
		}
	}
}

// tickPresentation advances the variable-cadence pass. The registry keeps
// no presentation state of its own; the hook exists so consumers observing
// aggregate events stay in step with the host's frame clock.
func (s *Scene) tickPresentation(delta time.Duration) {}

// handleConnectionState revokes or grants interest tied to one connection.
// On the server, a departing player's identities despawn and the despawns
// are broadcast; a new connection is queued for identity replay.
func (s *Scene) handleConnectionState(state ConnectionState, asServer bool) {
	if s.asServer != asServer {
		return
	}
	if !asServer {
		return
	}
	if state.Connected {
		s.pendingSync = append(s.pendingSync, state.Connection)
		return
	}
	for _, conn := range s.pendingSync {
		if conn == state.Connection {
			s.removePendingSync(conn)
			break
		}
	}
	if !state.Player.Valid() {
		return
	}
	var owned []uint32
	for id, identity := range s.identities {
		if identity.Owner == state.Player {
			owned = append(owned, id)
		}
	}
	for _, id := range owned {
		s.despawn(id, true)
	}
}

func (s *Scene) removePendingSync(conn transport.Connection) {
	for i, c := range s.pendingSync {
		if c == conn {
			s.pendingSync = append(s.pendingSync[:i], s.pendingSync[i+1:]...)
			return
		}
	}
}
