package hierarchy

import (
	"driftnet/netcode/bitpack"
	"driftnet/netcode/transport"
)

// SpawnMessage replicates one identity coming into existence. The server
// broadcasts it on spawn and replays it to late-joining connections.
type SpawnMessage struct {
	Scene  SceneID
	ID     uint32
	Prefab PrefabID
	Owner  transport.PlayerID
}

func (*SpawnMessage) StableName() string { return "hierarchy.spawn" }

func (m *SpawnMessage) Marshal(buf *bitpack.Buffer) error {
	if err := buf.WriteBits(uint64(m.Scene), 32); err != nil {
		return err
	}
	if err := buf.WriteBits(uint64(m.ID), 32); err != nil {
		return err
	}
	if err := buf.WriteBits(uint64(m.Prefab), 32); err != nil {
		return err
	}
	return m.Owner.Write(buf)
}

func (m *SpawnMessage) Unmarshal(buf *bitpack.Buffer) error {
	scene, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	id, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	prefab, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	owner, err := transport.ReadPlayerID(buf)
	if err != nil {
		return err
	}
	m.Scene = SceneID(scene)
	m.ID = uint32(id)
	m.Prefab = PrefabID(prefab)
	m.Owner = owner
	return nil
}

// DespawnMessage replicates one identity leaving existence.
type DespawnMessage struct {
	Scene SceneID
	ID    uint32
}

func (*DespawnMessage) StableName() string { return "hierarchy.despawn" }

func (m *DespawnMessage) Marshal(buf *bitpack.Buffer) error {
	if err := buf.WriteBits(uint64(m.Scene), 32); err != nil {
		return err
	}
	return buf.WriteBits(uint64(m.ID), 32)
}

func (m *DespawnMessage) Unmarshal(buf *bitpack.Buffer) error {
	scene, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	id, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	m.Scene = SceneID(scene)
	m.ID = uint32(id)
	return nil
}
