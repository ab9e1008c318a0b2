package transport

import (
	"fmt"

	"driftnet/netcode/bitpack"
)

// PlayerID is the stable 32-bit identifier a peer keeps for a whole session.
// Unlike Connection it travels on the wire, so it doubles as the target
// selector for player-addressed RPCs. Zero means "no player".
type PlayerID uint32

// Valid reports whether the id names an assigned player.
func (p PlayerID) Valid() bool { return p != 0 }

func (p PlayerID) String() string { return fmt.Sprintf("player(%d)", uint32(p)) }

// Write serializes the id through the bit packer.
func (p PlayerID) Write(buf *bitpack.Buffer) error {
	return buf.WriteBits(uint64(p), 32)
}

// ReadPlayerID deserializes an id written by Write.
func ReadPlayerID(buf *bitpack.Buffer) (PlayerID, error) {
	v, err := buf.ReadBits(32)
	if err != nil {
		return 0, err
	}
	return PlayerID(v), nil
}
