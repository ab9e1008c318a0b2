package wire

import (
	"errors"

	"driftnet/netcode/bitpack"
)

// Packet kind identifiers. The kind byte leads every frame.
const (
	KindBroadcast byte = 69
)

// HeaderBytes is the framed prefix ahead of every payload: one kind byte
// plus the 32-bit type hash.
const HeaderBytes = 5

// ErrBadPacketKind is returned when an incoming frame leads with an
// unexpected kind byte.
var ErrBadPacketKind = errors.New("wire: unexpected packet kind")

// WriteHeader frames an outgoing payload with its kind byte and type hash.
func WriteHeader(buf *bitpack.Buffer, kind byte, hash uint32) error {
	if err := buf.WriteBits(uint64(kind), 8); err != nil {
		return err
	}
	return buf.WriteBits(uint64(hash), 32)
}

// ReadHeader decodes the kind byte and type hash from an incoming frame.
func ReadHeader(buf *bitpack.Buffer) (byte, uint32, error) {
	kind, err := buf.ReadBits(8)
	if err != nil {
		return 0, 0, err
	}
	hash, err := buf.ReadBits(32)
	if err != nil {
		return 0, 0, err
	}
	return byte(kind), uint32(hash), nil
}
