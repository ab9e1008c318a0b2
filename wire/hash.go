package wire

import "github.com/spaolacci/murmur3"

// StableHash maps a payload type's stable name to its 32-bit wire tag.
//
// Every peer that registers the same name computes the same tag, so frames
// can self-describe their payload type without carrying the name. The
// algorithm is fixed; changing it is a protocol break for every peer.
func StableHash(name string) uint32 {
	return murmur3.Sum32([]byte(name))
}
