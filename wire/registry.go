// Package wire maps stable payload-type identities to serializers so that
// independently built peers agree on frame tags without exchanging a schema.
package wire

import (
	"errors"
	"fmt"
	"reflect"

	"driftnet/netcode/bitpack"
	"driftnet/netcode/telemetry"
)

var (
	// ErrHashCollision means two distinct type names mapped to the same
	// stable hash. That is a configuration error: the colliding type must
	// be renamed before the process can talk to anyone.
	ErrHashCollision = errors.New("wire: stable hash collision")

	// ErrUnknownType is returned when encoding or decoding a hash nobody
	// registered.
	ErrUnknownType = errors.New("wire: type not registered")

	// ErrNotAMessage is returned when a payload cannot be auto-registered
	// because it does not serialize itself.
	ErrNotAMessage = errors.New("wire: payload does not implement Message")
)

// Message is implemented by payloads that serialize themselves through the
// bit packer. StableName must be identical on every peer.
type Message interface {
	StableName() string
	Marshal(buf *bitpack.Buffer) error
	Unmarshal(buf *bitpack.Buffer) error
}

// Serializer encodes a payload value into a buffer.
type Serializer func(buf *bitpack.Buffer, value any) error

// Deserializer decodes a payload value from a buffer.
type Deserializer func(buf *bitpack.Buffer) (any, error)

// Descriptor identifies one registered payload type.
type Descriptor struct {
	Name string
	Hash uint32
}

type entry struct {
	desc   Descriptor
	encode Serializer
	decode Deserializer
}

// Registry holds the hash → serializer table for one process. Each distinct
// payload type registers exactly once; registration is idempotent for the
// same name.
type Registry struct {
	byHash map[uint32]*entry
	logger telemetry.Logger
}

// NewRegistry creates an empty type registry.
func NewRegistry(logger telemetry.Logger) *Registry {
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Registry{
		byHash: make(map[uint32]*entry),
		logger: logger,
	}
}

// Register binds a stable name to a serializer/deserializer pair.
// Re-registering the identical name is a no-op; a different name landing on
// an occupied hash fails with ErrHashCollision.
func (r *Registry) Register(name string, encode Serializer, decode Deserializer) (Descriptor, error) {
	hash := StableHash(name)
	if existing, ok := r.byHash[hash]; ok {
		if existing.desc.Name == name {
			return existing.desc, nil
		}
		return Descriptor{}, fmt.Errorf("%w: %q and %q both hash to %#08x", ErrHashCollision, existing.desc.Name, name, hash)
	}
	desc := Descriptor{Name: name, Hash: hash}
	r.byHash[hash] = &entry{desc: desc, encode: encode, decode: decode}
	return desc, nil
}

// RegisterMessage registers a self-serializing payload type, deriving the
// deserializer from the prototype's concrete type. The prototype must be a
// pointer so decoded values can be populated in place.
func (r *Registry) RegisterMessage(prototype Message) (Descriptor, error) {
	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Pointer {
		return Descriptor{}, fmt.Errorf("%w: %T must be registered as a pointer", ErrNotAMessage, prototype)
	}
	elem := t.Elem()
	encode := func(buf *bitpack.Buffer, value any) error {
		msg, ok := value.(Message)
		if !ok {
			return fmt.Errorf("%w: %T", ErrNotAMessage, value)
		}
		return msg.Marshal(buf)
	}
	decode := func(buf *bitpack.Buffer) (any, error) {
		msg := reflect.New(elem).Interface().(Message)
		if err := msg.Unmarshal(buf); err != nil {
			return nil, err
		}
		return msg, nil
	}
	return r.Register(prototype.StableName(), encode, decode)
}

// EnsureRegistered returns the descriptor for a payload, auto-registering
// self-serializing types on first use. Auto-registration is best effort and
// logged; payloads that cannot serialize themselves are rejected.
func (r *Registry) EnsureRegistered(value any) (Descriptor, error) {
	msg, ok := value.(Message)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %T", ErrNotAMessage, value)
	}
	hash := StableHash(msg.StableName())
	if existing, ok := r.byHash[hash]; ok && existing.desc.Name == msg.StableName() {
		return existing.desc, nil
	}
	desc, err := r.RegisterMessage(msg)
	if err != nil {
		return Descriptor{}, err
	}
	r.logger.Printf("wire: auto-registered payload type %q (%#08x); prefer explicit registration at startup", desc.Name, desc.Hash)
	return desc, nil
}

// Resolve maps an incoming wire tag back to its descriptor. An unknown hash
// is a normal outcome, not an error: nobody local registered that type.
func (r *Registry) Resolve(hash uint32) (Descriptor, bool) {
	e, ok := r.byHash[hash]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Encode serializes a payload under its registered hash.
func (r *Registry) Encode(hash uint32, buf *bitpack.Buffer, value any) error {
	e, ok := r.byHash[hash]
	if !ok {
		return fmt.Errorf("%w: %#08x", ErrUnknownType, hash)
	}
	return e.encode(buf, value)
}

// Decode deserializes a payload for a registered hash.
func (r *Registry) Decode(hash uint32, buf *bitpack.Buffer) (any, error) {
	e, ok := r.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %#08x", ErrUnknownType, hash)
	}
	return e.decode(buf)
}
