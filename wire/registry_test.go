package wire

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"driftnet/netcode/bitpack"
	"driftnet/netcode/telemetry"
)

type notePayload struct {
	Value uint32
}

func (*notePayload) StableName() string { return "test.note" }

func (m *notePayload) Marshal(buf *bitpack.Buffer) error {
	return buf.WriteBits(uint64(m.Value), 32)
}

func (m *notePayload) Unmarshal(buf *bitpack.Buffer) error {
	v, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	m.Value = uint32(v)
	return nil
}

// valueNote implements Message on the value receiver, so it cannot be
// registered as a decode prototype.
type valueNote struct{}

func (valueNote) StableName() string              { return "test.value-note" }
func (valueNote) Marshal(*bitpack.Buffer) error   { return nil }
func (valueNote) Unmarshal(*bitpack.Buffer) error { return nil }

func captureLogger(lines *[]string) telemetry.Logger {
	return telemetry.LoggerFunc(func(format string, args ...any) {
		*lines = append(*lines, fmt.Sprintf(format, args...))
	})
}

func TestRegisterIsIdempotentForSameName(t *testing.T) {
	r := NewRegistry(nil)

	first, err := r.RegisterMessage(&notePayload{})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := r.RegisterMessage(&notePayload{})
	if err != nil {
		t.Fatalf("re-registration of the same name must be a no-op, got %v", err)
	}
	if first != second {
		t.Fatalf("re-registration changed the descriptor: %+v != %+v", first, second)
	}
	if first.Hash != StableHash((&notePayload{}).StableName()) {
		t.Fatalf("descriptor hash %#08x does not match the stable name hash", first.Hash)
	}
}

func TestRegisterRejectsCollidingName(t *testing.T) {
	r := NewRegistry(nil)

	// Occupy the hash under a different name, as a colliding type would.
	hash := StableHash("test.note")
	r.byHash[hash] = &entry{desc: Descriptor{Name: "some.other", Hash: hash}}

	if _, err := r.Register("test.note", nil, nil); !errors.Is(err, ErrHashCollision) {
		t.Fatalf("expected ErrHashCollision for an occupied hash, got %v", err)
	}
	// The original entry must survive the rejected registration.
	desc, ok := r.Resolve(hash)
	if !ok || desc.Name != "some.other" {
		t.Fatalf("collision overwrote the existing entry: %+v", desc)
	}
}

func TestResolveUnknownHash(t *testing.T) {
	r := NewRegistry(nil)

	if _, ok := r.Resolve(0xDEADBEEF); ok {
		t.Fatalf("Resolve must report false for an unregistered hash")
	}
	buf := bitpack.NewBuffer(8)
	if err := r.Encode(0xDEADBEEF, buf, &notePayload{}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType from Encode, got %v", err)
	}
	if _, err := r.Decode(0xDEADBEEF, buf); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType from Decode, got %v", err)
	}
}

func TestEnsureRegisteredAutoRegistersAndLogsOnce(t *testing.T) {
	var lines []string
	r := NewRegistry(captureLogger(&lines))

	desc, err := r.EnsureRegistered(&notePayload{Value: 1})
	if err != nil {
		t.Fatalf("auto-registration failed: %v", err)
	}
	if desc.Name != "test.note" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "auto-registered") {
		t.Fatalf("expected one auto-registration log line, got %v", lines)
	}

	if _, err := r.EnsureRegistered(&notePayload{Value: 2}); err != nil {
		t.Fatalf("second EnsureRegistered failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("already-registered payload must not log again: %v", lines)
	}

	if _, err := r.EnsureRegistered(42); !errors.Is(err, ErrNotAMessage) {
		t.Fatalf("expected ErrNotAMessage for a plain value, got %v", err)
	}
}

func TestRegisterMessageRequiresPointerPrototype(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.RegisterMessage(valueNote{}); !errors.Is(err, ErrNotAMessage) {
		t.Fatalf("expected ErrNotAMessage for a value prototype, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	desc, err := r.RegisterMessage(&notePayload{})
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	buf := bitpack.NewBuffer(8)
	sent := &notePayload{Value: 0xBEEF}
	if err := r.Encode(desc.Hash, buf, sent); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	buf.Reset(bitpack.ModeRead)
	decoded, err := r.Decode(desc.Hash, buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	got, ok := decoded.(*notePayload)
	if !ok {
		t.Fatalf("decode produced %T, want *notePayload", decoded)
	}
	if got.Value != sent.Value {
		t.Fatalf("round trip corrupted value: sent %#x, got %#x", sent.Value, got.Value)
	}
}
