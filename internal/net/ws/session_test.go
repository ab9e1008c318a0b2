package ws

import (
	"bytes"
	"testing"
)

func TestPayloadFramingRoundTrip(t *testing.T) {
	data := []byte{0x45, 0x01, 0x02, 0x03, 0x04}

	framed := encodePayload(data, 0)
	if framed[0] != payloadRaw {
		t.Fatalf("small payload must stay raw, got flag %d", framed[0])
	}

	decoded, err := decodePayload(framed)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("round trip mismatch: %v != %v", decoded, data)
	}
}

func TestPayloadCompressionRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 4096)

	framed := encodePayload(data, 64)
	if framed[0] != payloadCompressed {
		t.Fatalf("repetitive payload should compress, got flag %d", framed[0])
	}
	if len(framed) >= len(data) {
		t.Fatalf("compressed frame not smaller: %d >= %d", len(framed), len(data))
	}

	decoded, err := decodePayload(framed)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("round trip mismatch after compression")
	}
}

func TestIncompressiblePayloadStaysRaw(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i*31 + 7)
	}

	framed := encodePayload(data, 64)
	if framed[0] != payloadRaw {
		t.Fatalf("incompressible payload must fall back to raw")
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	if _, err := decodePayload(nil); err == nil {
		t.Fatalf("empty frame must fail")
	}
	if _, err := decodePayload([]byte{99, 1, 2}); err == nil {
		t.Fatalf("unknown flag must fail")
	}
	if _, err := decodePayload([]byte{payloadCompressed, 0xFF, 0xFF}); err == nil {
		t.Fatalf("corrupt compressed frame must fail")
	}
}
