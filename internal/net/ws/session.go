package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/s2"
)

const writeWait = 10 * time.Second

// Payload flag bytes internal to the websocket framing. The replication
// layers never see them; they are stripped on receive.
const (
	payloadRaw        byte = 0
	payloadCompressed byte = 1
)

// session owns one websocket connection. Writes are serialized by a mutex
// because broadcasts and per-connection sends can race from the tick and
// HTTP goroutines.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func newSession(conn *websocket.Conn) *session {
	return &session{id: uuid.New(), conn: conn}
}

// encodePayload prepends the framing flag. Payloads at or above
// compressMin bytes are s2-compressed when that actually wins.
func encodePayload(data []byte, compressMin int) []byte {
	out := make([]byte, 1, len(data)+1)
	out[0] = payloadRaw
	if compressMin > 0 && len(data) >= compressMin {
		encoded := s2.Encode(nil, data)
		if len(encoded) < len(data) {
			out[0] = payloadCompressed
			return append(out, encoded...)
		}
	}
	return append(out, data...)
}

// write frames and sends one payload.
func (s *session) write(data []byte, compressMin int) error {
	out := encodePayload(data, compressMin)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, out)
}

// decodePayload strips the framing flag and decompresses when needed.
func decodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ws: empty payload")
	}
	switch data[0] {
	case payloadRaw:
		return data[1:], nil
	case payloadCompressed:
		decoded, err := s2.Decode(nil, data[1:])
		if err != nil {
			return nil, fmt.Errorf("ws: decompress payload: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("ws: unknown payload flag %d", data[0])
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close()
}
