// Package ws carries replication frames over websockets. It implements the
// transport contract on both ends: ServerTransport accepts sessions behind
// an HTTP handler, ClientTransport dials out. Socket reads land in an
// intake queue and only reach the core when the tick drains it through
// Poll, preserving the single-threaded model.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"driftnet/netcode/bitpack"
	"driftnet/netcode/telemetry"
	"driftnet/netcode/transport"
)

// Config tunes a websocket transport endpoint.
type Config struct {
	// CompressMin is the payload size, in bytes, at which frames are
	// s2-compressed. Zero disables compression.
	CompressMin int
	// IntakeCapacity bounds the queue between socket readers and the
	// tick. Overflowing frames are dropped with a log line.
	IntakeCapacity int
	Logger         telemetry.Logger
}

const defaultIntakeCapacity = 1024

type intakeKind int

const (
	intakeData intakeKind = iota
	intakeConnect
	intakeDisconnect
)

type intakeItem struct {
	kind intakeKind
	conn transport.Connection
	data []byte
}

// ServerTransport implements transport.Transport for the server role.
type ServerTransport struct {
	events   transport.Events
	logger   telemetry.Logger
	upgrader websocket.Upgrader
	cfg      Config
	intake   chan intakeItem

	mu       sync.Mutex
	sessions map[transport.Connection]*session
	order    []transport.Connection
	nextID   uint64
}

// NewServerTransport creates a server endpoint ready to accept sessions.
func NewServerTransport(cfg Config) *ServerTransport {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}
	if cfg.IntakeCapacity <= 0 {
		cfg.IntakeCapacity = defaultIntakeCapacity
	}
	return &ServerTransport{
		logger: cfg.Logger,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		intake:   make(chan intakeItem, cfg.IntakeCapacity),
		sessions: make(map[transport.Connection]*session),
	}
}

// Handle upgrades one HTTP request into a replication session and runs its
// read loop until the peer goes away.
func (t *ServerTransport) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Printf("ws: upgrade failed: %v", err)
		return
	}
	sess := newSession(conn)

	t.mu.Lock()
	t.nextID++
	handle := transport.MakeConnection(t.nextID)
	t.sessions[handle] = sess
	t.order = append(t.order, handle)
	t.mu.Unlock()

	t.enqueue(intakeItem{kind: intakeConnect, conn: handle})
	t.logger.Printf("ws: session %s connected as %v", sess.id, handle)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.BinaryMessage {
			t.logger.Printf("ws: discarding non-binary message from %v", handle)
			continue
		}
		data, err := decodePayload(payload)
		if err != nil {
			t.logger.Printf("ws: discarding malformed payload from %v: %v", handle, err)
			continue
		}
		t.enqueue(intakeItem{kind: intakeData, conn: handle, data: data})
	}

	t.mu.Lock()
	delete(t.sessions, handle)
	for i, c := range t.order {
		if c == handle {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	sess.close()
	t.enqueue(intakeItem{kind: intakeDisconnect, conn: handle})
	t.logger.Printf("ws: session %s (%v) disconnected", sess.id, handle)
}

func (t *ServerTransport) enqueue(item intakeItem) {
	select {
	case t.intake <- item:
	default:
		t.logger.Printf("ws: intake full; dropping %v frame from %v", item.kind, item.conn)
	}
}

// Poll drains queued socket traffic into the core on the calling
// goroutine. The tick loop calls this once per simulation step.
func (t *ServerTransport) Poll() {
	for {
		select {
		case item := <-t.intake:
			switch item.kind {
			case intakeConnect:
				t.events.RaiseConnectionState(item.conn, true, true)
			case intakeDisconnect:
				t.events.RaiseConnectionState(item.conn, false, true)
			case intakeData:
				t.events.RaiseDataReceived(item.conn, bitpack.NewView(item.data), true)
			}
		default:
			return
		}
	}
}

// SendToClient implements transport.Transport. Both channels currently map
// onto the websocket's ordered-reliable stream; the channel argument keeps
// the contract stable for transports that can do better.
func (t *ServerTransport) SendToClient(conn transport.Connection, data []byte, channel transport.Channel) error {
	t.mu.Lock()
	sess, ok := t.sessions[conn]
	t.mu.Unlock()
	if !ok {
		return transport.ErrUnknownConnection
	}
	return sess.write(data, t.cfg.CompressMin)
}

// SendToServer implements transport.Transport.
func (t *ServerTransport) SendToServer(data []byte, channel transport.Channel) error {
	return transport.ErrNoRoute
}

// Connections implements transport.Transport.
func (t *ServerTransport) Connections() []transport.Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transport.Connection(nil), t.order...)
}

// OnData implements transport.Transport.
func (t *ServerTransport) OnData(handler transport.DataHandler) transport.Subscription {
	return t.events.OnData(handler)
}

// OnConnectionState implements transport.Transport.
func (t *ServerTransport) OnConnectionState(handler transport.ConnectionHandler) transport.Subscription {
	return t.events.OnConnectionState(handler)
}

// RaiseDataReceived implements transport.Transport.
func (t *ServerTransport) RaiseDataReceived(conn transport.Connection, data bitpack.View, asServer bool) {
	t.events.RaiseDataReceived(conn, data, asServer)
}
