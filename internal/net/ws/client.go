package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"driftnet/netcode/bitpack"
	"driftnet/netcode/telemetry"
	"driftnet/netcode/transport"
)

// serverHandle is how a client transport refers to its one peer.
var serverHandle = transport.MakeConnection(1)

// ClientTransport implements transport.Transport for the client role. It
// keeps exactly one session, the connection to the server.
type ClientTransport struct {
	events transport.Events
	logger telemetry.Logger
	cfg    Config
	intake chan intakeItem

	mu   sync.Mutex
	sess *session
}

// NewClientTransport creates a client endpoint. Call Dial to connect.
func NewClientTransport(cfg Config) *ClientTransport {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard()
	}
	if cfg.IntakeCapacity <= 0 {
		cfg.IntakeCapacity = defaultIntakeCapacity
	}
	return &ClientTransport{
		logger: cfg.Logger,
		cfg:    cfg,
		intake: make(chan intakeItem, cfg.IntakeCapacity),
	}
}

// Dial connects to a websocket endpoint such as ws://host:port/ws and
// starts the read loop. The loop runs until the socket closes.
func (t *ClientTransport) Dial(ctx context.Context, url string) error {
	t.mu.Lock()
	if t.sess != nil {
		t.mu.Unlock()
		return fmt.Errorf("ws: already connected")
	}
	t.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("ws: dial %s: %w", url, err)
	}
	sess := newSession(conn)

	t.mu.Lock()
	t.sess = sess
	t.mu.Unlock()

	t.enqueue(intakeItem{kind: intakeConnect, conn: serverHandle})
	t.logger.Printf("ws: session %s connected to %s", sess.id, url)

	go t.readLoop(sess)
	return nil
}

func (t *ClientTransport) readLoop(sess *session) {
	for {
		messageType, payload, err := sess.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.BinaryMessage {
			t.logger.Printf("ws: discarding non-binary message from server")
			continue
		}
		data, err := decodePayload(payload)
		if err != nil {
			t.logger.Printf("ws: discarding malformed payload from server: %v", err)
			continue
		}
		t.enqueue(intakeItem{kind: intakeData, conn: serverHandle, data: data})
	}

	t.mu.Lock()
	t.sess = nil
	t.mu.Unlock()
	sess.close()
	t.enqueue(intakeItem{kind: intakeDisconnect, conn: serverHandle})
	t.logger.Printf("ws: session %s disconnected", sess.id)
}

// Close tears down the server session, if any.
func (t *ClientTransport) Close() {
	t.mu.Lock()
	sess := t.sess
	t.mu.Unlock()
	if sess != nil {
		sess.close()
	}
}

func (t *ClientTransport) enqueue(item intakeItem) {
	select {
	case t.intake <- item:
	default:
		t.logger.Printf("ws: intake full; dropping %v frame", item.kind)
	}
}

// Poll drains queued socket traffic into the core on the calling
// goroutine.
func (t *ClientTransport) Poll() {
	for {
		select {
		case item := <-t.intake:
			switch item.kind {
			case intakeConnect:
				t.events.RaiseConnectionState(item.conn, true, false)
			case intakeDisconnect:
				t.events.RaiseConnectionState(item.conn, false, false)
			case intakeData:
				t.events.RaiseDataReceived(item.conn, bitpack.NewView(item.data), false)
			}
		default:
			return
		}
	}
}

// SendToClient implements transport.Transport. Clients cannot target other
// clients directly.
func (t *ClientTransport) SendToClient(conn transport.Connection, data []byte, channel transport.Channel) error {
	return transport.ErrNoRoute
}

// SendToServer implements transport.Transport.
func (t *ClientTransport) SendToServer(data []byte, channel transport.Channel) error {
	t.mu.Lock()
	sess := t.sess
	t.mu.Unlock()
	if sess == nil {
		return transport.ErrNoRoute
	}
	return sess.write(data, t.cfg.CompressMin)
}

// Connections implements transport.Transport.
func (t *ClientTransport) Connections() []transport.Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return nil
	}
	return []transport.Connection{serverHandle}
}

// OnData implements transport.Transport.
func (t *ClientTransport) OnData(handler transport.DataHandler) transport.Subscription {
	return t.events.OnData(handler)
}

// OnConnectionState implements transport.Transport.
func (t *ClientTransport) OnConnectionState(handler transport.ConnectionHandler) transport.Subscription {
	return t.events.OnConnectionState(handler)
}

// RaiseDataReceived implements transport.Transport.
func (t *ClientTransport) RaiseDataReceived(conn transport.Connection, data bitpack.View, asServer bool) {
	t.events.RaiseDataReceived(conn, data, asServer)
}
