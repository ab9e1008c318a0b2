package transport

import (
	"driftnet/netcode/bitpack"
)

// Link joins one in-process server endpoint with any number of in-process
// client endpoints. Frames are handed over synchronously on the sending
// goroutine, so both channels behave as ordered-reliable. Used for local
// play and tests; the contract matches the websocket transport exactly.
//
// Like the rest of the core, a Link expects to be driven from a single
// goroutine.
type Link struct {
	server   *MemoryEndpoint
	clients  map[Connection]*MemoryEndpoint
	order    []Connection
	nextConn uint64
}

// NewLink creates an empty link with a ready server endpoint.
func NewLink() *Link {
	l := &Link{clients: make(map[Connection]*MemoryEndpoint)}
	l.server = &MemoryEndpoint{link: l, isServer: true}
	return l
}

// Server returns the server-side endpoint.
func (l *Link) Server() *MemoryEndpoint { return l.server }

// Connect attaches a new client endpoint and announces the connection on
// both sides.
func (l *Link) Connect() *MemoryEndpoint {
	l.nextConn++
	conn := MakeConnection(l.nextConn)
	client := &MemoryEndpoint{link: l, conn: conn}
	l.clients[conn] = client
	l.order = append(l.order, conn)
	l.server.events.RaiseConnectionState(conn, true, true)
	client.events.RaiseConnectionState(conn, true, false)
	return client
}

// Disconnect detaches a client endpoint and announces the drop on both
// sides.
func (l *Link) Disconnect(conn Connection) {
	client, ok := l.clients[conn]
	if !ok {
		return
	}
	delete(l.clients, conn)
	for i, c := range l.order {
		if c == conn {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.server.events.RaiseConnectionState(conn, false, true)
	client.events.RaiseConnectionState(conn, false, false)
}

// MemoryEndpoint is one side of a Link. The server endpoint routes
// SendToClient to the matching client endpoint; client endpoints route
// SendToServer to the server endpoint.
type MemoryEndpoint struct {
	link     *Link
	events   Events
	isServer bool
	conn     Connection // the client's own handle; zero on the server side
}

// Connection returns the handle the server knows this client endpoint by.
func (m *MemoryEndpoint) Connection() Connection { return m.conn }

// SendToClient implements Transport.
func (m *MemoryEndpoint) SendToClient(conn Connection, data []byte, channel Channel) error {
	if !m.isServer {
		return ErrNoRoute
	}
	client, ok := m.link.clients[conn]
	if !ok {
		return ErrUnknownConnection
	}
	client.events.RaiseDataReceived(conn, bitpack.NewView(data), false)
	return nil
}

// SendToServer implements Transport.
func (m *MemoryEndpoint) SendToServer(data []byte, channel Channel) error {
	if m.isServer {
		return ErrNoRoute
	}
	if _, ok := m.link.clients[m.conn]; !ok {
		return ErrUnknownConnection
	}
	m.link.server.events.RaiseDataReceived(m.conn, bitpack.NewView(data), true)
	return nil
}

// Connections implements Transport. The server endpoint lists clients in
// connect order; a client endpoint lists only its server link.
func (m *MemoryEndpoint) Connections() []Connection {
	if m.isServer {
		return append([]Connection(nil), m.link.order...)
	}
	if _, ok := m.link.clients[m.conn]; !ok {
		return nil
	}
	return []Connection{m.conn}
}

// OnData implements Transport.
func (m *MemoryEndpoint) OnData(handler DataHandler) Subscription {
	return m.events.OnData(handler)
}

// OnConnectionState implements Transport.
func (m *MemoryEndpoint) OnConnectionState(handler ConnectionHandler) Subscription {
	return m.events.OnConnectionState(handler)
}

// Unsubscribe removes a listener registered on this endpoint.
func (m *MemoryEndpoint) Unsubscribe(sub Subscription) {
	m.events.Unsubscribe(sub)
}

// RaiseDataReceived implements Transport.
func (m *MemoryEndpoint) RaiseDataReceived(conn Connection, data bitpack.View, asServer bool) {
	m.events.RaiseDataReceived(conn, data, asServer)
}
