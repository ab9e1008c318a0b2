// Package transport declares the delivery contract the replication layers
// send through. Concrete transports (websocket, in-memory) live behind this
// boundary; the core never sees sockets.
package transport

import (
	"errors"
	"fmt"

	"driftnet/netcode/bitpack"
)

// Channel selects the delivery guarantees for one send.
type Channel uint8

const (
	// ChannelUnreliableUnordered delivers best effort with no ordering.
	ChannelUnreliableUnordered Channel = iota
	// ChannelReliableOrdered delivers every frame, in send order, per
	// connection.
	ChannelReliableOrdered
)

func (c Channel) String() string {
	switch c {
	case ChannelUnreliableUnordered:
		return "unreliable-unordered"
	case ChannelReliableOrdered:
		return "reliable-ordered"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

var (
	// ErrNoRoute is returned when a send direction does not exist on this
	// endpoint, e.g. SendToServer on the server's own transport.
	ErrNoRoute = errors.New("transport: no route for this endpoint role")

	// ErrUnknownConnection is returned when sending to a connection this
	// endpoint does not hold.
	ErrUnknownConnection = errors.New("transport: unknown connection")
)

// Connection is the opaque per-peer handle used as the addressing unit for
// sends and receives. It is equality-comparable and stable for the lifetime
// of a session. The zero value addresses the local endpoint itself and is
// what loopback deliveries carry as their sender.
type Connection struct {
	id uint64
}

// Local is the connection value loopback deliveries carry.
var Local = Connection{}

// MakeConnection builds a connection handle from a non-zero session id.
func MakeConnection(id uint64) Connection {
	return Connection{id: id}
}

// Valid reports whether the handle addresses a remote peer.
func (c Connection) Valid() bool { return c.id != 0 }

func (c Connection) String() string {
	if !c.Valid() {
		return "conn(local)"
	}
	return fmt.Sprintf("conn(%d)", c.id)
}

// DataHandler consumes one received frame. Handlers run synchronously on the
// raising goroutine and must not block.
type DataHandler func(conn Connection, data bitpack.View, asServer bool)

// ConnectionHandler observes a connection entering or leaving the session.
type ConnectionHandler func(conn Connection, connected bool, asServer bool)

// Transport is the delivery contract consumed by the broadcast layer.
type Transport interface {
	// SendToClient delivers bytes to one connected peer. Server side only.
	SendToClient(conn Connection, data []byte, channel Channel) error
	// SendToServer delivers bytes upstream. Client side only; the server
	// loopback path bypasses the transport entirely.
	SendToServer(data []byte, channel Channel) error
	// Connections lists live connections in a stable order.
	Connections() []Connection
	// OnData registers a receive listener.
	OnData(handler DataHandler) Subscription
	// OnConnectionState registers a connection lifecycle listener.
	OnConnectionState(handler ConnectionHandler) Subscription
	// RaiseDataReceived pushes a frame into the local receive path as if it
	// had arrived from conn. The server loopback shortcut uses this.
	RaiseDataReceived(conn Connection, data bitpack.View, asServer bool)
}
