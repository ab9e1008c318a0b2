// Package broadcast implements framed pub/sub over an abstract transport.
// Outgoing payloads are framed with a packet kind and their stable type
// hash; incoming frames are demultiplexed by hash to registered callbacks.
package broadcast

import (
	"errors"

	"driftnet/netcode/bitpack"
	"driftnet/netcode/telemetry"
	"driftnet/netcode/transport"
	"driftnet/netcode/wire"
)

// ErrRoleViolation is returned when a server-only send is invoked on a
// client instance. This is a programming mistake, not a runtime condition:
// the transport is never touched.
var ErrRoleViolation = errors.New("broadcast: operation requires the server role")

// Callback consumes one dispatched payload. Callbacks run synchronously on
// the receive path and must not block.
type Callback func(conn transport.Connection, payload any, asServer bool)

// Subscription identifies one registered callback for later removal.
type Subscription struct {
	hash uint32
	id   uint64
}

type callbackEntry struct {
	id       uint64
	asServer bool
	fn       Callback
}

// Router frames, sends, receives, and dispatches broadcast payloads for one
// role (server or client). Two routers can share a process, one per role;
// the asServer flag on every received frame keeps them from
// cross-dispatching.
type Router struct {
	registry *wire.Registry
	tr       transport.Transport
	isServer bool
	logger   telemetry.Logger
	metrics  telemetry.Metrics

	nextCallback uint64
	callbacks    map[uint32][]callbackEntry
}

// NewRouter wires a router onto a transport and starts consuming its
// receive events.
func NewRouter(registry *wire.Registry, tr transport.Transport, isServer bool, logger telemetry.Logger, metrics telemetry.Metrics) *Router {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	r := &Router{
		registry:  registry,
		tr:        tr,
		isServer:  isServer,
		logger:    logger,
		metrics:   metrics,
		callbacks: make(map[uint32][]callbackEntry),
	}
	tr.OnData(r.OnReceive)
	return r
}

// RegisterCallback subscribes fn to payloads whose stable name hashes to the
// given type, for the given role side. Multiple callbacks per type are
// allowed; dispatch invokes all of them in registration order.
func (r *Router) RegisterCallback(name string, asServer bool, fn Callback) Subscription {
	hash := wire.StableHash(name)
	r.nextCallback++
	r.callbacks[hash] = append(r.callbacks[hash], callbackEntry{id: r.nextCallback, asServer: asServer, fn: fn})
	return Subscription{hash: hash, id: r.nextCallback}
}

// Handle registers the payload type and subscribes fn to it in one step.
func (r *Router) Handle(prototype wire.Message, asServer bool, fn Callback) (Subscription, error) {
	desc, err := r.registry.RegisterMessage(prototype)
	if err != nil {
		return Subscription{}, err
	}
	return r.RegisterCallback(desc.Name, asServer, fn), nil
}

// UnregisterCallback removes at most the first entry matching the
// subscription.
func (r *Router) UnregisterCallback(sub Subscription) {
	entries := r.callbacks[sub.hash]
	for i, entry := range entries {
		if entry.id == sub.id {
			r.callbacks[sub.hash] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// SendToAll serializes the payload once and sends the identical frame to
// every current connection. Server only.
func (r *Router) SendToAll(msg wire.Message, channel transport.Channel) error {
	if !r.isServer {
		return ErrRoleViolation
	}
	data, err := r.encode(msg)
	if err != nil {
		return err
	}
	conns := r.tr.Connections()
	for _, conn := range conns {
		if err := r.tr.SendToClient(conn, data, channel); err != nil {
			r.logger.Printf("broadcast: send to %v failed: %v", conn, err)
		}
	}
	r.metrics.Add("broadcast.sent", uint64(len(conns)))
	return nil
}

// SendToClient sends one frame to a single connection. Server only.
func (r *Router) SendToClient(conn transport.Connection, msg wire.Message, channel transport.Channel) error {
	if !r.isServer {
		return ErrRoleViolation
	}
	data, err := r.encode(msg)
	if err != nil {
		return err
	}
	if err := r.tr.SendToClient(conn, data, channel); err != nil {
		return err
	}
	r.metrics.Add("broadcast.sent", 1)
	return nil
}

// SendToServer sends one frame upstream. On a server instance the frame
// never touches the outbound transport: it is raised straight into the
// local receive path, modelling the server talking to itself without a
// network hop.
func (r *Router) SendToServer(msg wire.Message, channel transport.Channel) error {
	data, err := r.encode(msg)
	if err != nil {
		return err
	}
	if r.isServer {
		r.tr.RaiseDataReceived(transport.Local, bitpack.NewView(data), true)
		return nil
	}
	if err := r.tr.SendToServer(data, channel); err != nil {
		return err
	}
	r.metrics.Add("broadcast.sent", 1)
	return nil
}

func (r *Router) encode(msg wire.Message) ([]byte, error) {
	desc, err := r.registry.EnsureRegistered(msg)
	if err != nil {
		return nil, err
	}
	buf := bitpack.Get(bitpack.ModeWrite)
	defer bitpack.Put(buf)
	if err := wire.WriteHeader(buf, wire.KindBroadcast, desc.Hash); err != nil {
		return nil, err
	}
	if err := r.registry.Encode(desc.Hash, buf, msg); err != nil {
		return nil, err
	}
	// The pooled buffer goes back before the transport can retain the
	// frame, so the bytes are copied out once here.
	return append([]byte(nil), buf.Bytes()...), nil
}

// OnReceive decodes one incoming frame and dispatches it. Malformed or
// unknown frames are dropped with a log line; the receive path never
// escalates them.
func (r *Router) OnReceive(conn transport.Connection, data bitpack.View, asServer bool) {
	if asServer != r.isServer {
		return
	}
	buf := bitpack.Get(bitpack.ModeRead)
	defer bitpack.Put(buf)
	buf.MakeWrapper(data)

	kind, hash, err := wire.ReadHeader(buf)
	if err != nil {
		r.logger.Printf("broadcast: dropping truncated frame from %v: %v", conn, err)
		r.metrics.Add("broadcast.dropped_malformed", 1)
		return
	}
	if kind != wire.KindBroadcast {
		r.logger.Printf("broadcast: dropping frame with unexpected kind %d from %v", kind, conn)
		r.metrics.Add("broadcast.dropped_malformed", 1)
		return
	}
	if _, ok := r.registry.Resolve(hash); !ok {
		// Normal when a peer sends a type nobody local listens to.
		r.logger.Printf("broadcast: no listener for type %#08x from %v; dropping", hash, conn)
		r.metrics.Add("broadcast.dropped_unknown_type", 1)
		return
	}
	payload, err := r.registry.Decode(hash, buf)
	if err != nil {
		r.logger.Printf("broadcast: failed to decode type %#08x from %v: %v", hash, conn, err)
		r.metrics.Add("broadcast.dropped_malformed", 1)
		return
	}

	// Snapshot so a callback registering or unregistering others cannot
	// corrupt this dispatch.
	entries := append([]callbackEntry(nil), r.callbacks[hash]...)
	dispatched := 0
	for _, entry := range entries {
		if entry.asServer != asServer {
			continue
		}
		entry.fn(conn, payload, asServer)
		dispatched++
	}
	if dispatched > 0 {
		r.metrics.Add("broadcast.dispatched", uint64(dispatched))
	}
}
