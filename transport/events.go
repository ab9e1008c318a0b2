package transport

import "driftnet/netcode/bitpack"

// Subscription identifies one registered listener so it can be removed
// later. Removal takes out at most the first matching entry.
type Subscription struct {
	kind string
	id   uint64
}

type dataEntry struct {
	id      uint64
	handler DataHandler
}

type connEntry struct {
	id      uint64
	handler ConnectionHandler
}

// Events is the listener bookkeeping shared by transport implementations.
// Dispatch iterates a snapshot of the listener list, so a handler that
// subscribes or unsubscribes during dispatch cannot corrupt the current
// fan-out. Mutation is expected only from the single tick/receive thread.
type Events struct {
	nextID       uint64
	dataHandlers []dataEntry
	connHandlers []connEntry
}

// OnData appends a receive listener and returns its removal handle.
func (e *Events) OnData(handler DataHandler) Subscription {
	e.nextID++
	e.dataHandlers = append(e.dataHandlers, dataEntry{id: e.nextID, handler: handler})
	return Subscription{kind: "data", id: e.nextID}
}

// OnConnectionState appends a lifecycle listener and returns its removal
// handle.
func (e *Events) OnConnectionState(handler ConnectionHandler) Subscription {
	e.nextID++
	e.connHandlers = append(e.connHandlers, connEntry{id: e.nextID, handler: handler})
	return Subscription{kind: "conn", id: e.nextID}
}

// Unsubscribe removes the listener behind a subscription, if it is still
// registered.
func (e *Events) Unsubscribe(sub Subscription) {
	switch sub.kind {
	case "data":
		for i, entry := range e.dataHandlers {
			if entry.id == sub.id {
				e.dataHandlers = append(e.dataHandlers[:i], e.dataHandlers[i+1:]...)
				return
			}
		}
	case "conn":
		for i, entry := range e.connHandlers {
			if entry.id == sub.id {
				e.connHandlers = append(e.connHandlers[:i], e.connHandlers[i+1:]...)
				return
			}
		}
	}
}

// RaiseDataReceived invokes every receive listener, in registration order,
// over a snapshot of the list.
func (e *Events) RaiseDataReceived(conn Connection, data bitpack.View, asServer bool) {
	snapshot := append([]dataEntry(nil), e.dataHandlers...)
	for _, entry := range snapshot {
		entry.handler(conn, data, asServer)
	}
}

// RaiseConnectionState invokes every lifecycle listener, in registration
// order, over a snapshot of the list.
func (e *Events) RaiseConnectionState(conn Connection, connected bool, asServer bool) {
	snapshot := append([]connEntry(nil), e.connHandlers...)
	for _, entry := range snapshot {
		entry.handler(conn, connected, asServer)
	}
}
