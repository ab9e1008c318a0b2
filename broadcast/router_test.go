package broadcast

import (
	"testing"

	"driftnet/netcode/bitpack"
	"driftnet/netcode/transport"
	"driftnet/netcode/wire"
)

type testPayload struct {
	Value uint32
	Flag  uint8
}

func (*testPayload) StableName() string { return "test.payload" }

func (p *testPayload) Marshal(buf *bitpack.Buffer) error {
	if err := buf.WriteBits(uint64(p.Value), 32); err != nil {
		return err
	}
	return buf.WriteBits(uint64(p.Flag), 3)
}

func (p *testPayload) Unmarshal(buf *bitpack.Buffer) error {
	v, err := buf.ReadBits(32)
	if err != nil {
		return err
	}
	f, err := buf.ReadBits(3)
	if err != nil {
		return err
	}
	p.Value = uint32(v)
	p.Flag = uint8(f)
	return nil
}

// spyTransport records every outbound call so tests can assert the
// transport was (or was not) touched.
type spyTransport struct {
	events      transport.Events
	connections []transport.Connection
	connCalls   int
	toClient    []spySend
	toServer    [][]byte
}

type spySend struct {
	conn transport.Connection
	data []byte
}

func (s *spyTransport) SendToClient(conn transport.Connection, data []byte, channel transport.Channel) error {
	s.toClient = append(s.toClient, spySend{conn: conn, data: append([]byte(nil), data...)})
	return nil
}

func (s *spyTransport) SendToServer(data []byte, channel transport.Channel) error {
	s.toServer = append(s.toServer, append([]byte(nil), data...))
	return nil
}

func (s *spyTransport) Connections() []transport.Connection {
	s.connCalls++
	return s.connections
}

func (s *spyTransport) OnData(handler transport.DataHandler) transport.Subscription {
	return s.events.OnData(handler)
}

func (s *spyTransport) OnConnectionState(handler transport.ConnectionHandler) transport.Subscription {
	return s.events.OnConnectionState(handler)
}

func (s *spyTransport) RaiseDataReceived(conn transport.Connection, data bitpack.View, asServer bool) {
	s.events.RaiseDataReceived(conn, data, asServer)
}

func newTestRouter(t *testing.T, isServer bool) (*Router, *spyTransport) {
	t.Helper()
	spy := &spyTransport{}
	registry := wire.NewRegistry(nil)
	return NewRouter(registry, spy, isServer, nil, nil), spy
}

func TestDispatchInvokesCallbackExactlyOnce(t *testing.T) {
	server, spy := newTestRouter(t, true)
	spy.connections = []transport.Connection{transport.MakeConnection(1)}

	var got []*testPayload
	if _, err := server.Handle(&testPayload{}, true, func(conn transport.Connection, payload any, asServer bool) {
		msg, ok := payload.(*testPayload)
		if !ok {
			t.Fatalf("unexpected payload type %T", payload)
		}
		got = append(got, msg)
	}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	sent := &testPayload{Value: 0xCAFE, Flag: 0b101}
	if err := server.SendToAll(sent, transport.ChannelReliableOrdered); err != nil {
		t.Fatalf("SendToAll failed: %v", err)
	}
	if len(spy.toClient) != 1 {
		t.Fatalf("expected one outbound frame, got %d", len(spy.toClient))
	}

	spy.RaiseDataReceived(transport.MakeConnection(1), bitpack.NewView(spy.toClient[0].data), true)
	if len(got) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(got))
	}
	if got[0].Value != sent.Value || got[0].Flag != sent.Flag {
		t.Fatalf("payload corrupted in transit: sent %+v, got %+v", sent, got[0])
	}
}

func TestSendToAllSnapshotsConnectionsOnce(t *testing.T) {
	server, spy := newTestRouter(t, true)
	spy.connections = []transport.Connection{
		transport.MakeConnection(1),
		transport.MakeConnection(2),
	}

	if err := server.SendToAll(&testPayload{Value: 9}, transport.ChannelReliableOrdered); err != nil {
		t.Fatalf("SendToAll failed: %v", err)
	}
	if spy.connCalls != 1 {
		t.Fatalf("connection list must be snapshotted once per broadcast, queried %d times", spy.connCalls)
	}
	if len(spy.toClient) != len(spy.connections) {
		t.Fatalf("expected %d outbound frames, got %d", len(spy.connections), len(spy.toClient))
	}
}

func TestUnknownTypeIsDroppedQuietly(t *testing.T) {
	server, spy := newTestRouter(t, true)

	invoked := false
	if _, err := server.Handle(&testPayload{}, true, func(transport.Connection, any, bool) {
		invoked = true
	}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	frame := bitpack.Get(bitpack.ModeWrite)
	if err := wire.WriteHeader(frame, wire.KindBroadcast, 0xDEADBEEF); err != nil {
		t.Fatalf("header write failed: %v", err)
	}
	data := append([]byte(nil), frame.Bytes()...)
	bitpack.Put(frame)

	spy.RaiseDataReceived(transport.MakeConnection(1), bitpack.NewView(data), true)
	if invoked {
		t.Fatalf("callback for a different type must not fire on unknown hash")
	}
}

func TestRoleGatingBlocksClientSends(t *testing.T) {
	client, spy := newTestRouter(t, false)

	if err := client.SendToAll(&testPayload{}, transport.ChannelReliableOrdered); err != ErrRoleViolation {
		t.Fatalf("expected ErrRoleViolation from SendToAll, got %v", err)
	}
	if err := client.SendToClient(transport.MakeConnection(1), &testPayload{}, transport.ChannelReliableOrdered); err != ErrRoleViolation {
		t.Fatalf("expected ErrRoleViolation from SendToClient, got %v", err)
	}
	if len(spy.toClient) != 0 || len(spy.toServer) != 0 {
		t.Fatalf("role violation must not touch the transport")
	}
}

func TestServerLoopbackBypassesTransport(t *testing.T) {
	server, spy := newTestRouter(t, true)

	var got *testPayload
	var gotAsServer bool
	var gotConn transport.Connection
	if _, err := server.Handle(&testPayload{}, true, func(conn transport.Connection, payload any, asServer bool) {
		got = payload.(*testPayload)
		gotAsServer = asServer
		gotConn = conn
	}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if err := server.SendToServer(&testPayload{Value: 7}, transport.ChannelReliableOrdered); err != nil {
		t.Fatalf("SendToServer failed: %v", err)
	}
	if len(spy.toServer) != 0 || len(spy.toClient) != 0 {
		t.Fatalf("server loopback must not touch the outbound transport")
	}
	if got == nil || got.Value != 7 {
		t.Fatalf("loopback payload not dispatched, got %+v", got)
	}
	if !gotAsServer {
		t.Fatalf("loopback dispatch must carry asServer = true")
	}
	if gotConn != transport.Local {
		t.Fatalf("loopback sender must be the local connection, got %v", gotConn)
	}
}

func TestClientSendToServerUsesTransport(t *testing.T) {
	client, spy := newTestRouter(t, false)
	if err := client.SendToServer(&testPayload{Value: 3}, transport.ChannelReliableOrdered); err != nil {
		t.Fatalf("SendToServer failed: %v", err)
	}
	if len(spy.toServer) != 1 {
		t.Fatalf("expected one upstream frame, got %d", len(spy.toServer))
	}
}

func TestRoleMismatchedFramesAreIgnored(t *testing.T) {
	server, spy := newTestRouter(t, true)

	invoked := false
	if _, err := server.Handle(&testPayload{}, true, func(transport.Connection, any, bool) {
		invoked = true
	}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	frame := encodeTestFrame(t, &testPayload{Value: 1})
	spy.RaiseDataReceived(transport.MakeConnection(1), bitpack.NewView(frame), false)
	if invoked {
		t.Fatalf("a server router must ignore client-side frames")
	}
}

func TestCallbackOrderAndUnregister(t *testing.T) {
	server, spy := newTestRouter(t, true)

	var order []string
	if _, err := server.Handle(&testPayload{}, true, func(transport.Connection, any, bool) {
		order = append(order, "first")
	}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	second := server.RegisterCallback((&testPayload{}).StableName(), true, func(transport.Connection, any, bool) {
		order = append(order, "second")
	})
	server.RegisterCallback((&testPayload{}).StableName(), true, func(transport.Connection, any, bool) {
		order = append(order, "third")
	})

	frame := encodeTestFrame(t, &testPayload{Value: 1})
	spy.RaiseDataReceived(transport.MakeConnection(1), bitpack.NewView(frame), true)
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("expected registration-order dispatch, got %v", order)
	}

	order = nil
	server.UnregisterCallback(second)
	spy.RaiseDataReceived(transport.MakeConnection(1), bitpack.NewView(frame), true)
	if len(order) != 2 || order[0] != "first" || order[1] != "third" {
		t.Fatalf("expected second callback removed, got %v", order)
	}
}

func encodeTestFrame(t *testing.T, msg *testPayload) []byte {
	t.Helper()
	buf := bitpack.Get(bitpack.ModeWrite)
	defer bitpack.Put(buf)
	if err := wire.WriteHeader(buf, wire.KindBroadcast, wire.StableHash(msg.StableName())); err != nil {
		t.Fatalf("header write failed: %v", err)
	}
	if err := msg.Marshal(buf); err != nil {
		t.Fatalf("payload write failed: %v", err)
	}
	return append([]byte(nil), buf.Bytes()...)
}
