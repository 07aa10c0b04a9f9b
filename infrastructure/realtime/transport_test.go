package realtime

import (
	"chat-client/domain/event"
	"chat-client/errors"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	upgrades atomic.Int32
	conns    chan *websocket.Conn
	received chan event.Envelope
	token    atomic.Value
}

func newFakeServer(t *testing.T) (*fakeServer, string) {
	fake := &fakeServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan event.Envelope, 64),
	}
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.token.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fake.upgrades.Add(1)
		fake.conns <- conn
		go func() {
			for {
				var env event.Envelope
				if err := conn.ReadJSON(&env); err != nil {
					return
				}
				fake.received <- env
			}
		}()
	}))
	t.Cleanup(server.Close)
	return fake, "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestTransport(url string) *Transport {
	return NewTransport(Config{
		URL:              url,
		HandshakeTimeout: time.Second,
		OutboundBuffer:   8,
		InboundBuffer:    8,
	}, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func nextEvent(t *testing.T, transport *Transport) event.Inbound {
	select {
	case in := <-transport.Events():
		return in
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no inbound event")
		return event.Inbound{}
	}
}

func TestTransport_Emit_And_Dispatch(t *testing.T) {
	req := require.New(t)
	fake, url := newFakeServer(t)
	transport := newTestTransport(url)
	t.Cleanup(transport.Disconnect)

	// Given a connected transport
	req.NoError(transport.Connect(context.Background(), "t-1"))
	req.Equal("Bearer t-1", fake.token.Load())
	conn := <-fake.conns

	// When an event is emitted
	req.NoError(transport.Emit(event.JoinChat, event.DirectChat("u2")))

	// Then the server receives the envelope
	select {
	case env := <-fake.received:
		req.Equal(event.JoinChat, env.Event)
		req.NotEmpty(env.ID)
		req.JSONEq(`{"chatId":"u2","isGroup":false}`, string(env.Data))
	case <-time.After(2 * time.Second):
		req.Fail("server did not receive the event")
	}

	// When the server pushes a presence event
	req.NoError(conn.WriteJSON(event.Envelope{Event: event.UserOnline, Data: json.RawMessage(`{"userId":"u2"}`)}))
	in := nextEvent(t, transport)
	req.Equal(transport.Generation(), in.Generation)

	// Then the installed handler receives it at dispatch time
	var got event.Presence
	transport.On(event.UserOnline, func(in event.Inbound) {
		got, _ = event.Decode[event.Presence](in)
	})
	req.True(transport.Dispatch(in))
	req.Equal("u2", got.UserID)

	// And an event nobody listens to is not dispatched
	req.False(transport.Dispatch(event.Inbound{Generation: in.Generation, Name: event.UserOffline}))
}

func TestTransport_Connect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	fake, url := newFakeServer(t)
	transport := newTestTransport(url)
	t.Cleanup(transport.Disconnect)

	req.NoError(transport.Connect(context.Background(), "t-1"))
	req.NoError(transport.Connect(context.Background(), "t-1"))

	req.Equal(int32(1), fake.upgrades.Load())
	req.Equal(uint64(1), transport.Generation())
	req.True(transport.Connected())
}

func TestTransport_Disconnect_During_Dial_Wins(t *testing.T) {
	req := require.New(t)

	// Given a server slow to accept the handshake
	var mu sync.Mutex
	var handshakes []string
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		handshakes = append(handshakes, r.Header.Get("Authorization"))
		mu.Unlock()
		time.Sleep(300 * time.Millisecond)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			defer func() { _ = conn.Close() }()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)
	transport := newTestTransport("ws" + strings.TrimPrefix(server.URL, "http"))
	transport.dialer.HandshakeTimeout = 2 * time.Second
	t.Cleanup(transport.Disconnect)

	// When alice's dial is cut by a logout
	dialed := make(chan error, 1)
	go func() { dialed <- transport.Connect(context.Background(), "alice-token") }()
	time.Sleep(50 * time.Millisecond)
	transport.Disconnect()

	// Then her connection is never installed
	select {
	case err := <-dialed:
		req.ErrorIs(err, errors.ErrTransport)
	case <-time.After(2 * time.Second):
		req.FailNow("alice's dial did not return")
	}
	req.False(transport.Connected())

	// When bob connects
	req.NoError(transport.Connect(context.Background(), "bob-token"))

	// Then he gets a handshake of his own
	req.True(transport.Connected())
	mu.Lock()
	defer mu.Unlock()
	req.Equal([]string{"Bearer alice-token", "Bearer bob-token"}, handshakes)
}

func TestTransport_Connect_With_Another_Token_Reconnects(t *testing.T) {
	req := require.New(t)
	fake, url := newFakeServer(t)
	transport := newTestTransport(url)
	t.Cleanup(transport.Disconnect)

	// Given a connection opened for alice
	req.NoError(transport.Connect(context.Background(), "alice-token"))
	<-fake.conns

	// When bob connects on the same transport
	req.NoError(transport.Connect(context.Background(), "bob-token"))

	// Then alice's connection is retired and bob has a new one
	req.Equal("Bearer bob-token", fake.token.Load())
	req.Equal(int32(2), fake.upgrades.Load())
	req.Equal(uint64(3), transport.Generation())
	req.True(transport.Connected())
}

func TestTransport_Emit_Without_Connection(t *testing.T) {
	req := require.New(t)
	transport := newTestTransport("ws://127.0.0.1:1")

	err := transport.Emit(event.SendMessage, event.OutgoingMessage{Content: "hi"})

	req.ErrorIs(err, errors.ErrTransport)
}

func TestTransport_Connect_Failure(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	transport := newTestTransport("ws" + strings.TrimPrefix(server.URL, "http"))

	err := transport.Connect(context.Background(), "expired")

	req.ErrorIs(err, errors.ErrTransport)
	req.False(transport.Connected())
}

func TestTransport_Server_Drop_Reports_Disconnect_Once(t *testing.T) {
	req := require.New(t)
	fake, url := newFakeServer(t)
	transport := newTestTransport(url)

	req.NoError(transport.Connect(context.Background(), "t-1"))
	conn := <-fake.conns

	// When the server goes away
	req.NoError(conn.Close())

	// Then a single disconnect notice is delivered
	in := nextEvent(t, transport)
	req.Equal(event.Disconnect, in.Name)
	req.ErrorIs(in.Err, errors.ErrTransport)
	req.False(transport.Connected())
	select {
	case extra := <-transport.Events():
		req.Failf("unexpected event", "%v", extra.Name)
	case <-time.After(100 * time.Millisecond):
	}

	// And a later Connect opens a new generation
	req.NoError(transport.Connect(context.Background(), "t-1"))
	t.Cleanup(transport.Disconnect)
	req.Equal(uint64(2), transport.Generation())
	req.Equal(int32(2), fake.upgrades.Load())
}

func TestTransport_Disconnect_Makes_Queued_Events_Stale(t *testing.T) {
	req := require.New(t)
	fake, url := newFakeServer(t)
	transport := newTestTransport(url)

	req.NoError(transport.Connect(context.Background(), "t-1"))
	conn := <-fake.conns
	req.NoError(conn.WriteJSON(event.Envelope{Event: event.UserOffline, Data: json.RawMessage(`{"userId":"u2"}`)}))
	in := nextEvent(t, transport)

	calls := 0
	transport.On(event.UserOffline, func(event.Inbound) { calls++ })
	transport.Disconnect()
	transport.Disconnect()

	req.False(transport.Dispatch(in))
	req.Zero(calls)
	req.False(transport.Connected())
}

func TestTransport_Full_Outbound_Queue_Loses_Events(t *testing.T) {
	req := require.New(t)
	_, url := newFakeServer(t)
	transport := NewTransport(Config{
		URL:            url,
		OutboundBuffer: 1,
		InboundBuffer:  1,
		OutboundRate:   0.001,
		OutboundBurst:  1,
	}, logs.GetLoggerFromLevel(slog.LevelDebug))
	t.Cleanup(transport.Disconnect)
	req.NoError(transport.Connect(context.Background(), "t-1"))

	lost := 0
	for range 10 {
		if err := transport.Emit(event.MarkMessagesRead, event.DirectChat("u2")); err != nil {
			req.ErrorIs(err, errors.ErrOutboundQueueFull)
			lost++
		}
	}

	req.GreaterOrEqual(lost, 7)
}
