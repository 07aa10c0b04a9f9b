// Package realtime is the named pub/sub channel of a session.
// One websocket connection carries JSON envelopes in both directions.
// Handlers are looked up when an event is dispatched, never when it is read.
package realtime

import (
	"chat-client/contract"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/runtime/workers"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	OutboundBuffer   int
	InboundBuffer    int
	// OutboundRate is the number of events emitted per second, with a burst of OutboundBurst.
	OutboundRate  float64
	OutboundBurst int
}

type connection struct {
	token      string
	conn       *websocket.Conn
	supervisor *workers.Supervisor
	outbound   chan event.Envelope
}

type Transport struct {
	config   Config
	dialer   *websocket.Dialer
	log      *slog.Logger
	sink     *ChannelSink
	registry *Registry

	mu         sync.Mutex
	generation uint64
	current    *connection
	// aborted is cancelled by Disconnect, ending the dials started before it.
	aborted context.Context
	abort   context.CancelFunc
}

func NewTransport(config Config, log *slog.Logger) *Transport {
	aborted, abort := context.WithCancel(context.Background())
	return &Transport{
		aborted:  aborted,
		abort:    abort,
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		log:      log,
		sink:     NewChannelSink(max(config.InboundBuffer, 1)),
		registry: NewRegistry(),
	}
}

// Connect opens the connection of the session authenticated by token.
// It does nothing when that session is already connected, and replaces a
// connection opened with another token.
// A Disconnect during the dial wins: the new connection is closed.
func (t *Transport) Connect(ctx context.Context, token string) error {
	t.mu.Lock()
	if t.current != nil && t.current.token == token {
		t.mu.Unlock()
		return nil
	}
	stale := t.detach()
	aborted := t.aborted
	t.mu.Unlock()
	t.release(stale)

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(aborted, cancel)()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := t.dialer.DialContext(dialCtx, t.config.URL, header)
	if err != nil {
		if aborted.Err() != nil {
			return fmt.Errorf("%w: dial %s: disconnected while dialing", errors.ErrTransport, t.config.URL)
		}
		if resp != nil {
			return fmt.Errorf("%w: dial %s: status %d: %v", errors.ErrTransport, t.config.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: dial %s: %v", errors.ErrTransport, t.config.URL, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if aborted.Err() != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: dial %s: disconnected while dialing", errors.ErrTransport, t.config.URL)
	}
	if t.current != nil && t.current.token == token {
		_ = conn.Close()
		return nil
	}
	if stale := t.detach(); stale != nil {
		go t.release(stale)
	}
	t.generation++
	generation := t.generation
	outbound := make(chan event.Envelope, max(t.config.OutboundBuffer, 1))
	supervisor := workers.NewSupervisor(t.log.With("generation", generation))
	supervisor.Add(
		&ReadPump{conn: conn, generation: generation, sink: t.sink, log: t.log, onDrop: t.drop},
		&WritePump{conn: conn, outbound: outbound, limiter: t.newLimiter(), log: t.log},
	)
	t.current = &connection{token: token, conn: conn, supervisor: supervisor, outbound: outbound}

	// The connection outlives the dial: only Disconnect or a drop ends it.
	go supervisor.Run(context.WithoutCancel(ctx))
	t.log.Info("Connected", "url", t.config.URL, "generation", generation)
	return nil
}

func (t *Transport) newLimiter() *rate.Limiter {
	if t.config.OutboundRate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(t.config.OutboundRate), max(t.config.OutboundBurst, 1))
}

// On installs the handler of name, replacing any previous one.
func (t *Transport) On(name event.Name, handler event.Handler) contract.Subscription {
	return t.registry.On(name, handler)
}

func (t *Transport) Off(name event.Name) {
	t.registry.Off(name)
}

// Emit queues an event for the write pump and returns immediately.
func (t *Transport) Emit(name event.Name, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, name, err)
	}
	env := event.Envelope{ID: uuid.NewString(), Event: name, Data: data}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return fmt.Errorf("%w: %s: not connected", errors.ErrTransport, name)
	}
	select {
	case t.current.outbound <- env:
		return nil
	default:
		t.log.Warn("Outbound queue full, event lost", "event", name)
		return fmt.Errorf("%w: %s", errors.ErrOutboundQueueFull, name)
	}
}

// Dispatch runs the handler currently installed for the event.
// Events of a previous connection are dropped. It reports whether a handler ran.
func (t *Transport) Dispatch(in event.Inbound) bool {
	if in.Generation != t.Generation() {
		t.log.Debug("Dropping event of a closed connection", "event", in.Name, "generation", in.Generation)
		return false
	}
	handler, ok := t.registry.Handler(in.Name)
	if !ok {
		return false
	}
	handler(in)
	return true
}

func (t *Transport) Events() <-chan event.Inbound {
	return t.sink.Events()
}

func (t *Transport) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Disconnect closes the connection and aborts the dials in flight. Handlers stay installed.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.abort()
	t.aborted, t.abort = context.WithCancel(context.Background())
	current := t.detach()
	t.mu.Unlock()
	if current == nil {
		return
	}
	t.release(current)
	t.log.Info("Disconnected")
}

// detach unsets the live connection. Events still queued for it become stale.
// The caller holds mu.
func (t *Transport) detach() *connection {
	current := t.current
	if current == nil {
		return nil
	}
	t.current = nil
	t.generation++
	return current
}

func (t *Transport) release(c *connection) {
	if c == nil {
		return
	}
	c.supervisor.Stop()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// drop releases a connection that failed on its own.
func (t *Transport) drop(generation uint64) {
	t.mu.Lock()
	if t.generation != generation || t.current == nil {
		t.mu.Unlock()
		return
	}
	current := t.current
	t.current = nil
	t.mu.Unlock()
	current.supervisor.Stop()
	_ = current.conn.Close()
}
