package realtime

import (
	"chat-client/contract"
	"chat-client/domain/event"
	"chat-client/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// ReadPump decodes frames of one connection and hands them to the sink.
// A read failure while still wanted is reported once as a Disconnect event.
type ReadPump struct {
	conn       *websocket.Conn
	generation uint64
	sink       contract.EventSink
	log        *slog.Logger
	onDrop     func(generation uint64)
}

func (p *ReadPump) Run(ctx context.Context) error {
	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn("Connection dropped", "generation", p.generation, "error", err)
			// onDrop cancels ctx, the notice gets its own deadline.
			p.onDrop(p.generation)
			noticeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
			defer cancel()
			_ = p.sink.Consume(noticeCtx, event.Inbound{
				Generation: p.generation,
				Name:       event.Disconnect,
				Err:        fmt.Errorf("%w: %v", errors.ErrTransport, err),
			})
			return nil
		}

		var env event.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			p.log.Warn("Dropping undecodable frame", "generation", p.generation, "size", len(raw))
			continue
		}
		in := event.Inbound{Generation: p.generation, Name: env.Event, Data: env.Data}
		if err := p.sink.Consume(ctx, in); err != nil {
			return nil
		}
	}
}

// WritePump drains the outbound queue of one connection, paced by the limiter.
// It is the only writer of data frames on the connection.
type WritePump struct {
	conn     *websocket.Conn
	outbound <-chan event.Envelope
	limiter  *rate.Limiter
	log      *slog.Logger
}

func (p *WritePump) Run(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-p.outbound:
			if err := p.limiter.Wait(ctx); err != nil {
				return nil
			}
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(env); err != nil {
				// Closing unblocks the read pump, which reports the drop.
				p.log.Warn("Write failed", "event", env.Event, "id", env.ID, "error", err)
				_ = p.conn.Close()
				return nil
			}
			p.log.Debug("Event emitted", "event", env.Event, "id", env.ID)
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = p.conn.Close()
				return nil
			}
		}
	}
}
