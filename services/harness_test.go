package services

import (
	"chat-client/contract"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/mocks"
	"encoding/json"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	me  = "u1"
	bob = "u2"
	eve = "u3"
)

var (
	alice   = domain.Session{Token: "t-1", User: domain.Identity{ID: me, Username: "alice"}}
	bobUser = domain.Counterpart{Identity: domain.Identity{ID: bob, Username: "bob"}}
	eveUser = domain.Counterpart{Identity: domain.Identity{ID: eve, Username: "eve"}, Online: true}
)

type emitted struct {
	name    event.Name
	payload any
}

type binding struct {
	id      int
	handler event.Handler
}

// harness wires mocked collaborators that behave like a live transport.
type harness struct {
	t         *testing.T
	log       *slog.Logger
	api       *mocks.MockIAPI
	transport *mocks.MockITransport
	handlers  map[event.Name]binding
	emitted   []emitted
	emitErr   error
	nextID    int
}

func newHarness(t *testing.T) *harness {
	ctrl := gomock.NewController(t)
	h := &harness{
		t:         t,
		log:       logs.GetLoggerFromLevel(slog.LevelDebug),
		api:       mocks.NewMockIAPI(ctrl),
		transport: mocks.NewMockITransport(ctrl),
		handlers:  make(map[event.Name]binding),
	}
	h.transport.EXPECT().On(gomock.Any(), gomock.Any()).DoAndReturn(
		func(name event.Name, handler event.Handler) contract.Subscription {
			h.nextID++
			id := h.nextID
			h.handlers[name] = binding{id: id, handler: handler}
			sub := mocks.NewMockSubscription(ctrl)
			sub.EXPECT().Unsubscribe().Do(func() {
				if b, ok := h.handlers[name]; ok && b.id == id {
					delete(h.handlers, name)
				}
			}).AnyTimes()
			return sub
		}).AnyTimes()
	h.transport.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(name event.Name, payload any) error {
			if h.emitErr != nil {
				return h.emitErr
			}
			h.emitted = append(h.emitted, emitted{name: name, payload: payload})
			return nil
		}).AnyTimes()
	return h
}

// deliver pushes an inbound event to the installed handler, like Dispatch does.
func (h *harness) deliver(name event.Name, payload any) bool {
	data, err := json.Marshal(payload)
	require.NoError(h.t, err)
	b, ok := h.handlers[name]
	if !ok {
		return false
	}
	b.handler(event.Inbound{Name: name, Data: data})
	return true
}

func (h *harness) emittedNamed(name event.Name) []any {
	var out []any
	for _, e := range h.emitted {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

// run executes a command and every command it batches.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func first[T tea.Msg](t *testing.T, msgs []tea.Msg) T {
	for _, m := range msgs {
		if typed, ok := m.(T); ok {
			return typed
		}
	}
	var zero T
	require.Failf(t, "message not found", "%T", zero)
	return zero
}

func message(id, content string, from, to domain.UserID) domain.Message {
	return domain.Message{
		ID:       id,
		Sender:   domain.Identity{ID: from},
		Receiver: domain.Identity{ID: to},
		Content:  content,
	}
}
