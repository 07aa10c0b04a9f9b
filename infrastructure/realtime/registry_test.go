package realtime

import (
	"chat-client/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_On_Replaces_Previous_Handler(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	var calls []string

	// Given a handler owned by the first view
	first := registry.On(event.ReceiveMessage, func(event.Inbound) { calls = append(calls, "first") })

	// When a second view installs its own
	registry.On(event.ReceiveMessage, func(event.Inbound) { calls = append(calls, "second") })

	// Then only the newest one runs
	handler, ok := registry.Handler(event.ReceiveMessage)
	req.True(ok)
	handler(event.Inbound{})
	req.Equal([]string{"second"}, calls)
	req.Equal(1, registry.Len())

	// And the stale handle cannot remove it
	first.Unsubscribe()
	_, ok = registry.Handler(event.ReceiveMessage)
	req.True(ok)
}

func TestRegistry_Unsubscribe_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	sub := registry.On(event.UserOnline, func(event.Inbound) {})
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := registry.Handler(event.UserOnline)
	req.False(ok)

	// A later subscriber is not affected by the old handle
	registry.On(event.UserOnline, func(event.Inbound) {})
	sub.Unsubscribe()
	_, ok = registry.Handler(event.UserOnline)
	req.True(ok)
}

func TestRegistry_Names_Are_Independent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	online := registry.On(event.UserOnline, func(event.Inbound) {})
	registry.On(event.UserOffline, func(event.Inbound) {})
	online.Unsubscribe()

	_, ok := registry.Handler(event.UserOffline)
	req.True(ok)

	registry.Off(event.UserOffline)
	req.Zero(registry.Len())
}
