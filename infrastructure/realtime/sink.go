package realtime

import (
	"chat-client/domain/event"
	"context"
)

// ChannelSink hands inbound events over to the goroutine owning the view state.
// Consume blocks until the event is taken or ctx is done.
type ChannelSink struct {
	events chan event.Inbound
}

func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{events: make(chan event.Inbound, capacity)}
}

func (s *ChannelSink) Consume(ctx context.Context, e event.Inbound) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan event.Inbound {
	return s.events
}
