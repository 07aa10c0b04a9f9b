package services

import (
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/errors"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newConversation(h *harness) *ConversationService {
	svc := NewConversationService(h.api, h.transport, h.log, time.Second, domain.DefaultPage)
	svc.Bind(alice)
	return svc
}

func contentsOf(view ConversationView) []string {
	out := make([]string, 0, len(view.Messages))
	for _, m := range view.Messages {
		out = append(out, m.Content)
	}
	return out
}

func TestConversationService_Open_Seeds_Oldest_First(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)

	h.api.EXPECT().History(gomock.Any(), "t-1", bob, domain.DefaultPage).Return([]domain.Message{
		message("m3", "third", bob, me),
		message("m2", "second", me, bob),
		message("m1", "first", bob, me),
	}, nil)
	h.api.EXPECT().MarkRead(gomock.Any(), "t-1", event.DirectChat(bob)).Return(nil)

	// When bob is selected
	msgs := run(svc.Open(context.Background(), bobUser))

	// Then the conversation is joined and marked read
	req.Equal([]any{event.DirectChat(bob)}, h.emittedNamed(event.JoinChat))
	req.NoError(first[MarkedRead](t, msgs).Err)

	// And the history is shown oldest first
	req.True(svc.Apply(first[HistoryLoaded](t, msgs)))
	req.Equal([]string{"first", "second", "third"}, contentsOf(svc.Snapshot()))
	req.Len(h.emittedNamed(event.MarkMessagesRead), 1)

	// When a new message arrives from bob
	req.True(h.deliver(event.ReceiveMessage, message("m4", "fourth", bob, me)))

	// Then it is appended and acknowledged
	req.Equal([]string{"first", "second", "third", "fourth"}, contentsOf(svc.Snapshot()))
	req.Len(h.emittedNamed(event.MarkMessagesRead), 2)
}

func TestConversationService_Late_History_Never_Reaches_New_Selection(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)
	ctx := context.Background()

	h.api.EXPECT().History(gomock.Any(), "t-1", bob, gomock.Any()).
		Return([]domain.Message{message("b1", "from bob", bob, me)}, nil)
	h.api.EXPECT().History(gomock.Any(), "t-1", eve, gomock.Any()).
		Return([]domain.Message{message("e1", "from eve", eve, me)}, nil)
	h.api.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	// Given bob's history is still in flight
	bobFetch := svc.Open(ctx, bobUser)

	// When the user switches to eve before it resolves
	eveFetch := svc.Open(ctx, eveUser)
	req.False(svc.Apply(first[HistoryLoaded](t, run(bobFetch))))

	// Then eve's log never sees bob's messages
	req.Empty(svc.Snapshot().Messages)
	req.True(svc.Apply(first[HistoryLoaded](t, run(eveFetch))))
	req.Equal([]string{"from eve"}, contentsOf(svc.Snapshot()))
}

func TestConversationService_Switch_Tears_Down_Previous_Handlers(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)
	ctx := context.Background()
	h.api.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc.Open(ctx, bobUser)
	svc.Open(ctx, eveUser)

	// A message exchanged with bob is not part of eve's conversation
	req.True(h.deliver(event.ReceiveMessage, message("b2", "still bob", bob, me)))
	req.Empty(svc.Snapshot().Messages)
	req.Empty(h.emittedNamed(event.MarkMessagesRead))

	selected, ok := svc.Selected()
	req.True(ok)
	req.Equal(eve, selected.ID)
	req.Len(h.emittedNamed(event.JoinChat), 2)
}

func TestConversationService_Send_Does_Not_Duplicate(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)
	svc.Open(context.Background(), bobUser)

	// When "hi" is sent
	req.NoError(svc.Send("hi"))

	// Then it is published but not shown yet
	req.Equal([]any{event.OutgoingMessage{Content: "hi", ReceiverID: bob, IsGroup: false}},
		h.emittedNamed(event.SendMessage))
	req.Empty(svc.Snapshot().Messages)

	// When the server echoes it
	h.deliver(event.ReceiveMessage, message("m1", "hi", me, bob))

	// Then it shows exactly once, without acknowledging our own message
	req.Equal([]string{"hi"}, contentsOf(svc.Snapshot()))
	req.Empty(h.emittedNamed(event.MarkMessagesRead))
}

func TestConversationService_Send_Edge_Cases(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)

	req.ErrorIs(svc.Send("hi"), errors.ErrNoSelection)

	svc.Open(context.Background(), bobUser)
	h.emitted = nil
	req.NoError(svc.Send("   \n\t"))
	req.Empty(h.emitted)

	// Content is sent as typed
	req.NoError(svc.Send("  hi  "))
	req.Equal([]any{event.OutgoingMessage{Content: "  hi  ", ReceiverID: bob}}, h.emittedNamed(event.SendMessage))

	h.emitErr = fmt.Errorf("%w: not connected", errors.ErrTransport)
	req.ErrorIs(svc.Send("hi"), errors.ErrTransport)
}

func TestConversationService_Read_Receipts_Only_Grow(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)
	h.api.EXPECT().History(gomock.Any(), gomock.Any(), bob, gomock.Any()).Return([]domain.Message{
		message("m3", "reply", bob, me),
		message("m2", "second", me, bob),
		message("m1", "first", me, bob),
	}, nil)
	h.api.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	svc.Apply(first[HistoryLoaded](t, run(svc.Open(context.Background(), bobUser))))

	receipt := event.ReadReceipt{ChatID: bob, UserID: bob, Count: 2}
	req.True(h.deliver(event.MessagesRead, receipt))
	before := svc.Snapshot()
	req.True(h.deliver(event.MessagesRead, receipt))
	req.Equal(before, svc.Snapshot())

	for _, m := range before.Messages {
		if m.Sender.Is(me) {
			req.Equal(domain.ReadSet{bob}, m.ReadBy)
		} else {
			req.Empty(m.ReadBy)
		}
	}

	// A receipt for another chat is ignored
	h.deliver(event.MessagesRead, event.ReadReceipt{ChatID: eve, UserID: eve})
	req.Equal(before, svc.Snapshot())
}

func TestConversationService_Failed_History_Keeps_Empty_Log(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)
	h.api.EXPECT().History(gomock.Any(), gomock.Any(), bob, gomock.Any()).Return(nil, fmt.Errorf("%w: 500", errors.ErrFetch))
	h.api.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any()).Return(fmt.Errorf("%w: 500", errors.ErrFetch))

	msgs := run(svc.Open(context.Background(), bobUser))
	req.True(svc.Apply(first[HistoryLoaded](t, msgs)))

	view := svc.Snapshot()
	req.True(view.Open)
	req.False(view.Loading)
	req.ErrorIs(view.Err, errors.ErrFetch)
	req.Empty(view.Messages)
	req.Empty(h.emittedNamed(event.MarkMessagesRead))
}

func TestConversationService_Close(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	svc := newConversation(h)
	svc.Open(context.Background(), bobUser)

	svc.Close()

	_, ok := svc.Selected()
	req.False(ok)
	req.False(h.deliver(event.ReceiveMessage, message("m1", "hi", bob, me)))
	req.False(h.deliver(event.MessagesRead, event.ReadReceipt{ChatID: bob, UserID: bob}))
}
