package services

import (
	"chat-client/contract"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/projection"
	"context"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type IConversationService interface {
	Bind(session domain.Session)
	Open(ctx context.Context, counterpart domain.Counterpart) tea.Cmd
	Apply(msg HistoryLoaded) bool
	Rejoin()
	Send(content string) error
	Selected() (domain.Counterpart, bool)
	Snapshot() ConversationView
	Close()
}

// ConversationView is what presentations read of the open conversation.
type ConversationView struct {
	Counterpart domain.Counterpart
	Open        bool
	Messages    []domain.Message
	Loading     bool
	Err         error
}

// ConversationService keeps the log and read state of the selected counterpart.
// The history fetch seeds the log, message and read events keep it live.
// Every method must be called from the event loop.
type ConversationService struct {
	api         contract.IAPI
	transport   contract.ITransport
	log         *slog.Logger
	timeout     time.Duration
	page        domain.Page
	session     domain.Session
	counterpart domain.Counterpart
	timeline    *projection.Timeline
	epoch       uint64
	loading     bool
	err         error
	subs        contract.Subscriptions
}

func NewConversationService(api contract.IAPI, transport contract.ITransport, log *slog.Logger, timeout time.Duration, page domain.Page) *ConversationService {
	return &ConversationService{
		api:       api,
		transport: transport,
		log:       log,
		timeout:   timeout,
		page:      page,
		timeline:  projection.NewTimeline(),
	}
}

func (c *ConversationService) Bind(session domain.Session) {
	c.Close()
	c.session = session
}

// Open switches the selection to counterpart.
// Handlers of the previous selection are removed before the new ones are installed,
// and a history fetch still in flight for it will be discarded.
func (c *ConversationService) Open(ctx context.Context, counterpart domain.Counterpart) tea.Cmd {
	c.subs.Unsubscribe()
	c.epoch++
	c.counterpart = counterpart
	c.timeline.Reset(counterpart.ID)
	c.loading = true
	c.err = nil
	c.subs.Add(
		c.transport.On(event.ReceiveMessage, c.onMessage),
		c.transport.On(event.MessagesRead, c.onMessagesRead),
	)
	c.Rejoin()

	chat := event.DirectChat(counterpart.ID)
	epoch, token, api, timeout, page := c.epoch, c.session.Token, c.api, c.timeout, c.page
	fetch := func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		messages, err := api.History(ctx, token, chat.ChatID, page)
		return HistoryLoaded{CounterpartID: chat.ChatID, Epoch: epoch, Messages: messages, Err: err}
	}
	markRead := func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return MarkedRead{Chat: chat, Err: api.MarkRead(ctx, token, chat)}
	}
	return tea.Batch(fetch, markRead)
}

// Rejoin announces the open conversation on the current connection.
func (c *ConversationService) Rejoin() {
	if c.counterpart.ID == "" {
		return
	}
	c.emit(event.JoinChat, event.DirectChat(c.counterpart.ID))
}

// Apply seeds the log with a history page.
// Results issued for a previous selection are discarded.
func (c *ConversationService) Apply(msg HistoryLoaded) bool {
	if msg.Epoch != c.epoch || msg.CounterpartID != c.counterpart.ID {
		c.log.Debug("Discarding stale history", "counterpart", msg.CounterpartID, "epoch", msg.Epoch, "current", c.epoch)
		return false
	}
	c.loading = false
	if msg.Err != nil {
		c.err = msg.Err
		c.log.Warn("History fetch failed", "counterpart", msg.CounterpartID, "error", msg.Err)
		return true
	}
	c.timeline.Seed(msg.Messages)
	c.emit(event.MarkMessagesRead, event.DirectChat(c.counterpart.ID))
	return true
}

func (c *ConversationService) onMessage(in event.Inbound) {
	message, err := event.Decode[domain.Message](in)
	if err != nil {
		c.log.Warn("Ignoring message event", "error", err)
		return
	}
	if !c.timeline.Append(message) {
		return
	}
	// Read receipts are acknowledged by the client, only for what the counterpart sent.
	if message.Sender.Is(c.counterpart.ID) {
		c.emit(event.MarkMessagesRead, event.DirectChat(c.counterpart.ID))
	}
}

func (c *ConversationService) onMessagesRead(in event.Inbound) {
	receipt, err := event.Decode[event.ReadReceipt](in)
	if err != nil {
		c.log.Warn("Ignoring read receipt", "error", err)
		return
	}
	if n := c.timeline.ApplyReadReceipt(receipt.ChatID, receipt.UserID, c.session.User.ID); n > 0 {
		c.log.Debug("Messages read", "chat", receipt.ChatID, "reader", receipt.UserID, "count", n)
	}
}

// Send publishes content to the selected counterpart.
// Nothing is appended locally: the message shows up when the server echoes it.
// Blank content is ignored.
func (c *ConversationService) Send(content string) error {
	if c.counterpart.ID == "" {
		return errors.ErrNoSelection
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return c.transport.Emit(event.SendMessage, event.OutgoingMessage{
		Content:    content,
		ReceiverID: c.counterpart.ID,
		IsGroup:    false,
	})
}

func (c *ConversationService) emit(name event.Name, payload any) {
	if err := c.transport.Emit(name, payload); err != nil {
		c.log.Warn("Event not emitted", "event", name, "error", err)
	}
}

func (c *ConversationService) Selected() (domain.Counterpart, bool) {
	return c.counterpart, c.counterpart.ID != ""
}

func (c *ConversationService) Snapshot() ConversationView {
	return ConversationView{
		Counterpart: c.counterpart,
		Open:        c.counterpart.ID != "",
		Messages:    c.timeline.Snapshot(),
		Loading:     c.loading,
		Err:         c.err,
	}
}

// Close releases the handlers and clears the selection.
func (c *ConversationService) Close() {
	c.subs.Unsubscribe()
	c.epoch++
	c.counterpart = domain.Counterpart{}
	c.timeline.Reset("")
	c.loading = false
	c.err = nil
}
