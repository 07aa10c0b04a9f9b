// Package runtime is the composition root of the chat client.
// Client owns the session and mediates the selection of a counterpart.
// All of its state is mutated from the event loop only: fetch results
// and transport events reach it as messages, one at a time.
package runtime

import (
	"chat-client/auth"
	"chat-client/contract"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/errors"
	"chat-client/services"
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	Selected
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Selected:
		return "selected"
	default:
		return "unauthenticated"
	}
}

// InboundMsg carries a transport event into the event loop.
type InboundMsg event.Inbound

// View is a read-only snapshot for presentations.
type View struct {
	State        State
	Pending      bool
	User         domain.Identity
	Connected    bool
	Directory    services.DirectoryView
	Conversation services.ConversationView
	AuthErr      error
	TransportErr error
	SendErr      error
}

type Client struct {
	ctx          context.Context
	auth         services.IAuthService
	directory    services.IDirectoryService
	conversation services.IConversationService
	transport    contract.ITransport
	log          *slog.Logger

	session      domain.Session
	pending      bool
	authErr      error
	transportErr error
	sendErr      error
}

func NewClient(
	ctx context.Context,
	auth services.IAuthService,
	directory services.IDirectoryService,
	conversation services.IConversationService,
	transport contract.ITransport,
	log *slog.Logger,
) *Client {
	return &Client{
		ctx:          ctx,
		auth:         auth,
		directory:    directory,
		conversation: conversation,
		transport:    transport,
		log:          log,
	}
}

// Init restores a persisted session and starts listening to the transport.
func (c *Client) Init() tea.Cmd {
	c.pending = true
	return tea.Batch(c.auth.Restore(), c.waitEvents())
}

// waitEvents delivers the next transport event. It is re-armed after each one.
func (c *Client) waitEvents() tea.Cmd {
	events, ctx := c.transport.Events(), c.ctx
	return func() tea.Msg {
		select {
		case in := <-events:
			return InboundMsg(in)
		case <-ctx.Done():
			return nil
		}
	}
}

// Update applies one message. It returns the follow-up work, if any.
func (c *Client) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case services.Authenticated:
		return c.onAuthenticated(msg)
	case services.Connected:
		c.onConnected(msg)
	case InboundMsg:
		c.onInbound(event.Inbound(msg))
		return c.waitEvents()
	case services.DirectoryLoaded:
		c.directory.Apply(msg)
	case services.HistoryLoaded:
		c.conversation.Apply(msg)
	case services.MarkedRead:
		if msg.Err != nil {
			c.log.Debug("Mark read failed", "chat", msg.Chat.ChatID, "error", msg.Err)
		}
	}
	return nil
}

func (c *Client) onAuthenticated(msg services.Authenticated) tea.Cmd {
	c.pending = false
	if msg.Err != nil {
		// A missing stored session is the normal first run, not an error to show.
		if !msg.Restored {
			c.authErr = msg.Err
		}
		return nil
	}
	if c.session.Valid() {
		c.log.Warn("Ignoring a second session", "user", msg.Session.User.ID)
		return nil
	}
	c.session = msg.Session
	c.authErr = nil
	c.transportErr = nil
	c.directory.Start(c.session)
	c.conversation.Bind(c.session)
	return tea.Batch(
		c.auth.Connect(c.ctx, c.session),
		c.directory.Load(c.ctx, domain.Filter{}),
	)
}

func (c *Client) onConnected(msg services.Connected) {
	if !c.session.Valid() {
		// The session was closed while dialing.
		if msg.Err == nil {
			c.log.Info("Closing the connection of a closed session")
			c.transport.Disconnect()
		}
		return
	}
	if msg.Token != c.session.Token {
		c.log.Debug("Ignoring the dial of a previous session")
		return
	}
	if msg.Err != nil {
		c.transportErr = msg.Err
		return
	}
	c.transportErr = nil
	c.conversation.Rejoin()
}

func (c *Client) onInbound(in event.Inbound) {
	if in.Name != event.Disconnect {
		c.transport.Dispatch(in)
		return
	}
	if c.session.Valid() && in.Generation == c.transport.Generation() {
		c.log.Warn("Transport lost, live updates stopped", "error", in.Err)
		c.transportErr = in.Err
	}
}

func (c *Client) Login(req auth.LoginRequest) tea.Cmd {
	if c.session.Valid() || c.pending {
		return nil
	}
	c.pending = true
	c.authErr = nil
	return c.auth.Login(c.ctx, req)
}

func (c *Client) Register(req auth.RegisterRequest) tea.Cmd {
	if c.session.Valid() || c.pending {
		return nil
	}
	c.pending = true
	c.authErr = nil
	return c.auth.Register(c.ctx, req)
}

// Reconnect retries the transport after a drop. Nothing reconnects on its own.
func (c *Client) Reconnect() tea.Cmd {
	if !c.session.Valid() || c.transport.Connected() {
		return nil
	}
	return c.auth.Connect(c.ctx, c.session)
}

func (c *Client) Search(text string) tea.Cmd {
	if !c.session.Valid() {
		return nil
	}
	return c.directory.Search(c.ctx, text)
}

func (c *Client) ToggleOnlineOnly() tea.Cmd {
	if !c.session.Valid() {
		return nil
	}
	return c.directory.ToggleOnlineOnly(c.ctx)
}

// Reload repeats the last directory fetch.
func (c *Client) Reload() tea.Cmd {
	if !c.session.Valid() {
		return nil
	}
	return c.directory.Load(c.ctx, c.directory.Snapshot().Filter)
}

// Select opens the conversation with id. Selecting the open counterpart again reloads it.
// Teardown of the previous selection and installation of the new one happen in this call.
func (c *Client) Select(id domain.UserID) tea.Cmd {
	if !c.session.Valid() {
		return nil
	}
	counterpart, ok := c.directory.Find(id)
	if !ok {
		c.log.Debug("Ignoring selection of an unknown counterpart", "id", id)
		return nil
	}
	c.sendErr = nil
	return c.conversation.Open(c.ctx, counterpart)
}

func (c *Client) Deselect() {
	c.conversation.Close()
	c.sendErr = nil
}

// Send publishes content to the selected counterpart.
// The caller clears its input whatever the outcome.
func (c *Client) Send(content string) error {
	c.sendErr = c.conversation.Send(content)
	if c.sendErr != nil && !errors.Is(c.sendErr, errors.ErrNoSelection) {
		c.log.Warn("Message not sent", "error", c.sendErr)
	}
	return c.sendErr
}

// Logout closes the selection, the directory and the session.
func (c *Client) Logout() error {
	if !c.session.Valid() {
		return nil
	}
	c.conversation.Close()
	c.directory.Stop()
	err := c.auth.Logout()
	c.session = domain.Session{}
	c.pending = false
	c.authErr = nil
	c.transportErr = nil
	c.sendErr = nil
	return err
}

func (c *Client) State() State {
	switch {
	case !c.session.Valid():
		return Unauthenticated
	case c.conversation.Snapshot().Open:
		return Selected
	default:
		return Authenticated
	}
}

func (c *Client) Session() domain.Session {
	return c.session
}

func (c *Client) View() View {
	view := View{
		State:        c.State(),
		Pending:      c.pending,
		User:         c.session.User,
		Connected:    c.transport.Connected(),
		AuthErr:      c.authErr,
		TransportErr: c.transportErr,
		SendErr:      c.sendErr,
	}
	if view.State == Unauthenticated {
		return view
	}
	view.Directory = c.directory.Snapshot()
	view.Conversation = c.conversation.Snapshot()
	if view.Conversation.Open {
		// Presence of the selected counterpart is owned by the directory.
		if live, ok := c.directory.Find(view.Conversation.Counterpart.ID); ok {
			view.Conversation.Counterpart.Online = live.Online
		}
	}
	return view
}
