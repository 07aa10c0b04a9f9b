// Package cli is a line oriented presentation of the chat client.
// It runs the same event loop as the terminal UI without a renderer:
// commands are read from an input stream and every change is printed as it happens.
package cli

import (
	"bufio"
	"chat-client/auth"
	"chat-client/domain"
	"chat-client/domain/event"
	"chat-client/runtime"
	"chat-client/services"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// Line is one line read from the input.
type Line string

const usage = `commands:
  /login <email> <password>
  /register <username> <email> <password> accept
  /users                 reload the directory
  /search [text]         filter the directory by name
  /online                toggle online users only
  /open <name|id>        open a conversation
  /close                 close the conversation
  /reconnect             retry live updates after a drop
  /logout
  /quit
anything else is sent to the open conversation`

type Model struct {
	client *runtime.Client
	out    io.Writer
}

func New(client *runtime.Client, out io.Writer) Model {
	return Model{client: client, out: out}
}

// ReadLines forwards every line of in to send, then asks the program to quit.
func ReadLines(in io.Reader, send func(tea.Msg)) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		send(Line(scanner.Text()))
	}
	send(tea.QuitMsg{})
	return scanner.Err()
}

func (m Model) Init() tea.Cmd {
	return m.client.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case Line:
		return m, m.execute(string(msg))
	case runtime.InboundMsg:
		before := m.client.View()
		cmd := m.client.Update(msg)
		m.reportInbound(event.Inbound(msg), before, m.client.View())
		return m, cmd
	default:
		cmd := m.client.Update(msg)
		m.report(msg)
		return m, cmd
	}
}

// View is empty: output is printed as it happens.
func (m Model) View() string {
	return ""
}

func (m Model) execute(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		if err := m.client.Send(line); err != nil {
			m.failure("not sent", err)
		}
		return nil
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	state := m.client.State()
	if state == runtime.Unauthenticated && !lo.Contains([]string{"/login", "/register", "/help", "/quit"}, name) {
		m.println(color.Yellow.Sprint("log in first: /login <email> <password>"))
		return nil
	}

	switch name {
	case "/help":
		m.println(usage)
	case "/quit":
		return tea.Quit
	case "/login":
		if len(args) != 2 {
			m.println(color.Yellow.Sprint("usage: /login <email> <password>"))
			return nil
		}
		return m.client.Login(auth.LoginRequest{Email: args[0], Password: args[1]})
	case "/register":
		if len(args) < 3 {
			m.println(color.Yellow.Sprint("usage: /register <username> <email> <password> accept"))
			return nil
		}
		return m.client.Register(auth.RegisterRequest{
			Username:    args[0],
			Email:       args[1],
			Password:    args[2],
			AcceptTerms: len(args) > 3 && strings.EqualFold(args[3], "accept"),
		})
	case "/users":
		return m.client.Reload()
	case "/search":
		return m.client.Search(strings.Join(args, " "))
	case "/online":
		return m.client.ToggleOnlineOnly()
	case "/open":
		if len(args) != 1 {
			m.println(color.Yellow.Sprint("usage: /open <name|id>"))
			return nil
		}
		counterpart, ok := m.lookup(args[0])
		if !ok {
			m.println(color.Yellow.Sprintf("nobody named %q in the directory", args[0]))
			return nil
		}
		return m.client.Select(counterpart.ID)
	case "/close":
		m.client.Deselect()
		m.println(color.Gray.Sprint("conversation closed"))
	case "/reconnect":
		return m.client.Reconnect()
	case "/logout":
		if err := m.client.Logout(); err != nil {
			m.failure("logout", err)
		}
		m.println(color.Gray.Sprint("logged out"))
	default:
		m.println(color.Yellow.Sprintf("unknown command %s", name))
		m.println(usage)
	}
	return nil
}

// lookup matches an id first, then a username ignoring case.
func (m Model) lookup(ref string) (domain.Counterpart, bool) {
	counterparts := m.client.View().Directory.Counterparts
	if c, ok := lo.Find(counterparts, func(c domain.Counterpart) bool { return c.ID == ref }); ok {
		return c, true
	}
	return lo.Find(counterparts, func(c domain.Counterpart) bool { return strings.EqualFold(c.Username, ref) })
}

func (m Model) report(msg tea.Msg) {
	view := m.client.View()
	switch msg := msg.(type) {
	case services.Authenticated:
		switch {
		case view.State != runtime.Unauthenticated:
			m.println(color.Green.Sprintf("logged in as %s", view.User.DisplayName()))
		case view.AuthErr != nil:
			m.failure("login", view.AuthErr)
		}
	case services.Connected:
		if view.TransportErr != nil {
			m.failure("live updates unavailable", view.TransportErr)
		} else if view.State != runtime.Unauthenticated {
			m.println(color.Gray.Sprint("connected"))
		}
	case services.DirectoryLoaded:
		if msg.Filter != view.Directory.Filter {
			return
		}
		if view.Directory.Err != nil {
			m.failure("directory", view.Directory.Err)
			return
		}
		m.printDirectory(view.Directory)
	case services.HistoryLoaded:
		conversation := view.Conversation
		if !conversation.Open || msg.CounterpartID != conversation.Counterpart.ID {
			return
		}
		m.println(color.Cyan.Sprintf("── %s ──", conversation.Counterpart.DisplayName()))
		if conversation.Err != nil {
			m.failure("history", conversation.Err)
			return
		}
		for _, message := range conversation.Messages {
			m.printMessage(view, message)
		}
	}
}

func (m Model) reportInbound(in event.Inbound, before, after runtime.View) {
	switch in.Name {
	case event.Disconnect:
		if before.TransportErr == nil && after.TransportErr != nil {
			m.println(color.Red.Sprint("connection lost, /reconnect to retry"))
		}
	case event.UserOnline, event.UserOffline:
		previous := lo.SliceToMap(before.Directory.Counterparts, func(c domain.Counterpart) (domain.UserID, bool) {
			return c.ID, c.Online
		})
		for _, c := range after.Directory.Counterparts {
			if online, ok := previous[c.ID]; ok && online != c.Online {
				m.println(presenceLine(c))
			}
		}
	case event.ReceiveMessage:
		messages := after.Conversation.Messages
		if !after.Conversation.Open || len(messages) <= len(before.Conversation.Messages) {
			return
		}
		for _, message := range messages[len(before.Conversation.Messages):] {
			m.printMessage(after, message)
		}
	case event.MessagesRead:
		if seen(after) > seen(before) {
			m.println(color.Green.Sprintf("✓✓ seen by %s", after.Conversation.Counterpart.DisplayName()))
		}
	}
}

// seen counts messages of the local user read by the counterpart.
func seen(view runtime.View) int {
	counterpart := view.Conversation.Counterpart.ID
	return lo.CountBy(view.Conversation.Messages, func(m domain.Message) bool {
		return m.Sender.Is(view.User.ID) && m.ReadBy.Contains(counterpart)
	})
}

func presenceLine(c domain.Counterpart) string {
	if c.Online {
		return color.Green.Sprintf("● %s is online", c.DisplayName())
	}
	return color.Gray.Sprintf("○ %s is offline", c.DisplayName())
}

func (m Model) printMessage(view runtime.View, message domain.Message) {
	var b strings.Builder
	if !message.CreatedAt.IsZero() {
		b.WriteString(color.Gray.Sprintf("[%s] ", message.CreatedAt.Local().Format("15:04")))
	}
	if message.Sender.Is(view.User.ID) {
		b.WriteString(color.Blue.Sprint("you") + ": " + message.Content)
		if message.ReadBy.Contains(view.Conversation.Counterpart.ID) {
			b.WriteString(" " + color.Green.Sprint("✓✓ seen"))
		}
	} else {
		b.WriteString(color.Cyan.Sprint(view.Conversation.Counterpart.DisplayName()) + ": " + message.Content)
	}
	m.println(b.String())
}

func (m Model) printDirectory(view services.DirectoryView) {
	if len(view.Counterparts) == 0 {
		m.println(color.Gray.Sprint("nobody here"))
		return
	}
	table := tablewriter.NewWriter(m.out)
	table.SetHeader([]string{"", "User", "ID", "Status"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	for _, c := range view.Counterparts {
		marker, status := "○", "offline"
		if c.Online {
			marker, status = "●", "online"
		}
		table.Append([]string{marker, c.DisplayName(), c.ID, status})
	}
	table.Render()
	m.println(color.Gray.Sprintf("%d of %d online", view.OnlineCount, len(view.Counterparts)))
}

func (m Model) failure(what string, err error) {
	m.println(color.Red.Sprintf("%s: %v", what, err))
}

func (m Model) println(s string) {
	_, _ = fmt.Fprintln(m.out, s)
}
