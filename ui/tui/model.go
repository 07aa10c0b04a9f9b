// Package tui is the interactive terminal presentation of the chat client.
// It owns widgets only: every state change goes through runtime.Client.
package tui

import (
	"chat-client/runtime"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type pane int

const (
	paneDirectory pane = iota
	paneSearch
	paneInput
)

type Model struct {
	client   *runtime.Client
	form     authForm
	search   textinput.Model
	input    textinput.Model
	viewport viewport.Model
	focus    pane
	cursor   int
	shown    int
	width    int
	height   int
	err      error
}

func New(client *runtime.Client) Model {
	search := textinput.New()
	search.Placeholder = "search"
	search.CharLimit = 64
	search.Width = sidebarWidth - 4

	input := textinput.New()
	input.Placeholder = "type a message"
	input.CharLimit = 4096

	return Model{
		client:   client,
		form:     newAuthForm(),
		search:   search,
		input:    input,
		viewport: viewport.New(60, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.client.Init(), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.client.State() == runtime.Unauthenticated {
			cmds = append(cmds, m.updateForm(msg))
		} else {
			cmds = append(cmds, m.updateChat(msg))
		}
	default:
		cmds = append(cmds, m.client.Update(msg), m.updateFocused(msg))
	}
	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return m.form.move(1)
	case "shift+tab", "up":
		return m.form.move(-1)
	case "ctrl+r":
		return m.form.toggleMode()
	case "ctrl+t":
		if m.form.register {
			m.form.acceptTerms = !m.form.acceptTerms
		}
		return nil
	case "enter":
		m.err = nil
		return m.form.submit(m.client)
	}
	return m.form.update(msg)
}

func (m *Model) updateChat(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+l":
		m.err = m.client.Logout()
		m.form = newAuthForm()
		m.cursor, m.shown = 0, 0
		return m.setFocus(paneDirectory)
	case "ctrl+r":
		return m.client.Reconnect()
	case "ctrl+o":
		return m.client.ToggleOnlineOnly()
	case "tab":
		return m.setFocus((m.focus + 1) % 3)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	case "esc":
		if m.focus != paneDirectory {
			return m.setFocus(paneDirectory)
		}
		m.client.Deselect()
		return nil
	}

	switch m.focus {
	case paneSearch:
		if msg.String() == "enter" {
			cmd := m.client.Search(m.search.Value())
			return tea.Batch(cmd, m.setFocus(paneDirectory))
		}
	case paneInput:
		if msg.String() == "enter" {
			// The send error is part of the view.
			_ = m.client.Send(m.input.Value())
			m.input.Reset()
			return nil
		}
	default:
		return m.updateDirectory(msg)
	}
	return m.updateFocused(msg)
}

func (m *Model) updateDirectory(msg tea.KeyMsg) tea.Cmd {
	counterparts := m.client.View().Directory.Counterparts
	switch msg.String() {
	case "up", "k":
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		m.cursor = max(0, min(len(counterparts)-1, m.cursor+1))
	case "/":
		return m.setFocus(paneSearch)
	case "i":
		return m.setFocus(paneInput)
	case "r":
		return m.client.Reload()
	case "enter":
		if m.cursor < 0 || m.cursor >= len(counterparts) {
			return nil
		}
		m.shown = 0
		return tea.Batch(m.client.Select(counterparts[m.cursor].ID), m.setFocus(paneInput))
	}
	return nil
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.client.State() == runtime.Unauthenticated:
		return m.form.update(msg)
	case m.focus == paneSearch:
		m.search, cmd = m.search.Update(msg)
	case m.focus == paneInput:
		m.input, cmd = m.input.Update(msg)
	}
	return cmd
}

func (m *Model) setFocus(p pane) tea.Cmd {
	m.focus = p
	m.search.Blur()
	m.input.Blur()
	switch p {
	case paneSearch:
		return m.search.Focus()
	case paneInput:
		return m.input.Focus()
	}
	return nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = max(20, width-sidebarWidth-6)
	m.viewport.Height = max(3, height-8)
	m.input.Width = max(10, m.viewport.Width-2)
}

// refresh keeps widgets in line with the client after every message.
func (m *Model) refresh() {
	view := m.client.View()
	if n := len(view.Directory.Counterparts); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
	m.viewport.SetContent(renderConversation(view))
	if n := len(view.Conversation.Messages); n != m.shown {
		m.shown = n
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	view := m.client.View()
	if view.State == runtime.Unauthenticated {
		form := m.form.view(view)
		if m.err != nil {
			form += "\n" + errorStyle.Render(m.err.Error())
		}
		return paneStyle.Render(form)
	}

	sidebar := paneStyle
	if m.focus != paneInput {
		sidebar = focusedPaneStyle
	}
	left := sidebar.Width(sidebarWidth).Render(
		m.search.View() + "\n\n" + renderSidebar(view.Directory, m.cursor, view.Conversation.Counterpart.ID),
	)

	conversation := paneStyle
	if m.focus == paneInput {
		conversation = focusedPaneStyle
	}
	right := conversation.Render(m.viewport.View() + "\n" + m.input.View())

	var footer []string
	if view.SendErr != nil {
		footer = append(footer, errorStyle.Render(view.SendErr.Error()))
	}
	footer = append(footer, helpStyle.Render(
		"tab: focus • enter: open/send • /: search • ctrl+o: online only • esc: close • ctrl+l: logout",
	))

	return lipgloss.JoinVertical(lipgloss.Left,
		renderHeader(view),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		strings.Join(footer, "\n"),
	)
}
