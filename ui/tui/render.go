package tui

import (
	"chat-client/domain"
	"chat-client/runtime"
	"chat-client/services"
	"fmt"
	"strings"
)

func presenceMarker(online bool) string {
	if online {
		return onlineStyle.Render("●")
	}
	return offlineStyle.Render("○")
}

// renderSidebar lists the directory with a presence marker per counterpart.
func renderSidebar(view services.DirectoryView, cursor int, selected domain.UserID) string {
	var b strings.Builder
	title := fmt.Sprintf("Users %d/%d", view.OnlineCount, len(view.Counterparts))
	if view.Filter.OnlineOnly {
		title += " online"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if view.Filter.Search != "" {
		b.WriteString(helpStyle.Render("search: " + view.Filter.Search))
		b.WriteString("\n")
	}
	switch {
	case view.Loading && len(view.Counterparts) == 0:
		b.WriteString(helpStyle.Render("loading…"))
		b.WriteString("\n")
	case len(view.Counterparts) == 0:
		b.WriteString(helpStyle.Render("nobody here"))
		b.WriteString("\n")
	}
	for i, c := range view.Counterparts {
		pointer := "  "
		if i == cursor {
			pointer = cursorStyle.Render("› ")
		}
		name := c.DisplayName()
		if c.ID == selected {
			name = selectedStyle.Render(name)
		}
		b.WriteString(pointer + presenceMarker(c.Online) + " " + name + "\n")
	}
	if view.Err != nil {
		b.WriteString(errorStyle.Render(view.Err.Error()))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// readMarker is shown under messages sent by the local user.
func readMarker(m domain.Message, counterpart domain.UserID) string {
	if m.ReadBy.Contains(counterpart) {
		return seenStyle.Render("✓✓ seen")
	}
	return helpStyle.Render("✓ sent")
}

func renderMessage(m domain.Message, me domain.Identity, counterpart domain.Identity) string {
	var b strings.Builder
	if !m.CreatedAt.IsZero() {
		b.WriteString(timeStyle.Render(m.CreatedAt.Local().Format("15:04")) + " ")
	}
	if m.Sender.Is(me.ID) {
		b.WriteString(ownStyle.Render("you") + ": " + m.Content)
		b.WriteString("  " + readMarker(m, counterpart.ID))
		return b.String()
	}
	b.WriteString(counterpartStyle.Render(counterpart.DisplayName()) + ": " + m.Content)
	return b.String()
}

// renderConversation draws the log of the selected conversation, oldest first.
func renderConversation(view runtime.View) string {
	conversation := view.Conversation
	if !conversation.Open {
		return helpStyle.Render("Select someone to start chatting")
	}
	lines := make([]string, 0, len(conversation.Messages)+1)
	switch {
	case conversation.Err != nil:
		lines = append(lines, errorStyle.Render(conversation.Err.Error()))
	case conversation.Loading && len(conversation.Messages) == 0:
		lines = append(lines, helpStyle.Render("Loading history…"))
	case len(conversation.Messages) == 0:
		lines = append(lines, helpStyle.Render("No messages yet"))
	}
	for _, m := range conversation.Messages {
		lines = append(lines, renderMessage(m, view.User, conversation.Counterpart.Identity))
	}
	return strings.Join(lines, "\n")
}

func renderHeader(view runtime.View) string {
	status := onlineStyle.Render("connected")
	switch {
	case view.TransportErr != nil:
		status = errorStyle.Render("disconnected, ctrl+r to reconnect")
	case !view.Connected:
		status = helpStyle.Render("connecting…")
	}
	header := titleStyle.Render(view.User.DisplayName()) + "  " + status
	if view.Conversation.Open {
		c := view.Conversation.Counterpart
		header += "  " + helpStyle.Render("with") + " " + presenceMarker(c.Online) + " " + c.DisplayName()
	}
	return header
}
