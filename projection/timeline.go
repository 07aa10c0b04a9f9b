// Package projection builds local views from fetched data and observed events.
// Handles ordering, scoping and read state.
// Does not emit events or interact with UI directly.
package projection

import (
	"chat-client/domain"
	"slices"

	"github.com/samber/lo"
)

// Timeline holds the conversation log of the selected counterpart, oldest first.
// It is not safe for concurrent use; the owner mutates it from one goroutine.
type Timeline struct {
	counterpartID domain.UserID
	messages      []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Reset drops the log and scopes the timeline to another counterpart.
// An empty id leaves the timeline closed: nothing can be appended.
func (t *Timeline) Reset(counterpartID domain.UserID) {
	t.counterpartID = counterpartID
	t.messages = nil
}

func (t *Timeline) CounterpartID() domain.UserID {
	return t.counterpartID
}

func (t *Timeline) IsOpen() bool {
	return t.counterpartID != ""
}

// Seed replaces the log with a history page received newest first.
// Messages not exchanged with the counterpart are left out.
// Messages appended live before the page arrived stay at the tail
// unless the page already holds them.
func (t *Timeline) Seed(newestFirst []domain.Message) {
	if !t.IsOpen() {
		return
	}
	messages := lo.FilterMap(newestFirst, func(m domain.Message, _ int) (domain.Message, bool) {
		return m.Clone(), m.Involves(t.counterpartID)
	})
	slices.Reverse(messages)

	known := lo.SliceToMap(messages, func(m domain.Message) (string, struct{}) {
		return m.ID, struct{}{}
	})
	for _, live := range t.messages {
		if _, dup := known[live.ID]; live.ID == "" || !dup {
			messages = append(messages, live)
		}
	}
	t.messages = messages
}

// Append adds msg to the tail when it belongs to the open conversation.
func (t *Timeline) Append(msg domain.Message) bool {
	if !t.IsOpen() || !msg.Involves(t.counterpartID) {
		return false
	}
	t.messages = append(t.messages, msg.Clone())
	return true
}

// ApplyReadReceipt marks as read by readerID every message sent by localUserID.
// It returns how many messages changed; read state never shrinks.
func (t *Timeline) ApplyReadReceipt(chatID, readerID, localUserID domain.UserID) int {
	if !t.IsOpen() || chatID != t.counterpartID || readerID == "" {
		return 0
	}
	changed := 0
	for i := range t.messages {
		if !t.messages[i].Sender.Is(localUserID) {
			continue
		}
		if t.messages[i].ReadBy.Add(readerID) {
			changed++
		}
	}
	return changed
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

// Snapshot returns a copy of the log that callers may keep.
func (t *Timeline) Snapshot() []domain.Message {
	return lo.Map(t.messages, func(m domain.Message, _ int) domain.Message {
		return m.Clone()
	})
}
