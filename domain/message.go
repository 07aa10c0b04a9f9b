// Package domain contains core concepts of the chat client.
// This file defines Message events and their read state.
// Messages are never edited or removed once delivered.
package domain

import (
	"slices"
	"time"
)

// Message represents a delivered direct message.
type Message struct {
	ID        string    `json:"_id,omitempty"`
	Sender    Identity  `json:"sender"`
	Receiver  Identity  `json:"receiver"`
	Content   string    `json:"content"`
	ReadBy    ReadSet   `json:"readBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Involves reports whether the message was exchanged with the given user.
func (m Message) Involves(id UserID) bool {
	return m.Sender.Is(id) || m.Receiver.Is(id)
}

// ReadSet holds the ids of users who have read a message.
// It only grows: there is no way to remove an id once added.
type ReadSet []UserID

func (r ReadSet) Contains(id UserID) bool {
	return slices.Contains(r, id)
}

// Add inserts id and reports whether the set changed.
func (r *ReadSet) Add(id UserID) bool {
	if id == "" || r.Contains(id) {
		return false
	}
	*r = append(*r, id)
	return true
}

// Clone returns a copy that does not share storage with r.
func (r ReadSet) Clone() ReadSet {
	if r == nil {
		return nil
	}
	return slices.Clone(r)
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.ReadBy = m.ReadBy.Clone()
	return m
}
