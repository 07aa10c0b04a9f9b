package services

import (
	"chat-client/domain"
	"chat-client/domain/event"
)

// Results of asynchronous work, delivered back to the event loop.
// Each carries the tag it was issued with so late results can be recognised.

type DirectoryLoaded struct {
	Generation uint64
	Filter     domain.Filter
	Users      []domain.Counterpart
	Err        error
}

type HistoryLoaded struct {
	CounterpartID domain.UserID
	Epoch         uint64
	Messages      []domain.Message
	Err           error
}

type MarkedRead struct {
	Chat event.ChatRef
	Err  error
}

// Authenticated ends a login, a registration or a restore.
type Authenticated struct {
	Session  domain.Session
	Restored bool
	Err      error
}

// Connected ends a transport dial started for the session holding Token.
type Connected struct {
	Token      string
	Generation uint64
	Err        error
}
