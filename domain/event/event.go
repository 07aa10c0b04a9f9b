// Package event describes the named events carried by the real-time channel.
// Payload shapes mirror the backend; decoding is the only logic here.
package event

import (
	"chat-client/domain"
	"chat-client/errors"
	"encoding/json"
	"fmt"
)

type Name string

// Outbound events.
const (
	JoinChat         Name = "joinChat"
	SendMessage      Name = "sendMessage"
	MarkMessagesRead Name = "markMessagesRead"
)

// Inbound events.
const (
	ReceiveMessage Name = "receiveMessage"
	MessagesRead   Name = "messagesRead"
	UserOnline     Name = "userOnline"
	UserOffline    Name = "userOffline"
)

// Disconnect is produced locally by the transport when its connection drops.
const Disconnect Name = "disconnect"

// ChatRef addresses a conversation. Direct chats are keyed by the counterpart id.
type ChatRef struct {
	ChatID  domain.UserID `json:"chatId"`
	IsGroup bool          `json:"isGroup"`
}

func DirectChat(counterpartID domain.UserID) ChatRef {
	return ChatRef{ChatID: counterpartID, IsGroup: false}
}

type OutgoingMessage struct {
	Content    string        `json:"content"`
	ReceiverID domain.UserID `json:"receiverId"`
	IsGroup    bool          `json:"isGroup"`
}

// ReadReceipt tells that UserID has read Count messages of ChatID.
type ReadReceipt struct {
	ChatID domain.UserID `json:"chatId"`
	UserID domain.UserID `json:"userId"`
	Count  int           `json:"count"`
}

type Presence struct {
	UserID domain.UserID `json:"userId"`
}

// Envelope is the frame exchanged on the wire.
type Envelope struct {
	ID    string          `json:"id,omitempty"`
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is an envelope received on a given connection generation.
// Err is only set on a Disconnect event.
type Inbound struct {
	Generation uint64
	Name       Name
	Data       json.RawMessage
	Err        error
}

// Decode unmarshals the payload of an inbound event.
func Decode[T any](in Inbound) (T, error) {
	var payload T
	if len(in.Data) == 0 {
		return payload, fmt.Errorf("%w: %s has no data", errors.ErrInvalidPayload, in.Name)
	}
	if err := json.Unmarshal(in.Data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, in.Name, err)
	}
	return payload, nil
}
