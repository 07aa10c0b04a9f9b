// Package domain contains core concepts of the chat client.
// This file defines Identity and Counterpart entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"bytes"
	"encoding/json"

	"github.com/samber/lo"
)

type UserID = string

// Identity is the authenticated user or a counterpart.
// Two identities are the same user when their IDs are equal.
type Identity struct {
	ID       UserID `json:"_id"`
	Username string `json:"username"`
}

// UnmarshalJSON accepts every shape the backend uses for a user reference:
// a bare id string, an object keyed by "_id" or an object keyed by "id".
func (i *Identity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*i = Identity{ID: id}
		return nil
	}
	var raw struct {
		MongoID  string `json:"_id"`
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = Identity{
		ID:       lo.CoalesceOrEmpty(raw.MongoID, raw.ID),
		Username: raw.Username,
	}
	return nil
}

func (i Identity) Is(id UserID) bool {
	return i.ID != "" && i.ID == id
}

// DisplayName falls back to the id when the wire only carried a bare reference.
func (i Identity) DisplayName() string {
	return lo.CoalesceOrEmpty(i.Username, i.ID)
}

// Counterpart is another user the local user may exchange direct messages with.
// Online is mutated only by presence events matching its ID or by a full directory fetch.
type Counterpart struct {
	Identity
	Online bool `json:"online"`
}

func (c *Counterpart) UnmarshalJSON(b []byte) error {
	var raw struct {
		Online bool `json:"online"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := c.Identity.UnmarshalJSON(b); err != nil {
		return err
	}
	c.Online = raw.Online
	return nil
}
