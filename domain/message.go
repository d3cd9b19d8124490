// Package domain contains core concepts of the chat relay.
// This file defines Message events and related rules.
// Messages are immutable once created and never mutated afterwards.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnonymousAuthor is substituted when a sender leaves the author blank.
const AnonymousAuthor = "Anonymous"

// Message represents an immutable chat event. The JSON shape is the wire
// format shared by the store, the REST API, and the live channel.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a freshly received message. Author and text are trimmed,
// a blank author falls back to AnonymousAuthor, and the timestamp is the
// current UTC instant truncated to seconds (RFC3339 on the wire).
func NewMessage(author, text string) Message {
	author = strings.TrimSpace(author)
	if author == "" {
		author = AnonymousAuthor
	}
	return Message{
		ID:        uuid.New(),
		Author:    author,
		Text:      strings.TrimSpace(text),
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}
