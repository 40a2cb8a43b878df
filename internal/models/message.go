package models

import (
	"strings"
	"time"
)

// Message is a single direct message within a conversation.
//
// Messages are immutable once created except for the read flag, which only
// ever transitions false to true.
type Message struct {
	// ID is the unique message identifier.
	ID string `json:"id"`

	// ConversationID is the owning conversation.
	ConversationID string `json:"conversation_id"`

	// SenderID is the user who sent the message.
	SenderID string `json:"sender_id"`

	// Body is the message text. Never empty.
	Body string `json:"body"`

	// Read reports whether the receiving side has seen the message.
	Read bool `json:"read"`

	// CreatedAt is when the message was created. Ordering key, ties broken
	// by ID.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields required at the store boundary.
func (m *Message) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(m.ConversationID) == "" {
		validation.Add("conversation_id", ErrMissingConversation)
	}
	if strings.TrimSpace(m.SenderID) == "" {
		validation.Add("sender_id", ErrMissingSender)
	}
	if strings.TrimSpace(m.Body) == "" {
		validation.Add("body", ErrEmptyBody)
	}
	return validation.Err()
}

// Before reports whether m orders before other: creation time ascending,
// ties broken by ID for determinism.
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
