package models

import (
	"strings"
	"time"
)

// Conversation pairs two users and caches the latest message for list views.
//
// The participant slots are an ordered pair as stored; the pair is logically
// unordered and at most one conversation may exist per unordered pair.
type Conversation struct {
	// ID is the unique conversation identifier.
	ID string `json:"id"`

	// Participant1 is the first participant's user ID.
	Participant1 string `json:"participant_1"`

	// Participant2 is the second participant's user ID.
	Participant2 string `json:"participant_2"`

	// LastMessageText is the denormalized body of the latest message.
	LastMessageText string `json:"last_message_text,omitempty"`

	// LastMessageAt is the denormalized time of the latest message.
	// Nil until the first message is sent.
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Validate checks the fields required at the store boundary.
func (c *Conversation) Validate() error {
	validation := &ValidationErrors{}
	p1 := strings.TrimSpace(c.Participant1)
	p2 := strings.TrimSpace(c.Participant2)
	if p1 == "" {
		validation.Add("participant_1", ErrMissingParticipant)
	}
	if p2 == "" {
		validation.Add("participant_2", ErrMissingParticipant)
	}
	if p1 != "" && p1 == p2 {
		validation.Add("participant_2", ErrSameParticipants)
	}
	return validation.Err()
}

// Counterpart returns the participant that is not userID.
func (c *Conversation) Counterpart(userID string) string {
	if c.Participant1 == userID {
		return c.Participant2
	}
	return c.Participant1
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant1 == userID || c.Participant2 == userID
}

// ConversationView is a conversation joined with the counterpart's profile,
// as needed by list rendering.
type ConversationView struct {
	Conversation

	// Counterpart is the other participant's profile (relative to the
	// viewing user). May be zero-valued if the profile row is missing.
	Counterpart Profile `json:"counterpart"`
}
