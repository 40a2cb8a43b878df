package models

import "time"

// ChangeOp identifies the kind of row change carried by the realtime feed.
type ChangeOp string

const (
	ChangeOpInsert ChangeOp = "insert"
	ChangeOpUpdate ChangeOp = "update"
)

// Table names the feed publishes changes for.
const (
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableProfiles      = "profiles"
)

// Change is a single row-change notification delivered by the realtime feed.
// Exactly one of the row pointers is set, matching Table.
type Change struct {
	// Op is the kind of change.
	Op ChangeOp `json:"op"`

	// Table is the table the row belongs to.
	Table string `json:"table"`

	// Timestamp is when the change was published.
	Timestamp time.Time `json:"timestamp"`

	// Message carries the full new row for messages changes.
	Message *Message `json:"message,omitempty"`

	// Conversation carries the full new row for conversations changes.
	Conversation *Conversation `json:"conversation,omitempty"`

	// Profile carries the full new row for profiles changes.
	Profile *Profile `json:"profile,omitempty"`
}

// Column returns the value of the named column for filter matching.
// Unknown columns return "".
func (c *Change) Column(name string) string {
	switch c.Table {
	case TableMessages:
		if c.Message == nil {
			return ""
		}
		switch name {
		case "id":
			return c.Message.ID
		case "conversation_id":
			return c.Message.ConversationID
		case "sender_id":
			return c.Message.SenderID
		}
	case TableConversations:
		if c.Conversation == nil {
			return ""
		}
		switch name {
		case "id":
			return c.Conversation.ID
		case "participant_1":
			return c.Conversation.Participant1
		case "participant_2":
			return c.Conversation.Participant2
		}
	case TableProfiles:
		if c.Profile == nil {
			return ""
		}
		if name == "id" {
			return c.Profile.ID
		}
	}
	return ""
}
