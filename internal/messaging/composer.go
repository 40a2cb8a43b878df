package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablee/tablee/internal/logging"
	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/store"
)

// ErrEmptyMessage is returned when a send is attempted with no content.
var ErrEmptyMessage = errors.New("message is empty")

// Composer persists outgoing messages. A send inserts the message row and
// then refreshes the conversation's last-message cache; there is no retry
// queue, a failed send returns the error for the caller to surface.
//
// The sent message reaches the thread engine through the change feed like
// any other insert, so the engine's de-duplication applies to it too.
type Composer struct {
	messages      *store.MessageRepository
	conversations *store.ConversationRepository
	logger        zerolog.Logger
}

// NewComposer creates a composer over the two repositories.
func NewComposer(messages *store.MessageRepository, conversations *store.ConversationRepository) *Composer {
	return &Composer{
		messages:      messages,
		conversations: conversations,
		logger:        logging.Component("composer"),
	}
}

// Send persists a trimmed, non-empty message and updates the conversation
// preview. Whitespace-only input returns ErrEmptyMessage without touching
// the store.
func (c *Composer) Send(ctx context.Context, conversationID, senderID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.messages.Insert(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if err := c.conversations.UpdateLastMessage(ctx, conversationID, text, message.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to update conversation preview: %w", err)
	}

	c.logger.Debug().
		Str("conversation_id", conversationID).
		Str("message_id", message.ID).
		Msg("message sent")
	return message, nil
}
