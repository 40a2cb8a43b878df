package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
	"github.com/tablee/tablee/internal/store"
)

// Inbox wires the directory, unread tracker, thread engine, and composer
// for one signed-in user, and keeps them consistent: opening a conversation
// selects the thread and zeroes its unread badge in one step, and detaching
// tears every live subscription down before sign-out proceeds.
type Inbox struct {
	userID        string
	conversations *store.ConversationRepository

	Directory *Directory
	Unread    *UnreadTracker
	Thread    *ThreadEngine
	Composer  *Composer
}

// NewInbox builds the messaging components for the given user.
func NewInbox(db *store.DB, feed realtime.Feed, userID string) *Inbox {
	conversations := store.NewConversationRepository(db, feed)
	messages := store.NewMessageRepository(db, feed)

	return &Inbox{
		userID:        userID,
		conversations: conversations,
		Directory:     NewDirectory(conversations, feed),
		Unread:        NewUnreadTracker(messages, feed),
		Thread:        NewThreadEngine(messages, feed, userID),
		Composer:      NewComposer(messages, conversations),
	}
}

// Load fetches the conversation list and seeds unread counts.
func (i *Inbox) Load(ctx context.Context) error {
	if err := i.Directory.Load(ctx, i.userID); err != nil {
		return err
	}
	return i.Unread.Load(ctx, i.userID, i.Directory.ConversationIDs())
}

// Open selects a conversation: the thread engine switches to it and its
// unread counter drops to zero immediately.
func (i *Inbox) Open(ctx context.Context, conversationID string) error {
	i.Unread.Open(conversationID)
	return i.Thread.Select(ctx, conversationID)
}

// Send posts a message to the currently open conversation.
func (i *Inbox) Send(ctx context.Context, text string) (*models.Message, error) {
	conversationID := i.Thread.ConversationID()
	if conversationID == "" {
		return nil, fmt.Errorf("no conversation selected")
	}
	return i.Composer.Send(ctx, conversationID, i.userID, text)
}

// StartConversation finds or creates the conversation between the user and
// another profile, returning its ID.
func (i *Inbox) StartConversation(ctx context.Context, otherUserID string) (string, error) {
	existing, err := i.conversations.GetByParticipants(ctx, i.userID, otherUserID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, store.ErrConversationNotFound) {
		return "", err
	}

	conversation := &models.Conversation{
		Participant1: i.userID,
		Participant2: otherUserID,
	}
	if err := i.conversations.Create(ctx, conversation); err != nil {
		if errors.Is(err, store.ErrConversationAlreadyExists) {
			existing, getErr := i.conversations.GetByParticipants(ctx, i.userID, otherUserID)
			if getErr == nil {
				return existing.ID, nil
			}
		}
		return "", err
	}
	i.Unread.Track(conversation.ID)
	return conversation.ID, nil
}

// UserID returns the signed-in user the inbox belongs to.
func (i *Inbox) UserID() string {
	return i.userID
}

// Detach tears down every live subscription and clears in-memory state.
// Safe to call more than once.
func (i *Inbox) Detach() {
	i.Thread.Close()
	i.Unread.Close()
	i.Directory.Close()
}
