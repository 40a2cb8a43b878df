package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
	"github.com/tablee/tablee/internal/store"
)

func newTestStore(t *testing.T) (*store.DB, *realtime.Bus) {
	t.Helper()

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := realtime.NewBus()
	t.Cleanup(bus.Close)
	return db, bus
}

func seedProfile(t *testing.T, db *store.DB, id, handle, name string) {
	t.Helper()

	profiles := store.NewProfileRepository(db)
	err := profiles.Create(context.Background(), &models.Profile{
		ID:       id,
		Handle:   handle,
		FullName: name,
	})
	require.NoError(t, err)
}

func seedConversation(t *testing.T, db *store.DB, userA, userB string) string {
	t.Helper()

	conversations := store.NewConversationRepository(db, nil)
	conversation := &models.Conversation{
		Participant1: userA,
		Participant2: userB,
	}
	require.NoError(t, conversations.Create(context.Background(), conversation))
	return conversation.ID
}

// seedMessage inserts directly without publishing on any feed, so tests
// control exactly which change events the components observe.
func seedMessage(t *testing.T, db *store.DB, conversationID, senderID, body string, at time.Time) *models.Message {
	t.Helper()

	messages := store.NewMessageRepository(db, nil)
	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      at,
	}
	require.NoError(t, messages.Insert(context.Background(), message))
	return message
}

func insertChange(message *models.Message) *models.Change {
	row := *message
	return &models.Change{
		Op:        models.ChangeOpInsert,
		Table:     models.TableMessages,
		Timestamp: time.Now().UTC(),
		Message:   &row,
	}
}
