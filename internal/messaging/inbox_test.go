package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInboxOpenSelectsThreadAndZeroesBadge(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	now := time.Now().UTC()
	seedMessage(t, db, conversationID, "bob", "un", now)
	seedMessage(t, db, conversationID, "bob", "deux", now.Add(time.Second))

	inbox := NewInbox(db, bus, "alice")
	t.Cleanup(inbox.Detach)
	require.NoError(t, inbox.Load(context.Background()))
	require.Equal(t, 2, inbox.Unread.Count(conversationID))

	require.NoError(t, inbox.Open(context.Background(), conversationID))
	require.Zero(t, inbox.Unread.Count(conversationID))
	require.Len(t, inbox.Thread.Messages(), 2)
}

func TestInboxSendAppearsInThreadAndDirectory(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	inbox := NewInbox(db, bus, "alice")
	t.Cleanup(inbox.Detach)
	require.NoError(t, inbox.Load(context.Background()))
	require.NoError(t, inbox.Open(context.Background(), conversationID))

	sent, err := inbox.Send(context.Background(), "on y va ?")
	require.NoError(t, err)

	messages := inbox.Thread.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, sent.ID, messages[0].ID)

	views := inbox.Directory.Conversations()
	require.Len(t, views, 1)
	require.Equal(t, "on y va ?", views[0].LastMessageText)

	// Own sends never show up as unread.
	require.Zero(t, inbox.Unread.Total())
}

func TestInboxSendWithoutSelection(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")

	inbox := NewInbox(db, bus, "alice")
	t.Cleanup(inbox.Detach)
	require.NoError(t, inbox.Load(context.Background()))

	_, err := inbox.Send(context.Background(), "perdu")
	require.Error(t, err)
}

func TestInboxStartConversationIsIdempotentPerPair(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")

	inbox := NewInbox(db, bus, "alice")
	t.Cleanup(inbox.Detach)
	require.NoError(t, inbox.Load(context.Background()))

	first, err := inbox.StartConversation(context.Background(), "bob")
	require.NoError(t, err)

	second, err := inbox.StartConversation(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestInboxDetachDropsAllSubscriptions(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	inbox := NewInbox(db, bus, "alice")
	require.NoError(t, inbox.Load(context.Background()))
	require.NoError(t, inbox.Open(context.Background(), conversationID))
	require.NotZero(t, bus.SubscriberCount())

	inbox.Detach()
	require.Zero(t, bus.SubscriberCount())
}

func TestInboxCountsConversationStartedByCounterpart(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")

	alice := NewInbox(db, bus, "alice")
	t.Cleanup(alice.Detach)
	require.NoError(t, alice.Load(context.Background()))
	require.Empty(t, alice.Directory.Conversations())

	bob := NewInbox(db, bus, "bob")
	t.Cleanup(bob.Detach)
	require.NoError(t, bob.Load(context.Background()))

	conversationID, err := bob.StartConversation(context.Background(), "alice")
	require.NoError(t, err)
	_, err = bob.Composer.Send(context.Background(), conversationID, "bob", "on se fait une table ?")
	require.NoError(t, err)

	require.Len(t, alice.Directory.Conversations(), 1)
	require.Equal(t, 1, alice.Unread.Count(conversationID))
	require.Equal(t, 1, alice.Unread.Total())
}
