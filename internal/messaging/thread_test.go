package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
	"github.com/tablee/tablee/internal/store"
)

func newThread(t *testing.T, db *store.DB, bus *realtime.Bus, userID string) *ThreadEngine {
	t.Helper()
	engine := NewThreadEngine(store.NewMessageRepository(db, bus), bus, userID)
	t.Cleanup(engine.Close)
	return engine
}

func TestThreadEngineLoadsHistoryInOrder(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, db, conversationID, "bob", "salut", base.Add(2*time.Minute))
	seedMessage(t, db, conversationID, "alice", "hello", base)
	seedMessage(t, db, conversationID, "bob", "on mange où ?", base.Add(5*time.Minute))

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))
	require.Equal(t, ThreadReady, engine.State())

	messages := engine.Messages()
	require.Len(t, messages, 3)
	require.Equal(t, "hello", messages[0].Body)
	require.Equal(t, "salut", messages[1].Body)
	require.Equal(t, "on mange où ?", messages[2].Body)
}

func TestThreadEngineDeduplicatesLiveEvents(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))

	message := seedMessage(t, db, conversationID, "bob", "coucou", time.Now().UTC())
	change := insertChange(message)
	for i := 0; i < 3; i++ {
		bus.Publish(context.Background(), change)
	}

	require.Len(t, engine.Messages(), 1)
}

func TestThreadEngineIgnoresHistoricalDuplicates(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	// The row lands before the initial fetch, then its live event arrives
	// after the fetch completes.
	message := seedMessage(t, db, conversationID, "bob", "déjà vu", time.Now().UTC())

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))
	require.Len(t, engine.Messages(), 1)

	bus.Publish(context.Background(), insertChange(message))
	require.Len(t, engine.Messages(), 1)
}

func TestThreadEngineReordersOutOfOrderEvents(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := seedMessage(t, db, conversationID, "bob", "second", base.Add(time.Minute))
	earlier := seedMessage(t, db, conversationID, "bob", "first", base)

	bus.Publish(context.Background(), insertChange(later))
	bus.Publish(context.Background(), insertChange(earlier))

	messages := engine.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "first", messages[0].Body)
	require.Equal(t, "second", messages[1].Body)
}

func TestThreadEngineScopesEventsToSelection(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	seedProfile(t, db, "carol", "carol", "Carol")
	withBob := seedConversation(t, db, "alice", "bob")
	withCarol := seedConversation(t, db, "alice", "carol")

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), withBob))

	stray := seedMessage(t, db, withCarol, "carol", "wrong thread", time.Now().UTC())
	bus.Publish(context.Background(), insertChange(stray))

	require.Empty(t, engine.Messages())
}

func TestThreadEngineSwitchDiscardsPreviousThread(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	seedProfile(t, db, "carol", "carol", "Carol")
	withBob := seedConversation(t, db, "alice", "bob")
	withCarol := seedConversation(t, db, "alice", "carol")

	old := seedMessage(t, db, withBob, "bob", "before switch", time.Now().UTC())

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), withBob))
	require.Len(t, engine.Messages(), 1)

	require.NoError(t, engine.Select(context.Background(), withCarol))
	require.Empty(t, engine.Messages())
	require.Equal(t, withCarol, engine.ConversationID())

	// Events for the abandoned conversation must not leak into the new one.
	bus.Publish(context.Background(), insertChange(old))
	require.Empty(t, engine.Messages())
}

func TestThreadEngineMarksHistoryRead(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	base := time.Now().UTC()
	seedMessage(t, db, conversationID, "bob", "unread one", base)
	seedMessage(t, db, conversationID, "bob", "unread two", base.Add(time.Second))
	mine := seedMessage(t, db, conversationID, "alice", "my own", base.Add(2*time.Second))

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))

	messages := store.NewMessageRepository(db, nil)
	rows, err := messages.ListByConversation(context.Background(), conversationID)
	require.NoError(t, err)
	for _, row := range rows {
		if row.ID == mine.ID {
			require.False(t, row.Read, "own messages are not receipts")
			continue
		}
		require.True(t, row.Read, "counterpart message %q should be read", row.Body)
	}
}

func TestThreadEngineMarksLiveInboundRead(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))

	inbound := seedMessage(t, db, conversationID, "bob", "while open", time.Now().UTC())
	bus.Publish(context.Background(), insertChange(inbound))

	messages := store.NewMessageRepository(db, nil)
	rows, err := messages.ListByConversation(context.Background(), conversationID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Read)
}

func TestThreadEngineCloseResetsState(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")
	seedMessage(t, db, conversationID, "bob", "hello", time.Now().UTC())

	engine := newThread(t, db, bus, "alice")
	require.NoError(t, engine.Select(context.Background(), conversationID))
	require.Equal(t, ThreadReady, engine.State())

	engine.Close()
	require.Equal(t, ThreadIdle, engine.State())
	require.Empty(t, engine.Messages())
	require.Empty(t, engine.ConversationID())
	require.Zero(t, bus.SubscriberCount())
}

func TestThreadEngineNotifiesListeners(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")

	engine := newThread(t, db, bus, "alice")

	var notifications int
	unsubscribe := engine.OnChange(func() { notifications++ })
	defer unsubscribe()

	require.NoError(t, engine.Select(context.Background(), conversationID))
	require.GreaterOrEqual(t, notifications, 2, "loading and ready transitions notify")

	before := notifications
	message := seedMessage(t, db, conversationID, "bob", "ping", time.Now().UTC())
	bus.Publish(context.Background(), insertChange(message))
	require.Greater(t, notifications, before)
}

// preemptFeed runs a hook the first time a subscription registers, modeling
// a switch that lands while Select is still setting up.
type preemptFeed struct {
	realtime.Feed
	fired bool
	hook  func()
}

func (f *preemptFeed) Subscribe(id string, filter realtime.Filter, handler realtime.Handler) error {
	if !f.fired {
		f.fired = true
		f.hook()
	}
	return f.Feed.Subscribe(id, filter, handler)
}

func TestThreadCloseDuringSubscriptionSetup(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	conversationID := seedConversation(t, db, "alice", "bob")
	seedMessage(t, db, conversationID, "bob", "salut", time.Now().UTC())

	feed := &preemptFeed{Feed: bus}
	engine := NewThreadEngine(store.NewMessageRepository(db, nil), feed, "alice")
	t.Cleanup(engine.Close)
	feed.hook = func() { engine.Close() }

	require.NoError(t, engine.Select(context.Background(), conversationID))

	// The close superseded the selection; its subscription must not survive.
	require.Equal(t, ThreadIdle, engine.State())
	require.Empty(t, engine.ConversationID())
	require.Zero(t, bus.SubscriberCount())
}

func TestThreadSwitchDuringSubscriptionSetup(t *testing.T) {
	db, bus := newTestStore(t)
	seedProfile(t, db, "alice", "alice", "Alice")
	seedProfile(t, db, "bob", "bob", "Bob")
	seedProfile(t, db, "carol", "carol", "Carol")
	withBob := seedConversation(t, db, "alice", "bob")
	withCarol := seedConversation(t, db, "alice", "carol")
	seedMessage(t, db, withBob, "bob", "salut", time.Now().UTC())

	feed := &preemptFeed{Feed: bus}
	engine := NewThreadEngine(store.NewMessageRepository(db, nil), feed, "alice")
	t.Cleanup(engine.Close)
	feed.hook = func() {
		require.NoError(t, engine.Select(context.Background(), withCarol))
	}

	require.NoError(t, engine.Select(context.Background(), withBob))

	// Only the superseding selection's subscription remains.
	require.Equal(t, withCarol, engine.ConversationID())
	require.Equal(t, ThreadReady, engine.State())
	require.Equal(t, 1, bus.SubscriberCount())
}

func TestThreadFailedLoadClearsSelection(t *testing.T) {
	_, bus := newTestStore(t)

	engine := NewThreadEngine(failingReader{}, bus, "alice")
	t.Cleanup(engine.Close)

	err := engine.Select(context.Background(), "conv-1")
	require.Error(t, err)
	require.Equal(t, ThreadIdle, engine.State())
	require.Empty(t, engine.ConversationID(), "a failed load must not leave a selection behind")
	require.Zero(t, bus.SubscriberCount())
}

// failingReader always fails the history fetch.
type failingReader struct{}

func (failingReader) ListByConversation(context.Context, string) ([]models.Message, error) {
	return nil, errors.New("store unavailable")
}

func (failingReader) MarkRead(context.Context, string) error { return nil }

func (failingReader) MarkConversationRead(context.Context, string, string) (int64, error) {
	return 0, nil
}
