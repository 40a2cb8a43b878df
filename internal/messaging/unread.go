package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tablee/tablee/internal/logging"
	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
	"github.com/tablee/tablee/internal/store"
)

// UnreadTracker maintains per-conversation unread counts for the viewing
// user. The count map is replaced wholesale only by the initial load;
// afterwards live inserts mutate individual entries.
//
// Opening a conversation zeroes its counter immediately, without waiting for
// the read-receipt write to land. Inserts into the open conversation never
// increment, so the open conversation's badge stays at zero.
type UnreadTracker struct {
	messages *store.MessageRepository
	feed     realtime.Feed
	logger   zerolog.Logger

	mu         sync.Mutex
	userID     string
	counts     map[string]int
	tracked    map[string]bool
	openID     string
	subIDs     []string
	listeners  map[int]func()
	listenerID int
}

// NewUnreadTracker creates an unread tracker backed by the repository and
// the change feed.
func NewUnreadTracker(messages *store.MessageRepository, feed realtime.Feed) *UnreadTracker {
	return &UnreadTracker{
		messages:  messages,
		feed:      feed,
		logger:    logging.Component("unread"),
		counts:    make(map[string]int),
		tracked:   make(map[string]bool),
		listeners: make(map[int]func()),
	}
}

// Load bulk-fetches the unread counts for the given conversations and opens
// a live subscription on message inserts.
func (t *UnreadTracker) Load(ctx context.Context, userID string, conversationIDs []string) error {
	counts, err := t.messages.UnreadCounts(ctx, userID, conversationIDs)
	if err != nil {
		return fmt.Errorf("failed to load unread counts: %w", err)
	}

	t.mu.Lock()
	t.userID = userID
	t.counts = counts
	t.tracked = make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		t.tracked[id] = true
	}
	t.mu.Unlock()
	t.notify()

	subID := "unread-" + userID
	err = t.feed.Subscribe(subID, realtime.Filter{
		Table: models.TableMessages,
		Ops:   []models.ChangeOp{models.ChangeOpInsert},
	}, t.handleInsert)
	if err != nil {
		t.logger.Warn().Err(err).Str("subscription", subID).Msg("failed to open live subscription")
		return nil
	}
	t.mu.Lock()
	t.subIDs = append(t.subIDs, subID)
	t.mu.Unlock()

	// Conversations the counterpart starts after this load must count too;
	// follow inserts on both participant columns and track them as they
	// appear.
	for _, column := range []string{"participant_1", "participant_2"} {
		convSubID := fmt.Sprintf("unread-conversations-%s-%s", column, userID)
		err := t.feed.Subscribe(convSubID, realtime.Filter{
			Table:  models.TableConversations,
			Ops:    []models.ChangeOp{models.ChangeOpInsert},
			Column: column,
			Value:  userID,
		}, t.handleConversationInsert)
		if err != nil {
			t.logger.Warn().Err(err).Str("subscription", convSubID).Msg("failed to open live subscription")
			continue
		}
		t.mu.Lock()
		t.subIDs = append(t.subIDs, convSubID)
		t.mu.Unlock()
	}
	return nil
}

// handleConversationInsert starts tracking a conversation created after the
// initial load. A row can match both participant subscriptions; tracking is
// idempotent.
func (t *UnreadTracker) handleConversationInsert(change *models.Change) {
	if change == nil || change.Conversation == nil {
		return
	}
	t.Track(change.Conversation.ID)
}

// handleInsert bumps the counter for an inbound message in a tracked,
// non-open conversation. Messages sent by the user and messages in the open
// conversation never count; the thread engine marks the latter read.
func (t *UnreadTracker) handleInsert(change *models.Change) {
	if change == nil || change.Message == nil {
		return
	}
	message := change.Message

	t.mu.Lock()
	if message.SenderID == t.userID || !t.tracked[message.ConversationID] || message.ConversationID == t.openID {
		t.mu.Unlock()
		return
	}
	t.counts[message.ConversationID]++
	t.mu.Unlock()
	t.notify()
}

// Open marks a conversation as the open one and zeroes its counter.
func (t *UnreadTracker) Open(conversationID string) {
	t.mu.Lock()
	t.openID = conversationID
	t.counts[conversationID] = 0
	t.mu.Unlock()
	t.notify()
}

// CloseConversation clears the open marker without touching counters.
func (t *UnreadTracker) CloseConversation() {
	t.mu.Lock()
	t.openID = ""
	t.mu.Unlock()
}

// Track adds a conversation to the tracked set, counting from zero.
func (t *UnreadTracker) Track(conversationID string) {
	t.mu.Lock()
	t.tracked[conversationID] = true
	t.mu.Unlock()
}

// Count returns the unread count for a conversation.
func (t *UnreadTracker) Count(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[conversationID]
}

// Total returns the unread count summed over all conversations.
func (t *UnreadTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, count := range t.counts {
		total += count
	}
	return total
}

// Close drops the live subscription and clears all state.
func (t *UnreadTracker) Close() {
	t.mu.Lock()
	subIDs := t.subIDs
	t.subIDs = nil
	t.counts = make(map[string]int)
	t.tracked = make(map[string]bool)
	t.openID = ""
	t.userID = ""
	t.mu.Unlock()

	for _, subID := range subIDs {
		if err := t.feed.Unsubscribe(subID); err != nil {
			t.logger.Debug().Err(err).Str("subscription", subID).Msg("unsubscribe failed")
		}
	}
	t.notify()
}

// OnChange registers a listener notified when counts change; it returns an
// unsubscribe function.
func (t *UnreadTracker) OnChange(listener func()) func() {
	t.mu.Lock()
	t.listenerID++
	id := t.listenerID
	t.listeners[id] = listener
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *UnreadTracker) notify() {
	t.mu.Lock()
	var listeners []func()
	for _, listener := range t.listeners {
		listeners = append(listeners, listener)
	}
	t.mu.Unlock()

	for _, listener := range listeners {
		listener()
	}
}
