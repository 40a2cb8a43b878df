// Package messaging implements the direct-messaging core: the conversation
// directory, unread tracking, the per-conversation thread engine, and the
// composer.
package messaging

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tablee/tablee/internal/logging"
	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
)

// ThreadState is the thread engine's lifecycle state for the current
// selection.
type ThreadState string

const (
	ThreadIdle    ThreadState = "idle"
	ThreadLoading ThreadState = "loading"
	ThreadReady   ThreadState = "ready"
)

// MessageReader is the slice of the message repository the engine needs.
type MessageReader interface {
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

// ThreadEngine owns the in-memory message buffer and de-duplication set for
// the currently selected conversation. Both are discarded and rebuilt on
// every selection; no other component writes to them.
//
// Live inserts and the initial fetch may both observe the same row; the
// seen-set makes rendering idempotent per message ID. The buffer is re-sorted
// on every live append so creation-time order holds even when the feed
// delivers out of order.
type ThreadEngine struct {
	messages MessageReader
	feed     realtime.Feed
	logger   zerolog.Logger

	mu             sync.Mutex
	state          ThreadState
	userID         string
	conversationID string
	buffer         []models.Message
	seen           map[string]struct{}
	// generation invalidates in-flight loads and live handlers from a
	// previous selection; every switch or close bumps it.
	generation int
	subID      string
	listeners  map[int]func()
	listenerID int
}

// NewThreadEngine creates a thread engine for the given viewing user.
func NewThreadEngine(messages MessageReader, feed realtime.Feed, userID string) *ThreadEngine {
	return &ThreadEngine{
		messages:  messages,
		feed:      feed,
		logger:    logging.Component("thread").With().Str("user_id", userID).Logger(),
		state:     ThreadIdle,
		userID:    userID,
		seen:      make(map[string]struct{}),
		listeners: make(map[int]func()),
	}
}

// Select switches the engine to a conversation: the previous buffer,
// de-duplication set, and subscription are discarded, history is fetched in
// ascending creation order, unread counterpart messages are marked read
// best-effort, and a live subscription scoped to the conversation is opened.
//
// Re-selecting the current conversation performs the same full reset.
func (e *ThreadEngine) Select(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	e.generation++
	generation := e.generation
	e.teardownLocked()
	e.conversationID = conversationID
	e.buffer = nil
	e.seen = make(map[string]struct{})
	e.state = ThreadLoading
	e.mu.Unlock()
	e.notify()

	history, err := e.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		e.mu.Lock()
		if generation == e.generation {
			// Drop the selection too, so the failed conversation is not
			// rendered as an empty thread.
			e.conversationID = ""
			e.state = ThreadIdle
		}
		e.mu.Unlock()
		e.notify()
		return fmt.Errorf("failed to load thread: %w", err)
	}

	e.mu.Lock()
	if generation != e.generation {
		// A newer selection superseded this load; drop its results.
		e.mu.Unlock()
		return nil
	}
	e.buffer = history
	for _, message := range history {
		e.seen[message.ID] = struct{}{}
	}
	e.state = ThreadReady
	e.mu.Unlock()
	e.notify()

	// Read receipts are best-effort: the thread stays usable if they fail.
	if _, err := e.messages.MarkConversationRead(ctx, conversationID, e.userID); err != nil {
		e.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("op", "mark_read_bulk").
			Msg("failed to mark conversation read")
	}

	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		return nil
	}
	subID := fmt.Sprintf("thread-%s-%d", conversationID, generation)
	e.subID = subID
	e.mu.Unlock()

	err = e.feed.Subscribe(subID, realtime.Filter{
		Table:  models.TableMessages,
		Ops:    []models.ChangeOp{models.ChangeOpInsert},
		Column: "conversation_id",
		Value:  conversationID,
	}, func(change *models.Change) {
		e.handleInsert(generation, change)
	})
	if err != nil {
		// Live updates degrade silently; history remains rendered.
		e.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Msg("failed to open live subscription")
		e.mu.Lock()
		if e.subID == subID {
			e.subID = ""
		}
		e.mu.Unlock()
		return nil
	}

	// A switch or close that ran while the subscription registered has
	// already torn down subID as a no-op; drop the registration now.
	e.mu.Lock()
	stale := generation != e.generation
	if stale && e.subID == subID {
		e.subID = ""
	}
	e.mu.Unlock()
	if stale {
		if err := e.feed.Unsubscribe(subID); err != nil {
			e.logger.Debug().Err(err).Str("subscription", subID).Msg("unsubscribe failed")
		}
	}
	return nil
}

// handleInsert merges a live insert into the buffer, dropping duplicates by
// message ID and keeping creation-time order.
func (e *ThreadEngine) handleInsert(generation int, change *models.Change) {
	if change == nil || change.Message == nil {
		return
	}
	message := *change.Message

	e.mu.Lock()
	if generation != e.generation || message.ConversationID != e.conversationID {
		e.mu.Unlock()
		return
	}
	if _, duplicate := e.seen[message.ID]; duplicate {
		e.mu.Unlock()
		return
	}
	e.seen[message.ID] = struct{}{}
	e.buffer = append(e.buffer, message)
	sortMessages(e.buffer)
	inbound := message.SenderID != e.userID
	e.mu.Unlock()
	e.notify()

	if inbound {
		// The conversation is open, so the message counts as read.
		if err := e.messages.MarkRead(context.Background(), message.ID); err != nil {
			e.logger.Warn().Err(err).
				Str("message_id", message.ID).
				Str("op", "mark_read_single").
				Msg("failed to mark message read")
		}
	}
}

// Close tears down the live subscription and resets the engine to idle.
func (e *ThreadEngine) Close() {
	e.mu.Lock()
	e.generation++
	e.teardownLocked()
	e.conversationID = ""
	e.buffer = nil
	e.seen = make(map[string]struct{})
	e.state = ThreadIdle
	e.mu.Unlock()
	e.notify()
}

// teardownLocked unsubscribes the live feed. Callers hold e.mu.
func (e *ThreadEngine) teardownLocked() {
	if e.subID != "" {
		if err := e.feed.Unsubscribe(e.subID); err != nil {
			e.logger.Debug().Err(err).Str("subscription", e.subID).Msg("unsubscribe failed")
		}
		e.subID = ""
	}
}

// State returns the engine's lifecycle state.
func (e *ThreadEngine) State() ThreadState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ConversationID returns the selected conversation, or "".
func (e *ThreadEngine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationID
}

// Messages returns a copy of the ordered, display-ready buffer.
func (e *ThreadEngine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Message, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// OnChange registers a listener notified whenever the buffer or state
// changes; it returns an unsubscribe function.
func (e *ThreadEngine) OnChange(listener func()) func() {
	e.mu.Lock()
	e.listenerID++
	id := e.listenerID
	e.listeners[id] = listener
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *ThreadEngine) notify() {
	e.mu.Lock()
	var listeners []func()
	for _, listener := range e.listeners {
		listeners = append(listeners, listener)
	}
	e.mu.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

// sortMessages orders by creation time ascending, ties broken by ID.
func sortMessages(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(&messages[j])
	})
}
