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

// Directory maintains the ordered list of the viewing user's conversations
// with counterpart profiles and last-message previews.
//
// Updates to conversation rows can arrive on either participant column, so
// the directory holds one subscription per column. Updates for conversations
// already listed are merged in place; the list never shrinks from a live
// event.
type Directory struct {
	conversations *store.ConversationRepository
	feed          realtime.Feed
	logger        zerolog.Logger

	mu         sync.Mutex
	userID     string
	views      []models.ConversationView
	loaded     bool
	subIDs     []string
	listeners  map[int]func()
	listenerID int
}

// NewDirectory creates a conversation directory backed by the repository and
// the change feed.
func NewDirectory(conversations *store.ConversationRepository, feed realtime.Feed) *Directory {
	return &Directory{
		conversations: conversations,
		feed:          feed,
		logger:        logging.Component("directory"),
		listeners:     make(map[int]func()),
	}
}

// Load fetches the user's conversations ordered by recency and opens the
// two live subscriptions, one per participant column.
func (d *Directory) Load(ctx context.Context, userID string) error {
	views, err := d.conversations.ListForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}

	d.mu.Lock()
	d.userID = userID
	d.views = views
	d.loaded = true
	d.mu.Unlock()
	d.notify()

	for _, column := range []string{"participant_1", "participant_2"} {
		subID := fmt.Sprintf("directory-%s-%s", column, userID)
		err := d.feed.Subscribe(subID, realtime.Filter{
			Table:  models.TableConversations,
			Ops:    []models.ChangeOp{models.ChangeOpInsert, models.ChangeOpUpdate},
			Column: column,
			Value:  userID,
		}, d.handleChange)
		if err != nil {
			d.logger.Warn().Err(err).Str("subscription", subID).Msg("failed to open live subscription")
			continue
		}
		d.mu.Lock()
		d.subIDs = append(d.subIDs, subID)
		d.mu.Unlock()
	}
	return nil
}

// handleChange merges a conversation update into the list. A row can match
// both participant subscriptions; the merge is idempotent so the second
// delivery is harmless.
func (d *Directory) handleChange(change *models.Change) {
	if change == nil || change.Conversation == nil {
		return
	}
	update := *change.Conversation

	d.mu.Lock()
	found := false
	for i := range d.views {
		if d.views[i].ID == update.ID {
			d.views[i].LastMessageText = update.LastMessageText
			d.views[i].LastMessageAt = update.LastMessageAt
			found = true
			break
		}
	}
	if found {
		store.SortConversations(d.views)
	}
	d.mu.Unlock()

	if !found {
		// A conversation created after the initial load; fetch its
		// counterpart profile before listing it.
		d.adoptConversation(update.ID)
		return
	}
	d.notify()
}

// adoptConversation fetches a newly created conversation and inserts it.
func (d *Directory) adoptConversation(conversationID string) {
	d.mu.Lock()
	userID := d.userID
	d.mu.Unlock()

	view, err := d.conversations.GetView(context.Background(), conversationID, userID)
	if err != nil {
		d.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to adopt conversation")
		return
	}

	d.mu.Lock()
	exists := false
	for i := range d.views {
		if d.views[i].ID == view.ID {
			exists = true
			break
		}
	}
	if !exists {
		d.views = append(d.views, *view)
		store.SortConversations(d.views)
	}
	d.mu.Unlock()
	d.notify()
}

// Close drops the live subscriptions and clears the list.
func (d *Directory) Close() {
	d.mu.Lock()
	subIDs := d.subIDs
	d.subIDs = nil
	d.views = nil
	d.loaded = false
	d.userID = ""
	d.mu.Unlock()

	for _, subID := range subIDs {
		if err := d.feed.Unsubscribe(subID); err != nil {
			d.logger.Debug().Err(err).Str("subscription", subID).Msg("unsubscribe failed")
		}
	}
	d.notify()
}

// Conversations returns a copy of the ordered conversation list.
func (d *Directory) Conversations() []models.ConversationView {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ConversationView, len(d.views))
	copy(out, d.views)
	return out
}

// Loaded reports whether the initial fetch has completed.
func (d *Directory) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// ConversationIDs returns the IDs of all listed conversations.
func (d *Directory) ConversationIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.views))
	for i := range d.views {
		ids = append(ids, d.views[i].ID)
	}
	return ids
}

// OnChange registers a listener notified when the list changes; it returns
// an unsubscribe function.
func (d *Directory) OnChange(listener func()) func() {
	d.mu.Lock()
	d.listenerID++
	id := d.listenerID
	d.listeners[id] = listener
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *Directory) notify() {
	d.mu.Lock()
	var listeners []func()
	for _, listener := range d.listeners {
		listeners = append(listeners, listener)
	}
	d.mu.Unlock()

	for _, listener := range listeners {
		listener()
	}
}
