// Package realtime provides the filtered row-change feed consumed by the
// messaging components.
//
// Delivery is at-least-once from the subscriber's point of view: a row may be
// observed both by an initial fetch and by the feed, or by overlapping
// subscriptions. Consumers are expected to de-duplicate by row ID. Ordering is
// only guaranteed per subscription, never across subscriptions.
package realtime

import (
	"context"
	"sync"

	"github.com/tablee/tablee/internal/models"
)

// Handler is a callback invoked for each change matching a subscription.
type Handler func(change *models.Change)

// Filter defines criteria for matching changes. The predicate surface is
// deliberately narrow: one table, an optional op set, and a single
// column-equality check. There is no OR across columns; callers needing one
// open two subscriptions.
type Filter struct {
	// Table restricts matches to a single table (empty = all tables).
	Table string

	// Ops restricts matches to the listed operations (nil = all ops).
	Ops []models.ChangeOp

	// Column names the column for the equality predicate (empty = no
	// column check).
	Column string

	// Value is the value Column must equal.
	Value string
}

// Matches returns true if the change satisfies the filter.
func (f *Filter) Matches(change *models.Change) bool {
	if change == nil {
		return false
	}

	if f.Table != "" && change.Table != f.Table {
		return false
	}

	if len(f.Ops) > 0 {
		matched := false
		for _, op := range f.Ops {
			if change.Op == op {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.Column != "" && change.Column(f.Column) != f.Value {
		return false
	}

	return true
}

// subscription represents an active feed subscription.
type subscription struct {
	id      string
	filter  Filter
	handler Handler
}

// Feed is the interface consumed by the messaging components.
type Feed interface {
	// Publish delivers a change to all matching subscribers.
	Publish(ctx context.Context, change *models.Change)

	// Subscribe registers a handler for changes matching the filter.
	// The id must be unique among active subscriptions.
	Subscribe(id string, filter Filter, handler Handler) error

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscriptions.
	SubscriberCount() int
}

// Bus implements Feed with in-process pub/sub.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewBus creates a new in-process change feed.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string]*subscription),
	}
}

// Publish delivers a change to all matching subscribers synchronously.
func (b *Bus) Publish(ctx context.Context, change *models.Change) {
	if change == nil {
		return
	}

	// Collect matching handlers under read lock
	b.mu.RLock()
	var handlers []Handler
	for _, sub := range b.subscriptions {
		if sub.filter.Matches(change) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, handler := range handlers {
		handler(change)
	}
}

// PublishAsync delivers a change with each handler in its own goroutine.
func (b *Bus) PublishAsync(ctx context.Context, change *models.Change) {
	if change == nil {
		return
	}

	b.mu.RLock()
	for _, sub := range b.subscriptions {
		if sub.filter.Matches(change) {
			go sub.handler(change)
		}
	}
	b.mu.RUnlock()
}

// Subscribe registers a handler for changes matching the filter.
func (b *Bus) Subscribe(id string, filter Filter, handler Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}

	b.subscriptions[id] = &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	}

	return nil
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(b.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close removes all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string]*subscription)
}

// Errors for feed operations.
var (
	ErrInvalidSubscriptionID = &FeedError{Message: "subscription ID is required"}
	ErrNilHandler            = &FeedError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &FeedError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &FeedError{Message: "subscription not found"}
)

// FeedError represents an error from feed operations.
type FeedError struct {
	Message string
}

func (e *FeedError) Error() string {
	return e.Message
}
