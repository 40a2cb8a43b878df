package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
)

// Message repository errors.
var (
	ErrMessageNotFound = errors.New("message not found")
)

// MessageRepository handles message persistence. Inserted rows are echoed on
// the realtime feed so live thread views observe them.
type MessageRepository struct {
	db   *DB
	feed realtime.Feed
}

// NewMessageRepository creates a new MessageRepository. The feed may be nil,
// in which case no change notifications are published.
func NewMessageRepository(db *DB, feed realtime.Feed) *MessageRepository {
	return &MessageRepository{db: db, feed: feed}
}

// Insert persists a new message and publishes it on the feed.
func (r *MessageRepository) Insert(ctx context.Context, message *models.Message) error {
	if err := message.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.Body,
		boolToInt(message.Read),
		message.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if r.feed != nil {
		published := *message
		r.feed.Publish(ctx, &models.Change{
			Op:        models.ChangeOpInsert,
			Table:     models.TableMessages,
			Timestamp: time.Now().UTC(),
			Message:   &published,
		})
	}
	return nil
}

// ListByConversation returns every message in the conversation ordered by
// creation time ascending, ties broken by ID.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, body, read, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message query error: %w", err)
	}
	return messages, nil
}

// MarkRead flips a single message's read flag to true. Already-read messages
// are left untouched; the flag never reverses.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read = 1 WHERE id = ? AND read = 0
	`, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	return nil
}

// MarkConversationRead marks every unread message in the conversation that
// was not sent by readerID. Returns the number of rows updated.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET read = 1
		WHERE conversation_id = ? AND sender_id != ? AND read = 0
	`, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}
	return affected, nil
}

// UnreadCounts returns, per conversation, the number of unread messages sent
// to userID across the listed conversations. Conversations with no unread
// messages are absent from the map.
func (r *MessageRepository) UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	placeholders := make([]string, 0, len(conversationIDs))
	args := make([]any, 0, len(conversationIDs)+1)
	args = append(args, userID)
	for _, id := range conversationIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT conversation_id, COUNT(*)
		FROM messages
		WHERE read = 0 AND sender_id != ? AND conversation_id IN (%s)
		GROUP BY conversation_id
	`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var conversationID string
		var count int
		if err := rows.Scan(&conversationID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[conversationID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unread count query error: %w", err)
	}
	return counts, nil
}

func scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	var message models.Message
	var read int
	var createdAt string

	err := scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Body,
		&read,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	message.Read = read != 0

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	message.CreatedAt = parsed

	return &message, nil
}
