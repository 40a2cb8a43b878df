package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/realtime"
)

// Conversation repository errors.
var (
	ErrConversationNotFound      = errors.New("conversation not found")
	ErrConversationAlreadyExists = errors.New("conversation between these participants already exists")
)

// ConversationRepository handles conversation persistence. Updates to the
// denormalized last-message cache are echoed on the realtime feed.
type ConversationRepository struct {
	db   *DB
	feed realtime.Feed
}

// NewConversationRepository creates a new ConversationRepository. The feed
// may be nil, in which case no change notifications are published.
func NewConversationRepository(db *DB, feed realtime.Feed) *ConversationRepository {
	return &ConversationRepository{db: db, feed: feed}
}

// Create adds a new conversation. At most one conversation may exist per
// unordered participant pair; violations return ErrConversationAlreadyExists.
func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if err := conversation.Validate(); err != nil {
		return fmt.Errorf("invalid conversation: %w", err)
	}
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_1, participant_2, pair_key, last_message_text, last_message_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))
	`,
		conversation.ID,
		conversation.Participant1,
		conversation.Participant2,
		pairKey(conversation.Participant1, conversation.Participant2),
		conversation.LastMessageText,
		formatNullableTime(conversation.LastMessageAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrConversationAlreadyExists
		}
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	if r.feed != nil {
		row := *conversation
		r.feed.Publish(ctx, &models.Change{
			Op:           models.ChangeOpInsert,
			Table:        models.TableConversations,
			Timestamp:    time.Now().UTC(),
			Conversation: &row,
		})
	}
	return nil
}

// Get retrieves a conversation by ID.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, participant_1, participant_2, last_message_text, last_message_at
		FROM conversations
		WHERE id = ?
	`, id)
	return scanConversation(row.Scan)
}

// GetByParticipants retrieves the conversation for an unordered pair.
func (r *ConversationRepository) GetByParticipants(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, participant_1, participant_2, last_message_text, last_message_at
		FROM conversations
		WHERE pair_key = ?
	`, pairKey(userA, userB))
	return scanConversation(row.Scan)
}

// GetView retrieves a single conversation joined with the profile of the
// participant opposite userID.
func (r *ConversationRepository) GetView(ctx context.Context, id, userID string) (*models.ConversationView, error) {
	conversation, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrConversationNotFound
	}

	profiles := NewProfileRepository(r.db)
	counterpart, err := profiles.Get(ctx, conversation.Counterpart(userID))
	if err != nil {
		return nil, err
	}
	return &models.ConversationView{
		Conversation: *conversation,
		Counterpart:  *counterpart,
	}, nil
}

// ListForUser returns every conversation the user participates in, each
// joined with the counterpart's profile, ordered by last-message time
// descending with never-messaged conversations last.
//
// The participant columns are filtered with two separate equality queries
// and merged here; no OR-across-columns filter is assumed available.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.ConversationView, error) {
	asP1, err := r.listByColumn(ctx, "participant_1", userID)
	if err != nil {
		return nil, err
	}
	asP2, err := r.listByColumn(ctx, "participant_2", userID)
	if err != nil {
		return nil, err
	}

	views := append(asP1, asP2...)
	SortConversations(views)
	return views, nil
}

// listByColumn fetches conversations where the named participant column
// equals userID, embedding the opposite participant's profile.
func (r *ConversationRepository) listByColumn(ctx context.Context, column, userID string) ([]models.ConversationView, error) {
	other := "participant_2"
	if column == "participant_2" {
		other = "participant_1"
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.participant_1, c.participant_2, c.last_message_text, c.last_message_at,
		       p.id, p.handle, p.full_name, p.avatar_url, p.bio, p.city, p.contributor, p.created_at
		FROM conversations c
		JOIN profiles p ON p.id = c.%s
		WHERE c.%s = ?
	`, other, column)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var views []models.ConversationView
	for rows.Next() {
		var view models.ConversationView
		var lastText sql.NullString
		var lastAt sql.NullString
		var contributor int
		var profileCreated string

		if err := rows.Scan(
			&view.ID,
			&view.Participant1,
			&view.Participant2,
			&lastText,
			&lastAt,
			&view.Counterpart.ID,
			&view.Counterpart.Handle,
			&view.Counterpart.FullName,
			&view.Counterpart.AvatarURL,
			&view.Counterpart.Bio,
			&view.Counterpart.City,
			&contributor,
			&profileCreated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		view.LastMessageText = lastText.String
		view.LastMessageAt = parseNullableTime(lastAt)
		view.Counterpart.Contributor = contributor != 0
		if parsed, err := time.Parse(time.RFC3339Nano, profileCreated); err == nil {
			view.Counterpart.CreatedAt = parsed
		}

		views = append(views, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation query error: %w", err)
	}
	return views, nil
}

// UpdateLastMessage refreshes the denormalized last-message cache and
// publishes the updated row on the feed.
func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_text = ?, last_message_at = ?
		WHERE id = ?
	`, text, at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrConversationNotFound
	}

	if r.feed != nil {
		conversation, err := r.Get(ctx, id)
		if err == nil {
			r.feed.Publish(ctx, &models.Change{
				Op:           models.ChangeOpUpdate,
				Table:        models.TableConversations,
				Timestamp:    time.Now().UTC(),
				Conversation: conversation,
			})
		}
	}
	return nil
}

// SortConversations orders views by last-message time descending; views with
// no last message sort after all dated ones, then by ID for determinism.
func SortConversations(views []models.ConversationView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].LastMessageAt, views[j].LastMessageAt
		switch {
		case a == nil && b == nil:
			return views[i].ID < views[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return views[i].ID < views[j].ID
		default:
			return a.After(*b)
		}
	})
}

func scanConversation(scan func(dest ...any) error) (*models.Conversation, error) {
	var conversation models.Conversation
	var lastText sql.NullString
	var lastAt sql.NullString

	err := scan(
		&conversation.ID,
		&conversation.Participant1,
		&conversation.Participant2,
		&lastText,
		&lastAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	conversation.LastMessageText = lastText.String
	conversation.LastMessageAt = parseNullableTime(lastAt)
	return &conversation, nil
}

// pairKey builds the canonical unordered-pair key used for uniqueness.
func pairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func formatNullableTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
