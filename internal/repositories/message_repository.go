package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository covers the read paths over messages and their history.
// All mutations go through the transactional message store.
type MessageRepository interface {
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	UnreadForUser(ctx context.Context, userID int) ([]models.UnreadMessage, error)
	HistoryForMessage(ctx context.Context, messageID int) ([]models.MessageHistory, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, body, read, edited, parent_id, created_at`

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListConversationMessages returns a conversation timeline in the stable
// (created_at, id) total order.
func (r *MessageRepo) ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`, conversationID)
	return msgs, err
}

// UnreadForUser returns unread messages across the user's conversations as a
// narrow list-view projection to bound payload size.
func (r *MessageRepo) UnreadForUser(ctx context.Context, userID int) ([]models.UnreadMessage, error) {
	var msgs []models.UnreadMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT m.id, u.username AS sender_username, m.body, m.created_at
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id
        WHERE cp.user_id=$1 AND m.read = FALSE AND m.sender_id <> $1
          AND (m.receiver_id IS NULL OR m.receiver_id = $1)
        ORDER BY m.created_at DESC, m.id DESC`, userID)
	return msgs, err
}

// HistoryForMessage returns edit snapshots newest-first.
func (r *MessageRepo) HistoryForMessage(ctx context.Context, messageID int) ([]models.MessageHistory, error) {
	var rows []models.MessageHistory
	err := r.db.SelectContext(ctx, &rows, `SELECT id, message_id, old_body, edited_at, edited_by
        FROM message_history WHERE message_id=$1 ORDER BY edited_at DESC, id DESC`, messageID)
	return rows, err
}
