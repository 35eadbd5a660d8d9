package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/fanout"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// Validation failures surfaced by the store. The store enforces data
// integrity even when the access guard has already vetted the request.
var (
	ErrEmptyBody        = errors.New("message body empty after trimming")
	ErrBodyTooLong      = errors.New("message body exceeds maximum length")
	ErrParentMismatch   = errors.New("parent message belongs to another conversation")
	ErrParentNotEarlier = errors.New("parent message must be created strictly earlier")
	ErrReceiverNotIn    = errors.New("receiver is not a conversation participant")
	ErrNotSender        = errors.New("only the original sender may edit a message")
)

// CreateMessageParams carries a message-creation request. ReceiverID nil
// means a group message: every other participant is a recipient.
type CreateMessageParams struct {
	ConversationID int
	SenderID       int
	ReceiverID     *int
	Body           string
	ParentID       *int
}

// MessageStore is the transactional mutation engine over conversations,
// messages, history and notifications. Every method is a single transaction;
// a failure rolls the whole mutation back.
type MessageStore interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error)
	EditMessage(ctx context.Context, messageID, editorID int, newBody string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int) error
	DeleteConversation(ctx context.Context, conversationID int) error
	DeleteUser(ctx context.Context, userID int) error
	MarkMessageRead(ctx context.Context, messageID int) error
	MarkNotificationRead(ctx context.Context, notificationID int) error
}

// SQLMessageStore is the sqlx implementation of MessageStore.
type SQLMessageStore struct {
	db     *sqlx.DB
	fanout *fanout.Fanout
}

// NewMessageStore constructs a SQLMessageStore.
func NewMessageStore(db *sqlx.DB, fo *fanout.Fanout) *SQLMessageStore {
	return &SQLMessageStore{db: db, fanout: fo}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, body, read, edited, parent_id, created_at`

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if len(body) > models.MaxMessageBodyLength {
		return "", ErrBodyTooLong
	}
	return body, nil
}

// recipientsFor derives the notification recipient set: the designated
// receiver for a point-to-point message, every other participant for a group
// message. The receiver must be in the conversation.
func recipientsFor(participants []int, senderID int, receiverID *int) ([]int, error) {
	if receiverID != nil {
		for _, id := range participants {
			if id == *receiverID {
				return []int{*receiverID}, nil
			}
		}
		return nil, ErrReceiverNotIn
	}
	recipients := make([]int, 0, len(participants))
	for _, id := range participants {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}
	return recipients, nil
}

// replyOrderedAfter reports whether the reply was created strictly later than
// its parent, the invariant that keeps the reply tree acyclic.
func replyOrderedAfter(parent, reply models.Message) bool {
	return parent.CreatedAt.Before(reply.CreatedAt)
}

type editDecision int

const (
	editApply editDecision = iota
	editNoop
)

// decideEdit classifies an edit against the current row: only the original
// sender may edit, and an unchanged body is an idempotent no-op that records
// no history and flips no flag.
func decideEdit(current models.Message, editorID int, newBody string) (editDecision, error) {
	if current.SenderID != editorID {
		return 0, ErrNotSender
	}
	if current.Body == newBody {
		return editNoop, nil
	}
	return editApply, nil
}

// CreateMessage persists a message and its derived notifications in one
// transaction, bumping the conversation's last-activity timestamp. The
// notification fan-out happens inside the same transaction: message and
// notifications either both commit or neither does.
func (s *SQLMessageStore) CreateMessage(ctx context.Context, params CreateMessageParams) (msg models.Message, err error) {
	body, err := validateBody(params.Body)
	if err != nil {
		return models.Message{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	participants, err := lockParticipants(ctx, tx, params.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	recipients, err := recipientsFor(participants, params.SenderID, params.ReceiverID)
	if err != nil {
		return models.Message{}, err
	}

	var parent models.Message
	if params.ParentID != nil {
		if err = tx.GetContext(ctx, &parent, `SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR SHARE`, *params.ParentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = repositories.ErrMessageNotFound
			}
			return models.Message{}, err
		}
		if parent.ConversationID != params.ConversationID {
			err = ErrParentMismatch
			return models.Message{}, err
		}
	}

	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, receiver_id, body, parent_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		params.ConversationID, params.SenderID, nullableInt(params.ReceiverID), body, nullableInt(params.ParentID)).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if params.ParentID != nil && !replyOrderedAfter(parent, msg) {
		err = ErrParentNotEarlier
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at=$1 WHERE id=$2`,
		msg.CreatedAt, params.ConversationID); err != nil {
		return models.Message{}, err
	}

	notifications, err := s.fanout.CreateNotifications(ctx, tx, msg, recipients)
	if err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}

	s.fanout.MessageCreated(ctx, msg, notifications)
	return msg, nil
}

// lockParticipants locks the conversation row for the duration of the
// transaction and returns its membership. Missing conversation maps to the
// repository sentinel.
func lockParticipants(ctx context.Context, tx *sqlx.Tx, conversationID int) ([]int, error) {
	var id int
	if err := tx.GetContext(ctx, &id, `SELECT id FROM conversations WHERE id=$1 FOR UPDATE`, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrConversationNotFound
		}
		return nil, err
	}
	var participants []int
	if err := tx.SelectContext(ctx, &participants, `SELECT user_id FROM conversation_participants
        WHERE conversation_id=$1 ORDER BY user_id`, conversationID); err != nil {
		return nil, err
	}
	return participants, nil
}

// EditMessage serializes the read-modify-write per message with a row lock,
// snapshots the pre-edit body into history and flips the edited flag, all in
// one transaction. Editing with an unchanged body is a no-op: no history row,
// no flag change.
func (s *SQLMessageStore) EditMessage(ctx context.Context, messageID, editorID int, newBody string) (msg models.Message, err error) {
	body, err := validateBody(newBody)
	if err != nil {
		return models.Message{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repositories.ErrMessageNotFound
		}
		return models.Message{}, err
	}
	var decision editDecision
	if decision, err = decideEdit(msg, editorID, body); err != nil {
		return models.Message{}, err
	}
	if decision == editNoop {
		err = tx.Commit()
		return msg, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_history (message_id, old_body, edited_by)
        VALUES ($1, $2, $3)`, messageID, msg.Body, editorID); err != nil {
		return models.Message{}, err
	}
	if err = tx.GetContext(ctx, &msg, `UPDATE messages SET body=$1, edited=TRUE WHERE id=$2
        RETURNING `+messageColumns, body, messageID); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}

	s.fanout.MessageEdited(ctx, msg)
	return msg, nil
}

// DeleteMessage removes a message; history rows, notifications and the whole
// reply subtree go with it through the cascading foreign keys.
func (s *SQLMessageStore) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	return requireAffected(res, repositories.ErrMessageNotFound)
}

// DeleteConversation removes a conversation and everything owned by it.
func (s *SQLMessageStore) DeleteConversation(ctx context.Context, conversationID int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID)
	if err != nil {
		return err
	}
	return requireAffected(res, repositories.ErrConversationNotFound)
}

// DeleteUser runs the wide account cascade as one transaction, ordered
// child-before-parent so a retry after a partial failure converges: messages
// the user sent or received (taking their history, notifications and reply
// subtrees along), notifications targeting the user, history the user wrote,
// memberships, then the account row.
func (s *SQLMessageStore) DeleteUser(ctx context.Context, userID int) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	steps := []string{
		`DELETE FROM notifications WHERE user_id=$1`,
		`DELETE FROM message_history WHERE edited_by=$1`,
		`DELETE FROM messages WHERE sender_id=$1 OR receiver_id=$1`,
		`DELETE FROM conversation_participants WHERE user_id=$1`,
	}
	for _, q := range steps {
		if _, err = tx.ExecContext(ctx, q, userID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	if err = requireAffected(res, repositories.ErrUserNotFound); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	s.fanout.UserDeleted(ctx, userID)
	return nil
}

// MarkMessageRead flips the message read flag.
func (s *SQLMessageStore) MarkMessageRead(ctx context.Context, messageID int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET read=TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	return requireAffected(res, repositories.ErrMessageNotFound)
}

// MarkNotificationRead flips the notification read flag.
func (s *SQLMessageStore) MarkNotificationRead(ctx context.Context, notificationID int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1`, notificationID)
	if err != nil {
		return err
	}
	return requireAffected(res, repositories.ErrNotificationNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
