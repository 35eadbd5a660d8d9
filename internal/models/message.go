package models

import (
	"database/sql"
	"time"
)

// MaxMessageBodyLength bounds a message body after trimming.
const MaxMessageBodyLength = 5000

// Message is a single message inside a conversation. ReceiverID is set for
// point-to-point messages and NULL for group-wide ones. ParentID links a reply
// to an earlier message in the same conversation.
type Message struct {
	ID             int           `db:"id" json:"id"`
	ConversationID int           `db:"conversation_id" json:"conversation_id"`
	SenderID       int           `db:"sender_id" json:"sender_id"`
	ReceiverID     sql.NullInt64 `db:"receiver_id" json:"receiver_id,omitempty"`
	Body           string        `db:"body" json:"body"`
	Read           bool          `db:"read" json:"read"`
	Edited         bool          `db:"edited" json:"edited"`
	ParentID       sql.NullInt64 `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// MessageHistory is an append-only snapshot of a message body taken just
// before an edit. EditedBy goes NULL if the editor account is later deleted.
type MessageHistory struct {
	ID        int           `db:"id" json:"id"`
	MessageID int           `db:"message_id" json:"message_id"`
	OldBody   string        `db:"old_body" json:"old_body"`
	EditedAt  time.Time     `db:"edited_at" json:"edited_at"`
	EditedBy  sql.NullInt64 `db:"edited_by" json:"edited_by,omitempty"`
}

// UnreadMessage is the narrow projection served by the unread list view.
type UnreadMessage struct {
	ID             int       `db:"id" json:"id"`
	SenderUsername string    `db:"sender_username" json:"sender_username"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
