package models

import "time"

// Notification is created exactly once per (recipient, message) pair when a
// message is persisted. Edits never produce notifications.
type Notification struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	MessageID int       `db:"message_id" json:"message_id"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationEvent is pushed over websocket connections and AMQP.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
	Message      *Message      `json:"message,omitempty"`
}
