package models

import "time"

// Conversation groups a set of participants and their messages.
// UpdatedAt moves forward whenever a message lands in the conversation.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
