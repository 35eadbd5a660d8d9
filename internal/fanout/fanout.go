package fanout

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Subscriber receives committed write events. Subscribers run after the
// transaction commits and must not influence its outcome; delivery channels
// (websocket push, AMQP) hang off this boundary without the store knowing.
type Subscriber interface {
	MessageCreated(ctx context.Context, msg models.Message, notifications []models.Notification)
	MessageEdited(ctx context.Context, msg models.Message)
	UserDeleted(ctx context.Context, userID int)
}

// Fanout derives per-recipient notifications from a message write and fans
// committed events out to subscribers. Notification rows are written inside
// the creating transaction so a visible message without its notifications is
// never observable.
type Fanout struct {
	subscribers []Subscriber
}

// New builds a Fanout with the given subscribers.
func New(subscribers ...Subscriber) *Fanout {
	return &Fanout{subscribers: subscribers}
}

// Subscribe adds a subscriber. Not safe for concurrent use with dispatch;
// wire subscribers at startup.
func (f *Fanout) Subscribe(s Subscriber) {
	f.subscribers = append(f.subscribers, s)
}

// CreateNotifications inserts exactly one notification per recipient within
// the caller's transaction. The unique (user_id, message_id) constraint makes
// a retried transaction converge instead of duplicating.
func (f *Fanout) CreateNotifications(ctx context.Context, tx *sqlx.Tx, msg models.Message, recipientIDs []int) ([]models.Notification, error) {
	notifications := make([]models.Notification, 0, len(recipientIDs))
	for _, userID := range recipientIDs {
		var n models.Notification
		err := tx.QueryRowxContext(ctx, `INSERT INTO notifications (user_id, message_id)
            VALUES ($1, $2)
            ON CONFLICT (user_id, message_id) DO UPDATE SET user_id = EXCLUDED.user_id
            RETURNING id, user_id, message_id, read, created_at`, userID, msg.ID).
			StructScan(&n)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	observability.AddNotificationsFanned(len(notifications))
	return notifications, nil
}

// MessageCreated dispatches a committed creation to all subscribers.
func (f *Fanout) MessageCreated(ctx context.Context, msg models.Message, notifications []models.Notification) {
	for _, s := range f.subscribers {
		s.MessageCreated(ctx, msg, notifications)
	}
}

// MessageEdited dispatches a committed edit. Edits never create
// notifications; subscribers only get the event.
func (f *Fanout) MessageEdited(ctx context.Context, msg models.Message) {
	for _, s := range f.subscribers {
		s.MessageEdited(ctx, msg)
	}
}

// UserDeleted dispatches a committed account cascade.
func (f *Fanout) UserDeleted(ctx context.Context, userID int) {
	log.Printf("user cascade committed user_id=%d", userID)
	for _, s := range f.subscribers {
		s.UserDeleted(ctx, userID)
	}
}
