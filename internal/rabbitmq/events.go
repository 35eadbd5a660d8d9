package rabbitmq

import (
	"context"

	"messaging-service/internal/models"
)

// EventSubscriber forwards committed store events to the message broker so
// other services (push, email) can subscribe without touching the store.
type EventSubscriber struct {
	publisher Publisher
}

// NewEventSubscriber builds an EventSubscriber over a publisher.
func NewEventSubscriber(publisher Publisher) *EventSubscriber {
	return &EventSubscriber{publisher: publisher}
}

type messageCreatedEvent struct {
	Message         models.Message `json:"message"`
	NotificationIDs []int          `json:"notification_ids"`
}

type userDeletedEvent struct {
	UserID int `json:"user_id"`
}

// MessageCreated publishes a message.created event.
func (s *EventSubscriber) MessageCreated(ctx context.Context, msg models.Message, notifications []models.Notification) {
	ids := make([]int, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ID)
	}
	_ = s.publisher.Publish(ctx, KeyMessageCreated, messageCreatedEvent{Message: msg, NotificationIDs: ids})
}

// MessageEdited publishes a message.edited event.
func (s *EventSubscriber) MessageEdited(ctx context.Context, msg models.Message) {
	_ = s.publisher.Publish(ctx, KeyMessageEdited, msg)
}

// UserDeleted publishes a user.deleted event.
func (s *EventSubscriber) UserDeleted(ctx context.Context, userID int) {
	_ = s.publisher.Publish(ctx, KeyUserDeleted, userDeletedEvent{UserID: userID})
}
