package thread

import (
	"context"
	"sort"

	"messaging-service/internal/models"
)

// MessageSource is the read surface the retriever needs.
type MessageSource interface {
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error)
}

// Retriever resolves reply trees. It loads the conversation's messages in a
// single query and assembles the tree in memory instead of issuing one query
// per node.
type Retriever struct {
	messages MessageSource
}

// NewRetriever constructs a Retriever.
func NewRetriever(messages MessageSource) *Retriever {
	return &Retriever{messages: messages}
}

// Thread returns the root message and its full reply subtree flattened
// depth-first in pre-order. Siblings are ordered by (created_at, id). The
// tree is acyclic by construction: a parent is always strictly older than its
// replies, so the walk terminates.
func (r *Retriever) Thread(ctx context.Context, rootID int) (models.Message, []models.Message, error) {
	root, err := r.messages.GetMessage(ctx, rootID)
	if err != nil {
		return models.Message{}, nil, err
	}

	all, err := r.messages.ListConversationMessages(ctx, root.ConversationID)
	if err != nil {
		return models.Message{}, nil, err
	}

	children := make(map[int][]models.Message)
	for _, m := range all {
		if m.ParentID.Valid {
			parentID := int(m.ParentID.Int64)
			children[parentID] = append(children[parentID], m)
		}
	}
	for parentID := range children {
		siblings := children[parentID]
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].CreatedAt.Equal(siblings[j].CreatedAt) {
				return siblings[i].ID < siblings[j].ID
			}
			return siblings[i].CreatedAt.Before(siblings[j].CreatedAt)
		})
	}

	var flattened []models.Message
	var walk func(id int)
	walk = func(id int) {
		for _, reply := range children[id] {
			flattened = append(flattened, reply)
			walk(reply.ID)
		}
	}
	walk(root.ID)

	return root, flattened, nil
}
