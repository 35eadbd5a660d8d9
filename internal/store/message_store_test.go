package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestValidateBody(t *testing.T) {
	body, err := validateBody("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", body)

	_, err = validateBody("   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	longest := strings.Repeat("a", models.MaxMessageBodyLength)
	body, err = validateBody(longest)
	require.NoError(t, err)
	assert.Equal(t, longest, body)

	_, err = validateBody(longest + "a")
	assert.ErrorIs(t, err, ErrBodyTooLong)
}

func TestRecipientsForGroupMessage(t *testing.T) {
	recipients, err := recipientsFor([]int{1, 2, 3}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, recipients)
}

func TestRecipientsForSoloConversation(t *testing.T) {
	recipients, err := recipientsFor([]int{1}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func TestRecipientsForPointToPoint(t *testing.T) {
	receiver := 3
	recipients, err := recipientsFor([]int{1, 2, 3}, 1, &receiver)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, recipients, "only the designated receiver is notified")
}

func TestRecipientsForReceiverOutsideConversation(t *testing.T) {
	receiver := 9
	_, err := recipientsFor([]int{1, 2, 3}, 1, &receiver)
	assert.ErrorIs(t, err, ErrReceiverNotIn)
}

func TestReplyOrderedAfter(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	parent := models.Message{ID: 1, CreatedAt: base}

	assert.True(t, replyOrderedAfter(parent, models.Message{ID: 2, CreatedAt: base.Add(time.Millisecond)}))
	assert.False(t, replyOrderedAfter(parent, models.Message{ID: 2, CreatedAt: base}), "equal timestamps are not strictly later")
	assert.False(t, replyOrderedAfter(parent, models.Message{ID: 2, CreatedAt: base.Add(-time.Second)}))
}

func TestDecideEditRejectsNonSender(t *testing.T) {
	current := models.Message{ID: 42, SenderID: 7, Body: "original"}

	_, err := decideEdit(current, 8, "changed")
	assert.ErrorIs(t, err, ErrNotSender)
}

func TestDecideEditUnchangedBodyIsNoop(t *testing.T) {
	current := models.Message{ID: 42, SenderID: 7, Body: "original"}

	decision, err := decideEdit(current, 7, "original")
	require.NoError(t, err)
	assert.Equal(t, editNoop, decision)
}

func TestDecideEditChangedBodyApplies(t *testing.T) {
	current := models.Message{ID: 42, SenderID: 7, Body: "original"}

	decision, err := decideEdit(current, 7, "revised")
	require.NoError(t, err)
	assert.Equal(t, editApply, decision)
}
