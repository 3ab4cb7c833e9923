package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/bookingbot/core/conversation"
)

func TestAdminOnly(t *testing.T) {
	secret := func(context.Context, conversation.Update) []conversation.Message {
		return []conversation.Message{conversation.Reply("stats")}
	}
	reject := func(context.Context, conversation.Update) []conversation.Message {
		return []conversation.Message{conversation.Reply("denied")}
	}

	h := AdminOnly(AdminOptions{AdminID: 42, OnReject: reject}, secret)
	assert.Equal(t, "stats", h(context.Background(), conversation.Update{UserID: 42})[0].Text)
	assert.Equal(t, "denied", h(context.Background(), conversation.Update{UserID: 7})[0].Text)

	closed := AdminOnly(AdminOptions{}, secret)
	assert.Empty(t, closed(context.Background(), conversation.Update{UserID: 42}))
}
