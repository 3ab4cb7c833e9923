package booking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/conversation/conversationtest"
)

func TestViewEmpty(t *testing.T) {
	c := NewCommands(&fakeStore{})
	msgs := c.View(context.Background(), conversationtest.Text(user, "/view"))
	require.Len(t, msgs, 1)
	assert.Equal(t, msgNoAppointments, msgs[0].Text)
}

func TestViewLists(t *testing.T) {
	store := &fakeStore{list: []appointments.Appointment{
		{ID: "a1", Date: "2999-01-01", Time: "09:00"},
		{ID: "a2", Date: "2999-01-02", Time: "10:30", Notes: "room_4"},
	}}
	msgs := NewCommands(store).View(context.Background(), conversationtest.Text(user, "/view"))
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.True(t, m.Markdown)
	assert.Contains(t, m.Text, "🔹 *2999-01-01 at 09:00*\n   ID: `a1`\n\n")
	assert.Contains(t, m.Text, "   Notes: room\\_4\n")
	assert.Less(t, strings.Index(m.Text, "`a1`"), strings.Index(m.Text, "`a2`"))
}

func TestViewStoreError(t *testing.T) {
	store := &fakeStore{listErr: &appointments.Error{Reason: appointments.ReasonUnavailable, Err: errors.New("down")}}
	msgs := NewCommands(store).View(context.Background(), conversationtest.Text(user, "/view"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "❌ "+appointments.ReasonUnavailable, msgs[0].Text)
}

func TestCancelCommand(t *testing.T) {
	store := &fakeStore{owners: map[string]int64{"mine": user, "theirs": 99}}
	c := NewCommands(store)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"/cancel", msgCancelUsage},
		{"/cancel a b", msgCancelUsage},
		{"/cancel theirs", "❌ " + appointments.ReasonNotOwner},
		{"/cancel nope", "❌ " + appointments.ReasonNotFound},
		{"/cancel mine", "✅ Appointment mine has been cancelled."},
	}
	for _, tt := range tests {
		msgs := c.Cancel(ctx, conversationtest.Text(user, tt.text))
		require.Len(t, msgs, 1, tt.text)
		assert.Equal(t, tt.want, msgs[0].Text, tt.text)
	}
	assert.Equal(t, []string{"mine"}, store.cancelled)
}

func TestCancelWithoutArgsOutsideBooking(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, conversation.OutcomeCommand, h.send(user, "/cancel"))
	assert.Equal(t, msgCancelUsage, h.rec.Last().Text)
}
