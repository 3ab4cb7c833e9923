package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/core/conversation"
)

const user = int64(7)

func TestNewFlowRequiresStore(t *testing.T) {
	_, err := NewFlow(Options{})
	assert.Error(t, err)
}

func TestBookingHappyPath(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, conversation.OutcomeEntry, h.send(user, "/start"))
	assert.Contains(t, h.rec.Last().Text, "Let's book your appointment")

	assert.Equal(t, conversation.OutcomeFlow, h.send(user, "2999-01-01"))
	assert.Equal(t, msgAskTime, h.rec.Last().Text)
	assert.Equal(t, conversation.OutcomeFlow, h.send(user, "10:00"))
	assert.Equal(t, msgAskNotes, h.rec.Last().Text)
	assert.Equal(t, conversation.OutcomeFlow, h.send(user, "test"))

	st, ok := h.router.Active(user, FlowName)
	require.True(t, ok)
	assert.Equal(t, StateConfirmation, st)

	sess, ok := h.session(user)
	require.True(t, ok)
	assert.Equal(t, []string{KeyDate, KeyNotes, KeyTime}, sess.Keys())
	notes, _ := sess.GetString(KeyNotes)
	assert.Equal(t, "test", notes)

	prompt := h.rec.Last()
	assert.True(t, prompt.Markdown)
	assert.Contains(t, prompt.Text, "📅 Date: 2999-01-01")
	assert.Contains(t, prompt.Text, "⏰ Time: 10:00")
	assert.Contains(t, prompt.Text, "📝 Notes: test")
	require.Len(t, prompt.Buttons, 1)
	assert.Equal(t, CallbackConfirm, prompt.Buttons[0][0].Unique)
	assert.Equal(t, CallbackCancel, prompt.Buttons[0][1].Unique)

	assert.Equal(t, conversation.OutcomeFlow, h.press(user, CallbackConfirm))
	assert.Equal(t, 1, h.store.createCalls())
	assert.Contains(t, h.rec.Last().Text, "See you on 2999-01-01 at 10:00!")
	_, ok = h.session(user)
	assert.False(t, ok)

	// a repeated tap on the stale button does not book twice
	assert.Equal(t, conversation.OutcomeIgnored, h.press(user, CallbackConfirm))
	assert.Equal(t, 1, h.store.createCalls())

	created := h.store.created[0]
	assert.Equal(t, user, created.UserID)
	assert.Equal(t, "test", created.Notes)
}

func TestInvalidDateKeepsState(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")

	for _, in := range []string{"2020-01-01", "01/02/2999"} {
		assert.Equal(t, conversation.OutcomeFlow, h.send(user, in))
		assert.Equal(t, msgBadDate, h.rec.Last().Text)
	}

	st, _ := h.router.Active(user, FlowName)
	assert.Equal(t, StateDate, st)
	sess, ok := h.session(user)
	require.True(t, ok)
	assert.Empty(t, sess.Data)
}

func TestInvalidTimeKeepsState(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")
	h.send(user, "2999-01-01")

	h.send(user, "18:00")
	assert.Equal(t, msgBadTime, h.rec.Last().Text)
	st, _ := h.router.Active(user, FlowName)
	assert.Equal(t, StateTime, st)

	sess, _ := h.session(user)
	assert.Equal(t, []string{KeyDate}, sess.Keys())
}

func TestSkipNotes(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")
	h.send(user, "2999-01-01")
	h.send(user, "09:00")
	h.send(user, "/skip")

	sess, _ := h.session(user)
	notes, ok := sess.GetString(KeyNotes)
	assert.True(t, ok)
	assert.Empty(t, notes)
	assert.NotContains(t, h.rec.Last().Text, "Notes")
}

func TestNotesAreEscapedInSummary(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")
	h.send(user, "2999-01-01")
	h.send(user, "09:00")
	h.send(user, "bring *all* docs")

	assert.Contains(t, h.rec.Last().Text, `📝 Notes: bring \*all\* docs`)
}

func TestCancelButton(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")
	h.send(user, "2999-01-01")
	h.send(user, "09:00")
	h.send(user, "x")

	h.press(user, CallbackCancel)
	assert.Equal(t, msgCancelled, h.rec.Last().Text)
	assert.Zero(t, h.store.createCalls())
	_, ok := h.session(user)
	assert.False(t, ok)
}

func TestCancelFallbackInEveryState(t *testing.T) {
	steps := []string{"2999-01-01", "09:00", "x"}
	for n := 0; n <= len(steps); n++ {
		h := newHarness(t)
		h.send(user, "/start")
		for _, s := range steps[:n] {
			h.send(user, s)
		}

		assert.Equal(t, conversation.OutcomeFlow, h.send(user, "/cancel"))
		assert.Equal(t, msgCancelled, h.rec.Last().Text)
		_, ok := h.session(user)
		assert.False(t, ok, "after %d steps", n)
	}
}

func TestCancelWithIDDuringBookingRunsCommand(t *testing.T) {
	h := newHarness(t)
	h.store.owners["a9"] = user
	h.send(user, "/start")

	assert.Equal(t, conversation.OutcomeCommand, h.send(user, "/cancel a9"))
	assert.Equal(t, []string{"a9"}, h.store.cancelled)
	st, ok := h.router.Active(user, FlowName)
	assert.True(t, ok)
	assert.Equal(t, StateDate, st)
}

func TestCallbackIgnoredOutsideConfirmation(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")
	assert.Equal(t, conversation.OutcomeIgnored, h.press(user, CallbackConfirm))
	st, _ := h.router.Active(user, FlowName)
	assert.Equal(t, StateDate, st)
}

func TestStoreFailureEndsConversation(t *testing.T) {
	h := newHarness(t)
	h.store.createErr = &appointments.Error{Reason: appointments.ReasonSlotTaken, Err: errors.New("23505")}
	h.send(user, "/start")
	h.send(user, "2999-01-01")
	h.send(user, "09:00")
	h.send(user, "/skip")

	assert.Equal(t, conversation.OutcomeFlow, h.press(user, CallbackConfirm))
	assert.Equal(t, failed(appointments.ReasonSlotTaken), h.rec.Last().Text)
	_, ok := h.session(user)
	assert.False(t, ok)
}

func TestRestartStartsFresh(t *testing.T) {
	h := newHarness(t)
	h.send(user, "/start")
	h.send(user, "2999-01-01")

	assert.Equal(t, conversation.OutcomeEntry, h.send(user, "/start"))
	sess, ok := h.session(user)
	require.True(t, ok)
	assert.Empty(t, sess.Data)
	assert.Equal(t, StateDate, sess.State)
}

func TestUsersAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.send(1, "/start")
	h.send(2, "/start")
	h.send(1, "2999-01-01")

	st1, _ := h.router.Active(1, FlowName)
	st2, _ := h.router.Active(2, FlowName)
	assert.Equal(t, StateTime, st1)
	assert.Equal(t, StateDate, st2)
}
