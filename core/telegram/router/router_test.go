package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/bookingbot/core/conversation"
	tg "github.com/m3rciful/bookingbot/core/telegram"
	"github.com/m3rciful/bookingbot/core/telegram/commands"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	updates []conversation.Update
	outcome conversation.Outcome
}

func (d *recordingDispatcher) Dispatch(_ context.Context, u conversation.Update) conversation.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
	return d.outcome
}

type apiRecorder struct {
	mu      sync.Mutex
	methods []string
}

func newTestBot(t *testing.T) (*tele.Bot, *apiRecorder) {
	t.Helper()
	rec := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.methods = append(rec.methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)

	bot, err := tele.NewBot(tele.Settings{Token: "123:abc", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	return bot, rec
}

func textUpdate(text string) tele.Update {
	return tele.Update{ID: 11, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: 7, Username: "ann"},
		Chat:   &tele.Chat{ID: 70, Type: tele.ChatPrivate},
	}}
}

func callbackUpdate(data string) tele.Update {
	return tele.Update{ID: 12, Callback: &tele.Callback{
		ID:      "cb1",
		Data:    data,
		Sender:  &tele.User{ID: 7},
		Message: &tele.Message{ID: 3, Chat: &tele.Chat{ID: 70}},
	}}
}

func TestUpdateFrom(t *testing.T) {
	bot, _ := newTestBot(t)

	u := UpdateFrom(bot.NewContext(textUpdate("/Cancel@bot 5f1c")))
	assert.Equal(t, int64(7), u.UserID)
	assert.Equal(t, int64(70), u.ChatID)
	assert.Equal(t, "ann", u.UserName)
	assert.Equal(t, "/cancel", u.Command)
	assert.Equal(t, []string{"5f1c"}, u.Args)

	cb := UpdateFrom(bot.NewContext(callbackUpdate("\fbooking_confirm|yes")))
	assert.Equal(t, conversation.KindCallback, cb.Kind())
	assert.Equal(t, "booking_confirm", cb.Callback)
	assert.Equal(t, "yes", cb.CallbackData)
	assert.Equal(t, int64(70), cb.ChatID)
}

func TestTextRoutesDispatch(t *testing.T) {
	bot, _ := newTestBot(t)
	d := &recordingDispatcher{outcome: conversation.OutcomeFlow}
	routes := TextRoutes(d, TextOptions{})
	require.Len(t, routes, 2)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(bot.NewContext(textUpdate("2999-01-01"))))
	require.Len(t, d.updates, 1)
	assert.Equal(t, "2999-01-01", d.updates[0].Text)
}

func TestTextRoutesFallbackWhenIgnored(t *testing.T) {
	bot, _ := newTestBot(t)
	d := &recordingDispatcher{outcome: conversation.OutcomeIgnored}
	called := false
	routes := TextRoutes(d, TextOptions{UnknownText: func(tele.Context) error {
		called = true
		return nil
	}})

	require.NoError(t, routes[0].Handler(bot.NewContext(textUpdate("hello"))))
	assert.True(t, called)
}

func TestCallbackRouteAnswersOnce(t *testing.T) {
	bot, rec := newTestBot(t)
	d := &recordingDispatcher{outcome: conversation.OutcomeFlow}
	route := CallbackRoute(d, tg.NewRegistry())

	require.NoError(t, route.Handler(bot.NewContext(callbackUpdate("\fbooking_cancel"))))
	require.Len(t, d.updates, 1)
	assert.Equal(t, "booking_cancel", d.updates[0].Callback)
	assert.Equal(t, []string{"answerCallbackQuery"}, rec.methods)
}

func TestCallbackRouteNotFound(t *testing.T) {
	bot, _ := newTestBot(t)
	d := &recordingDispatcher{outcome: conversation.OutcomeIgnored}
	reg := tg.NewRegistry()
	notFound := false
	reg.SetCallbackNotFound(func(tele.Context) error {
		notFound = true
		return nil
	})

	require.NoError(t, CallbackRoute(d, reg).Handler(bot.NewContext(callbackUpdate("\fstale"))))
	assert.True(t, notFound)
}

func TestCommandRoutesCoverAliases(t *testing.T) {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/help", commands.Command{
		Description: "Show help",
		Aliases:     []string{"info"},
		Handler: func(context.Context, conversation.Update) []conversation.Message {
			return nil
		},
	})
	reg.RegisterCommand("/start", commands.Command{Description: "Book an appointment"})

	d := &recordingDispatcher{outcome: conversation.OutcomeCommand}
	routes := CommandRoutes(reg, d)
	var endpoints []any
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint)
	}
	assert.ElementsMatch(t, []any{"/help", "/info", "/start"}, endpoints)

	bot, _ := newTestBot(t)
	require.NoError(t, routes[0].Handler(bot.NewContext(textUpdate("/help"))))
	require.Len(t, d.updates, 1)
	assert.Equal(t, "/help", d.updates[0].Command)
}

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errorString("x")))
	assert.Equal(t, "callback_confirm", "callback_"+normalizeHandlerName("/Confirm"))
	assert.Equal(t, "SLOT_TAKEN", deriveErrorCode(fmt.Errorf("create: %w", codedError("slot taken"))))
}

func TestSummaryStatus(t *testing.T) {
	cases := []struct {
		status      string
		err         error
		wantStatus  string
		wantOutcome string
	}{
		{"", nil, "ok", "ok"},
		{"skip", nil, "skip", "ok"},
		{"fail", nil, "fail", "fail"},
		{"skip", errorString("boom"), "fail", "fail"},
	}
	for _, tc := range cases {
		status, outcome := summaryStatus(tc.status, tc.err)
		assert.Equal(t, tc.wantStatus, status)
		assert.Equal(t, tc.wantOutcome, outcome)
	}
}

type codedError string

func (e codedError) Error() string { return string(e) }
func (e codedError) Code() string  { return string(e) }

type errorString string

func (e errorString) Error() string { return string(e) }
