package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		cb      *tele.Callback
		unique  string
		payload string
	}{
		{cb: &tele.Callback{Data: "\fbooking_confirm|yes"}, unique: "booking_confirm", payload: "yes"},
		{cb: &tele.Callback{Data: "\fbooking_cancel"}, unique: "booking_cancel"},
		{cb: &tele.Callback{Unique: "u", Data: "p|q"}, unique: "u", payload: "p|q"},
		{cb: &tele.Callback{Data: "plain"}, unique: "plain"},
		{cb: nil},
	}
	for _, tc := range cases {
		unique, payload := ParseCallbackData(tc.cb)
		assert.Equal(t, tc.unique, unique)
		assert.Equal(t, tc.payload, payload)
	}
}
