package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecoverMiddleware(t *testing.T) {
	bot := offlineBot(t)
	before := counterValue(t, panicsTotal.WithLabelValues("message"))

	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NotPanics(t, func() {
		assert.NoError(t, h(textFrom(bot, 5, 7, "/book")))
	})
	assert.Equal(t, before+1, counterValue(t, panicsTotal.WithLabelValues("message")))
}
