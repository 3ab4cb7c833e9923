package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Inbound Telegram updates by kind",
		},
		[]string{"kind"},
	)

	updateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telegram_update_duration_seconds",
			Help:    "Time spent handling an inbound update",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"kind", "status"},
	)

	panicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_handler_panics_total",
			Help: "Handler panics recovered by the middleware chain",
		},
		[]string{"kind"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_rate_limited_total",
			Help: "Updates dropped by the per-user rate limit",
		},
		[]string{"kind"},
	)
)

const countersKey = "counters"

// Counters tracks messages sent while handling one update.
type Counters struct {
	messages atomic.Int64
	keyboard atomic.Bool
}

// Add records a delivered message.
func (c *Counters) Add(hasKB bool) {
	if c == nil {
		return
	}
	c.messages.Add(1)
	if hasKB {
		c.keyboard.Store(true)
	}
}

type countersCtxKey struct{}

// WithCounters attaches counters to ctx so senders outside tele.Context can
// report what they delivered.
func WithCounters(ctx context.Context, c *Counters) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, countersCtxKey{}, c)
}

// CountMessage records a delivered message on the counters carried by ctx.
func CountMessage(ctx context.Context, hasKB bool) {
	if ctx == nil {
		return
	}
	if c, ok := ctx.Value(countersCtxKey{}).(*Counters); ok {
		c.Add(hasKB)
	}
}

// CountersFrom returns the counters installed by MessageMetricsMiddleware.
func CountersFrom(c tele.Context) *Counters {
	if c == nil {
		return nil
	}
	counters, _ := c.Get(countersKey).(*Counters)
	return counters
}

// metricsContext wraps tele.Context to count sent messages and detect keyboard usage.
type metricsContext struct {
	tele.Context
	counters *Counters
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.counters.Add(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.counters.Add(hasKeyboard(opts))
	}
	return err
}

// Edit proxies tele.Context.Edit while updating message counters.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.counters.Add(hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware counts inbound updates and instruments the context
// to track messages count and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		kind := UpdateKind(c.Update())
		updatesTotal.WithLabelValues(kind).Inc()
		start := time.Now()

		counters := &Counters{}
		c.Set(countersKey, counters)
		err := next(metricsContext{Context: c, counters: counters})

		status := "ok"
		if err != nil {
			status = "fail"
		}
		updateDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
		return err
	}
}

// UpdateKind names the update type for metrics and rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	counters := CountersFrom(c)
	if counters == nil {
		return 0, false
	}
	return int(counters.messages.Load()), counters.keyboard.Load()
}
