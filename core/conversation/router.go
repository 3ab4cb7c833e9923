package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/m3rciful/bookingbot/core/logger"
	"github.com/m3rciful/bookingbot/core/telegram/state"
)

const component = "conversation"

// DefaultApology is sent when an update could not be processed.
const DefaultApology = "❌ Sorry, an error occurred. Please try again or contact support."

// Outcome describes what Dispatch did with an update.
type Outcome string

const (
	OutcomeFlow    Outcome = "flow"
	OutcomeEntry   Outcome = "entry"
	OutcomeCommand Outcome = "command"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFailed  Outcome = "failed"
)

// CommandFunc handles a stateless command.
type CommandFunc func(ctx context.Context, u Update) []Message

// CommandSource resolves stateless commands by name.
type CommandSource interface {
	Command(name string) (CommandFunc, bool)
}

// Options configures a Router.
type Options struct {
	Sessions state.Manager
	Sender   Sender
	Commands CommandSource
	Apology  string
}

// Router owns the active conversations and routes updates to them.
type Router struct {
	flows    []*Flow
	byName   map[string]*Flow
	sessions state.Manager
	sender   Sender
	commands CommandSource
	apology  string
	locks    *userLocks
}

// NewRouter builds a Router over the given flows. Flow names and entry
// commands must be unique.
func NewRouter(opts Options, flows ...*Flow) (*Router, error) {
	if opts.Sessions == nil {
		return nil, errors.New("conversation: nil session manager")
	}
	if opts.Sender == nil {
		return nil, errors.New("conversation: nil sender")
	}
	r := &Router{
		byName:   make(map[string]*Flow, len(flows)),
		sessions: opts.Sessions,
		sender:   opts.Sender,
		commands: opts.Commands,
		apology:  opts.Apology,
		locks:    newUserLocks(),
	}
	if r.apology == "" {
		r.apology = DefaultApology
	}
	entries := make(map[string]string, len(flows))
	for _, f := range flows {
		if f == nil {
			continue
		}
		if _, dup := r.byName[f.Name()]; dup {
			return nil, fmt.Errorf("conversation: duplicate flow %s", f.Name())
		}
		if other, dup := entries[f.Entry()]; dup {
			return nil, fmt.Errorf("conversation: entry %s used by %s and %s", f.Entry(), other, f.Name())
		}
		entries[f.Entry()] = f.Name()
		r.byName[f.Name()] = f
		r.flows = append(r.flows, f)
	}
	return r, nil
}

// Flows returns the registered flows in registration order.
func (r *Router) Flows() []*Flow {
	return append([]*Flow(nil), r.flows...)
}

// Stats reports the number of active conversations per flow.
func (r *Router) Stats() map[string]int {
	counts := r.sessions.Count()
	out := make(map[string]int, len(r.flows))
	for _, f := range r.flows {
		out[f.Name()] = counts[f.Name()]
	}
	return out
}

// Active returns the state of the user's conversation in flow, if any.
func (r *Router) Active(userID int64, flow string) (State, bool) {
	sess, ok := r.sessions.Get(state.Key{UserID: userID, Flow: flow})
	if !ok {
		return state.StateIdle, false
	}
	return sess.State, true
}

// Dispatch processes a single update. Updates of one user are handled one at
// a time; different users never wait for each other.
func (r *Router) Dispatch(ctx context.Context, u Update) (out Outcome) {
	unlock := r.locks.Lock(u.UserID)
	defer unlock()

	start := time.Now()
	var running *state.Key

	defer func() {
		if rec := recover(); rec != nil {
			attrs := []slog.Attr{
				slog.Int64("user_id", u.UserID),
				slog.Any("err", rec),
				slog.String("stack", string(debug.Stack())),
			}
			if running != nil {
				attrs = append(attrs, slog.String("flow", running.Flow))
				r.sessions.Clear(*running)
			}
			logger.Error(ctx, component, "dispatch.panic", attrs...)
			r.apologize(ctx, u)
			out = OutcomeFailed
		}
		dispatchTotal.WithLabelValues(string(out)).Inc()
		dispatchDuration.WithLabelValues(string(out)).Observe(time.Since(start).Seconds())
	}()

	for _, key := range r.activeSessions(u.UserID) {
		if res, ok := r.step(ctx, u, key, &running); ok {
			return res
		}
	}

	if u.Kind() != KindCommand {
		return OutcomeIgnored
	}

	for _, f := range r.flows {
		if !f.IsEntry(u) {
			continue
		}
		key := state.Key{UserID: u.UserID, Flow: f.Name()}
		if prev, ok := r.sessions.Get(key); ok {
			logger.Info(ctx, component, "session.restart",
				slog.String("flow", f.Name()),
				slog.String("state", string(prev.State)),
			)
		}
		r.sessions.Start(key, state.StateIdle)
		sess, ok := r.sessions.Acquire(key)
		if !ok {
			return OutcomeIgnored
		}
		defer r.sessions.Release(sess)
		running = &key
		fctx := logger.WithFlow(ctx, f.Name(), string(state.StateIdle))
		status := &statusReporter{ctx: fctx, sender: r.sender, chatID: u.ChatID}
		res := f.Enter(fctx, Input{Update: u, Session: sess, Status: status})
		return r.apply(fctx, u, f, sess, res, status, OutcomeEntry)
	}

	if r.commands != nil {
		if h, ok := r.commands.Command(u.Command); ok && h != nil {
			if err := r.deliver(ctx, u.ChatID, h(ctx, u), nil); err != nil {
				r.sendFailed(ctx, u, "", err)
				return OutcomeFailed
			}
			return OutcomeCommand
		}
	}

	return OutcomeIgnored
}

// step offers u to the session under key. A session that expired since it
// was listed is skipped.
func (r *Router) step(ctx context.Context, u Update, key state.Key, running **state.Key) (Outcome, bool) {
	sess, ok := r.sessions.Acquire(key)
	if !ok {
		return "", false
	}
	defer r.sessions.Release(sess)

	f := r.byName[key.Flow]
	*running = &key
	fctx := logger.WithFlow(ctx, f.Name(), string(sess.State))
	status := &statusReporter{ctx: fctx, sender: r.sender, chatID: u.ChatID}
	res, ok := f.Step(fctx, Input{Update: u, Session: sess, Status: status}, sess.State)
	if !ok {
		*running = nil
		return "", false
	}
	return r.apply(fctx, u, f, sess, res, status, OutcomeFlow), true
}

// activeSessions lists the user's conversations, most recently updated first.
func (r *Router) activeSessions(userID int64) []state.Key {
	var sessions []*state.Session
	for _, f := range r.flows {
		if sess, ok := r.sessions.Get(state.Key{UserID: userID, Flow: f.Name()}); ok {
			sessions = append(sessions, sess)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	out := make([]state.Key, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Key()
	}
	return out
}

func (r *Router) apply(ctx context.Context, u Update, f *Flow, sess *state.Session, res Result, status *statusReporter, outcome Outcome) Outcome {
	from := sess.State
	if res.Next == End {
		r.sessions.Clear(sess.Key())
	} else {
		sess.State = res.Next
		r.sessions.Save(sess)
	}
	transitionsTotal.WithLabelValues(f.Name(), string(from), string(res.Next)).Inc()
	logger.Debug(ctx, component, "fsm.transition",
		slog.String("flow", f.Name()),
		slog.String("from", string(from)),
		slog.String("to", string(res.Next)),
		slog.Int("messages", len(res.Messages)),
	)

	if err := r.deliver(ctx, u.ChatID, res.Messages, status); err != nil {
		if res.Next != End {
			r.sessions.Clear(sess.Key())
		}
		r.sendFailed(ctx, u, f.Name(), err)
		return OutcomeFailed
	}
	return outcome
}

func (r *Router) deliver(ctx context.Context, chatID int64, msgs []Message, status *statusReporter) error {
	replaced := false
	for _, m := range msgs {
		if m.ReplaceStatus && status.active() && m.Audio == nil && len(m.Buttons) == 0 {
			if err := r.sender.Edit(ctx, *status.handle, m.Text); err == nil {
				replaced = true
				continue
			}
		}
		if _, err := r.sender.Send(ctx, chatID, m); err != nil {
			return err
		}
	}
	if status.active() && !replaced {
		if err := r.sender.Delete(ctx, *status.handle); err != nil {
			logger.Warn(ctx, component, "status.delete_failed", slog.String("err", err.Error()))
		}
	}
	return nil
}

func (r *Router) sendFailed(ctx context.Context, u Update, flow string, err error) {
	logger.Error(ctx, component, "dispatch.send_failed",
		slog.String("flow", flow),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	r.apologize(ctx, u)
}

func (r *Router) apologize(ctx context.Context, u Update) {
	if u.ChatID == 0 {
		return
	}
	if _, err := r.sender.Send(ctx, u.ChatID, Reply(r.apology)); err != nil {
		logger.Warn(ctx, component, "apology.failed", slog.String("err", err.Error()))
	}
}

// statusReporter sends the first status text and edits it afterwards.
type statusReporter struct {
	ctx    context.Context
	sender Sender
	chatID int64
	handle *Handle
	last   string
}

func (s *statusReporter) active() bool {
	return s != nil && s.handle != nil
}

// Update shows text as the current status.
func (s *statusReporter) Update(text string) {
	if text == "" || text == s.last || s.chatID == 0 {
		return
	}
	if s.handle == nil {
		h, err := s.sender.Send(s.ctx, s.chatID, Reply(text))
		if err != nil {
			logger.Warn(s.ctx, component, "status.send_failed", slog.String("err", err.Error()))
			return
		}
		s.handle = &h
	} else if err := s.sender.Edit(s.ctx, *s.handle, text); err != nil {
		logger.Warn(s.ctx, component, "status.edit_failed", slog.String("err", err.Error()))
		return
	}
	s.last = text
}
