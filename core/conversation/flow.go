package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/bookingbot/core/telegram/state"
)

// State is a step of a conversation.
type State = state.State

// End finishes the conversation and releases its session.
const End = state.StateEnd

// Status publishes interim progress while a handler is still running.
type Status interface {
	Update(text string)
}

// Input is everything a handler may look at.
type Input struct {
	Update  Update
	Session *state.Session
	Status  Status
}

// Result is the decision taken by a handler.
type Result struct {
	Next     State
	Messages []Message
}

// Stay keeps the conversation in st and replies with msgs.
func Stay(st State, msgs ...Message) Result {
	return Result{Next: st, Messages: msgs}
}

// Finish ends the conversation and replies with msgs.
func Finish(msgs ...Message) Result {
	return Result{Next: End, Messages: msgs}
}

// Handler reacts to an update in a given state.
type Handler func(ctx context.Context, in Input) Result

// Route pairs a matcher with the handler to run when it accepts the update.
type Route struct {
	Match  Matcher
	Handle Handler
}

// On is a shorthand Route constructor.
func On(m Matcher, h Handler) Route {
	return Route{Match: m, Handle: h}
}

// Definition declares a conversation. It is copied by New and never used again.
type Definition struct {
	Name        string
	Entry       string
	Description string
	OnEntry     Handler
	States      map[State][]Route
	Fallbacks   []Route
}

// Flow is an immutable, validated conversation definition.
type Flow struct {
	name        string
	entry       string
	description string
	onEntry     Handler
	states      map[State][]Route
	fallbacks   []Route
}

// New validates def and returns the Flow it describes.
func New(def Definition) (*Flow, error) {
	if def.Name == "" {
		return nil, errors.New("conversation: empty flow name")
	}
	entry := NormalizeCommand(def.Entry)
	if entry == "" {
		return nil, fmt.Errorf("conversation %s: empty entry command", def.Name)
	}
	if def.OnEntry == nil {
		return nil, fmt.Errorf("conversation %s: nil entry handler", def.Name)
	}
	if len(def.States) == 0 {
		return nil, fmt.Errorf("conversation %s: no states", def.Name)
	}

	states := make(map[State][]Route, len(def.States))
	for st, routes := range def.States {
		if st == "" || st == End || st == state.StateIdle {
			return nil, fmt.Errorf("conversation %s: reserved state %q", def.Name, st)
		}
		if err := checkRoutes(routes); err != nil {
			return nil, fmt.Errorf("conversation %s: state %s: %w", def.Name, st, err)
		}
		states[st] = append([]Route(nil), routes...)
	}
	if err := checkRoutes(def.Fallbacks); err != nil {
		return nil, fmt.Errorf("conversation %s: fallbacks: %w", def.Name, err)
	}

	return &Flow{
		name:        def.Name,
		entry:       entry,
		description: def.Description,
		onEntry:     def.OnEntry,
		states:      states,
		fallbacks:   append([]Route(nil), def.Fallbacks...),
	}, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew(def Definition) *Flow {
	f, err := New(def)
	if err != nil {
		panic(err)
	}
	return f
}

func checkRoutes(routes []Route) error {
	for i, r := range routes {
		if r.Match == nil || r.Handle == nil {
			return fmt.Errorf("route %d is incomplete", i)
		}
	}
	return nil
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// Entry returns the entry command, e.g. "/start".
func (f *Flow) Entry() string { return f.entry }

// Description returns the human readable description of the entry command.
func (f *Flow) Description() string { return f.description }

// HasState reports whether st is declared by the flow.
func (f *Flow) HasState(st State) bool {
	_, ok := f.states[st]
	return ok
}

// IsEntry reports whether u triggers the flow.
func (f *Flow) IsEntry(u Update) bool {
	return u.Kind() == KindCommand && u.Command == f.entry
}

// Enter runs the entry handler.
func (f *Flow) Enter(ctx context.Context, in Input) Result {
	return f.normalize(f.onEntry(ctx, in))
}

// Step dispatches u to the first route of current that accepts it, then to
// the fallbacks. It returns false when nothing matched; the conversation then
// stays where it is.
func (f *Flow) Step(ctx context.Context, in Input, current State) (Result, bool) {
	for _, r := range f.states[current] {
		if r.Match(in.Update) {
			return f.normalize(r.Handle(ctx, in)), true
		}
	}
	for _, r := range f.fallbacks {
		if r.Match(in.Update) {
			return f.normalize(r.Handle(ctx, in)), true
		}
	}
	return Result{}, false
}

// normalize turns unknown next states into End so a typo can't strand a user.
func (f *Flow) normalize(res Result) Result {
	if res.Next == "" || (res.Next != End && !f.HasState(res.Next)) {
		res.Next = End
	}
	return res
}
