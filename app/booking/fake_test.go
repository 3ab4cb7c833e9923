package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookingbot/app/appointments"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/conversation/conversationtest"
	tg "github.com/m3rciful/bookingbot/core/telegram"
	"github.com/m3rciful/bookingbot/core/telegram/state"
)

type fakeStore struct {
	mu        sync.Mutex
	created   []appointments.NewAppointment
	createErr error
	list      []appointments.Appointment
	listErr   error
	cancelled []string
	owners    map[string]int64
}

func (s *fakeStore) Create(_ context.Context, a appointments.NewAppointment) (appointments.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return appointments.Appointment{}, s.createErr
	}
	s.created = append(s.created, a)
	return appointments.Appointment{
		ID:     "a1",
		UserID: a.UserID,
		Date:   a.Date.Format(appointments.DateLayout),
		Time:   a.Time.Format(appointments.TimeLayout),
		Notes:  a.Notes,
		Status: appointments.StatusScheduled,
	}, nil
}

func (s *fakeStore) List(context.Context, int64) ([]appointments.Appointment, error) {
	return s.list, s.listErr
}

func (s *fakeStore) Cancel(_ context.Context, id string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[id]
	switch {
	case !ok:
		return &appointments.Error{Reason: appointments.ReasonNotFound}
	case owner != userID:
		return &appointments.Error{Reason: appointments.ReasonNotOwner}
	}
	s.cancelled = append(s.cancelled, id)
	return nil
}

func (s *fakeStore) createCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type harness struct {
	router   *conversation.Router
	sessions state.Manager
	rec      *conversationtest.Recorder
	store    *fakeStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := &fakeStore{owners: map[string]int64{}}
	f, err := NewFlow(Options{Store: store, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	reg := tg.NewRegistry()
	reg.RegisterFlow(f)
	NewCommands(store).Register(reg)

	sessions := state.NewMemoryManager(state.Options{})
	rec := &conversationtest.Recorder{}
	r, err := conversation.NewRouter(conversation.Options{Sessions: sessions, Sender: rec, Commands: reg}, f)
	require.NoError(t, err)
	return &harness{router: r, sessions: sessions, rec: rec, store: store}
}

func (h *harness) send(user int64, text string) conversation.Outcome {
	return h.router.Dispatch(context.Background(), conversationtest.Text(user, text))
}

func (h *harness) press(user int64, unique string) conversation.Outcome {
	return h.router.Dispatch(context.Background(), conversationtest.Press(user, unique, ""))
}

func (h *harness) session(user int64) (*state.Session, bool) {
	return h.sessions.Get(state.Key{UserID: user, Flow: FlowName})
}
