package download

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/bookingbot/app/media"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/conversation/conversationtest"
	"github.com/m3rciful/bookingbot/core/telegram/state"
)

const user = int64(42)

type fakeFetcher struct {
	probeErr    error
	downloadErr error
	downloads   int
	prefix      string
	title       string
}

func (f *fakeFetcher) Probe(context.Context, string) (media.Metadata, error) {
	if f.probeErr != nil {
		return media.Metadata{}, f.probeErr
	}
	title := f.title
	if title == "" {
		title = "Song_1"
	}
	return media.Metadata{Title: title, Duration: 213}, nil
}

func (f *fakeFetcher) Download(_ context.Context, _ string, prefix string) (media.File, error) {
	f.downloads++
	f.prefix = prefix
	if f.downloadErr != nil {
		return media.File{}, f.downloadErr
	}
	return media.File{Path: "/tmp/42_abc.mp3", Size: 3 << 20}, nil
}

func setup(t *testing.T, fetcher *fakeFetcher) (*conversation.Router, *conversationtest.Recorder, state.Manager) {
	t.Helper()
	f, err := NewFlow(Options{Fetcher: fetcher})
	require.NoError(t, err)
	sessions := state.NewMemoryManager(state.Options{})
	rec := &conversationtest.Recorder{}
	r, err := conversation.NewRouter(conversation.Options{Sessions: sessions, Sender: rec}, f)
	require.NoError(t, err)
	return r, rec, sessions
}

func dispatch(r *conversation.Router, text string) conversation.Outcome {
	return r.Dispatch(context.Background(), conversationtest.Text(user, text))
}

func TestDownloadCaptionKeepsTitleOutsideEntities(t *testing.T) {
	r, rec, _ := setup(t, &fakeFetcher{title: "*Live* at [Club]_2"})

	dispatch(r, "/download")
	assert.Equal(t, conversation.OutcomeFlow, dispatch(r, "https://youtu.be/abc"))

	audio := rec.Last().Audio
	require.NotNil(t, audio)
	assert.Equal(t, `🎵 \*Live\* at \[Club]\_2`, audio.Caption)
}

func TestNewFlowRequiresFetcher(t *testing.T) {
	_, err := NewFlow(Options{})
	assert.Error(t, err)
}

func TestDownloadDeliversAudio(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, rec, sessions := setup(t, fetcher)

	assert.Equal(t, conversation.OutcomeEntry, dispatch(r, "/download"))
	assert.Equal(t, msgAskLink, rec.Last().Text)

	assert.Equal(t, conversation.OutcomeFlow, dispatch(r, "https://youtu.be/abc"))
	sent := rec.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, msgProcessing, sent[1].Msg.Text)

	audio := sent[2].Msg.Audio
	require.NotNil(t, audio)
	assert.Equal(t, "/tmp/42_abc.mp3", audio.Path)
	assert.Equal(t, "Song_1", audio.Title)
	assert.Equal(t, 213, audio.Duration)
	assert.Equal(t, `🎵 Song\_1`, audio.Caption)
	assert.True(t, audio.Remove)
	assert.True(t, sent[2].Msg.Markdown)

	require.Len(t, rec.Edits(), 1)
	assert.Equal(t, "📥 Downloading: Song_1\nPlease wait...", rec.Edits()[0].Text)
	assert.Equal(t, []conversation.Handle{sent[1].Handle}, rec.Deleted())
	assert.Equal(t, "42", fetcher.prefix)

	_, ok := sessions.Get(state.Key{UserID: user, Flow: FlowName})
	assert.False(t, ok)
}

func TestDownloadTooLarge(t *testing.T) {
	r, rec, sessions := setup(t, &fakeFetcher{downloadErr: fmt.Errorf("%w: 60000000 bytes", media.ErrTooLarge)})
	dispatch(r, "/download")
	dispatch(r, "https://youtu.be/abc")

	for _, s := range rec.Sent() {
		assert.Nil(t, s.Msg.Audio)
	}
	edits := rec.Edits()
	require.NotEmpty(t, edits)
	last := edits[len(edits)-1].Text
	assert.Equal(t, "❌ Sorry, the audio file is too large (>50MB). Please try a shorter video.", last)
	assert.NotEqual(t, msgFailed, last)
	assert.Empty(t, rec.Deleted())

	_, ok := sessions.Get(state.Key{UserID: user, Flow: FlowName})
	assert.False(t, ok)
}

func TestProbeFailuresMapToMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{media.ErrAgeRestricted, msgAgeRestricted},
		{media.ErrPrivate, msgPrivate},
		{media.ErrCopyright, msgCopyright},
		{media.ErrInvalidURL, msgInvalidURL},
		{media.ErrFetchFailed, msgFailed},
		{fmt.Errorf("boom"), msgFailed},
	}
	for _, tt := range tests {
		fetcher := &fakeFetcher{probeErr: fmt.Errorf("wrapped: %w", tt.err)}
		r, rec, _ := setup(t, fetcher)
		dispatch(r, "/download")

		assert.Equal(t, conversation.OutcomeFlow, dispatch(r, "https://youtu.be/x"))
		edits := rec.Edits()
		require.Len(t, edits, 1, tt.want)
		assert.Equal(t, tt.want, edits[0].Text)
		assert.Zero(t, fetcher.downloads)
	}
}

func TestCancelDownload(t *testing.T) {
	r, rec, sessions := setup(t, &fakeFetcher{})
	dispatch(r, "/download")

	assert.Equal(t, conversation.OutcomeFlow, dispatch(r, "/cancel"))
	assert.Equal(t, msgCancelled, rec.Last().Text)
	_, ok := sessions.Get(state.Key{UserID: user, Flow: FlowName})
	assert.False(t, ok)
}

func TestOtherCommandsDoNotConsumeLink(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, _, _ := setup(t, fetcher)
	dispatch(r, "/download")

	assert.Equal(t, conversation.OutcomeIgnored, dispatch(r, "/view"))
	st, ok := r.Active(user, FlowName)
	assert.True(t, ok)
	assert.Equal(t, StateAwaitingLink, st)
	assert.Zero(t, fetcher.downloads)
}
