package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"squizy/internal/cache"
	"squizy/internal/model"
)

// recordingVoice finishes every line immediately
type recordingVoice struct {
	mu    sync.Mutex
	lines []string
}

func (v *recordingVoice) Say(ctx context.Context, text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, text)
	return nil
}

func (v *recordingVoice) Lines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.lines...)
}

func (v *recordingVoice) Said(text string) bool {
	for _, l := range v.Lines() {
		if l == text {
			return true
		}
	}
	return false
}

type hostHarness struct {
	t       *testing.T
	store   *cache.MemoryStore
	syncer  *Synchronizer
	prog    *Progression
	voice   *recordingVoice
	tickers chan chan time.Time
}

func gameRounds() []model.Round {
	return []model.Round{
		{Number: 1, Theme: "Sport", Type: model.RoundNormal, Questions: []model.Question{
			{ID: "q1", Type: model.RoundNormal, Text: "Vraag een?", Answer: "Een", Explanation: "Uitleg een.", Timer: 3},
			{ID: "q2", Type: model.RoundNormal, Text: "Vraag twee?", Answer: "Twee", Timer: 2},
		}},
		{Number: 2, Theme: "Dans", Type: model.RoundDoe, Questions: []model.Question{
			{ID: "q3", Type: model.RoundDoe, Text: "Dans!", Answer: "Mooi gedanst", Timer: 2},
		}},
	}
}

// newHostHarness seats a host in a room that is already playing at the given indices
func newHostHarness(t *testing.T, mutate ...func(*model.GameSession)) *hostHarness {
	t.Helper()
	voice := &recordingVoice{}
	h := newHostHarnessVoice(t, voice, mutate...)
	h.voice = voice
	return h
}

func newHostHarnessVoice(t *testing.T, voice Voice, mutate ...func(*model.GameSession)) *hostHarness {
	t.Helper()
	h := &hostHarness{
		t:       t,
		store:   cache.NewMemoryStore(),
		tickers: make(chan chan time.Time, 16),
	}
	h.syncer = NewSynchronizer(h.store)
	h.prog = NewProgression(h.syncer, NewNarrator(voice), NewCues(language.Dutch),
		WithTicker(func(time.Duration) (<-chan time.Time, func()) {
			ch := make(chan time.Time)
			h.tickers <- ch
			return ch, func() {}
		}))
	t.Cleanup(func() {
		h.syncer.Unwatch()
		h.prog.Close()
	})

	doc := model.NewSession()
	doc.RoomCode = "HOST"
	doc.Players = []model.Player{{ID: "p1", Name: "Anna"}, {ID: "p2", Name: "Bram"}}
	doc.Teams = BuildTeams(model.ModeIndividual, doc.Players, [2]string{})
	doc.Rounds = gameRounds()
	doc.Status = model.StatusPlaying
	doc.CurrentRoundIndex, doc.CurrentQuestionIndex = 0, 0
	for _, fn := range mutate {
		fn(&doc)
	}

	local := model.NewSession()
	local.RoomCode = "HOST"
	local.Role = model.RoleHost
	local.PlayerID = "host"
	h.syncer.Replace(local)

	require.NoError(t, h.store.Set(context.Background(), "HOST", doc.Snapshot()))
	require.NoError(t, h.syncer.Watch(context.Background(), "HOST"))
	return h
}

func (h *hostHarness) state() model.GameSession {
	return h.syncer.State()
}

func (h *hostHarness) waitFor(cond func(model.GameSession) bool, msg string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return cond(h.state()) }, eventually, poll, msg)
}

func (h *hostHarness) nextTicker() chan time.Time {
	h.t.Helper()
	select {
	case ch := <-h.tickers:
		return ch
	case <-time.After(eventually):
		h.t.Fatal("countdown never started")
	}
	return nil
}

func (h *hostHarness) tick(ch chan time.Time) {
	h.t.Helper()
	select {
	case ch <- time.Now():
	case <-time.After(eventually):
		h.t.Fatal("countdown is not listening")
	}
}

func TestProgressionCountdownRevealsAtZero(t *testing.T) {
	h := newHostHarness(t)
	ticker := h.nextTicker()

	h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == 3 && !s.ShowAnswer }, "question reset")
	assert.Eventually(t, func() bool { return h.voice.Said("Ronde 1: Sport. Vraag een?") }, eventually, poll)

	for want := 2; want >= 0; want-- {
		h.tick(ticker)
		w := want
		h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == w }, "countdown step")
		assert.False(t, h.state().ShowAnswer)
	}

	h.tick(ticker)
	h.waitFor(func(s model.GameSession) bool { return s.ShowAnswer }, "reveal after zero")
	assert.Equal(t, 0, h.state().TimeLeft)
	assert.Eventually(t, func() bool { return !h.prog.Running() }, eventually, poll)
	assert.Eventually(t, func() bool {
		return h.voice.Said("Het juiste antwoord is: Een. Uitleg een.")
	}, eventually, poll)
}

func TestProgressionRevealIsIdempotent(t *testing.T) {
	h := newHostHarness(t)
	h.nextTicker()
	h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == 3 }, "question reset")

	ctx := context.Background()
	require.NoError(t, h.prog.RevealAnswer(ctx))
	h.waitFor(func(s model.GameSession) bool { return s.ShowAnswer }, "revealed")
	first, _, err := h.store.Snapshot(ctx, "HOST")
	require.NoError(t, err)

	require.NoError(t, h.prog.RevealAnswer(ctx))
	second, _, err := h.store.Snapshot(ctx, "HOST")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, h.prog.Running())
}

func TestProgressionNextQuestionAdvances(t *testing.T) {
	h := newHostHarness(t)
	h.nextTicker()
	h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == 3 }, "question reset")
	ctx := context.Background()

	require.NoError(t, h.prog.RevealAnswer(ctx))
	h.waitFor(func(s model.GameSession) bool { return s.ShowAnswer }, "revealed")

	require.NoError(t, h.prog.NextQuestion(ctx))
	h.waitFor(func(s model.GameSession) bool {
		return s.CurrentQuestionIndex == 1 && s.TimeLeft == 2 && !s.ShowAnswer
	}, "second question reset")
	h.nextTicker()
	assert.Eventually(t, func() bool { return h.voice.Said("Vraag twee?") }, eventually, poll)

	require.NoError(t, h.prog.NextQuestion(ctx))
	h.waitFor(func(s model.GameSession) bool {
		return s.CurrentRoundIndex == 1 && s.CurrentQuestionIndex == 0 && s.TimeLeft == 2
	}, "next round")
	assert.Eventually(t, func() bool { return h.voice.Said("Ronde 2: Dans. Dans!") }, eventually, poll)
}

func TestProgressionNextQuestionOnLastFinishes(t *testing.T) {
	h := newHostHarness(t, func(s *model.GameSession) {
		s.CurrentRoundIndex, s.CurrentQuestionIndex = 1, 0
	})
	h.nextTicker()
	h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == 2 && !s.ShowAnswer }, "last question reset")

	require.NoError(t, h.prog.NextQuestion(context.Background()))
	h.waitFor(func(s model.GameSession) bool { return s.Status == model.StatusFinished }, "finished")
	assert.Eventually(t, func() bool { return !h.prog.Running() }, eventually, poll)
}

func TestProgressionInvalidIndicesFinish(t *testing.T) {
	h := newHostHarness(t, func(s *model.GameSession) {
		s.CurrentRoundIndex, s.CurrentQuestionIndex = 9, 0
	})
	h.waitFor(func(s model.GameSession) bool { return s.CurrentRoundIndex == 9 }, "snapshot")
	assert.False(t, h.prog.Running())

	require.NoError(t, h.prog.NextQuestion(context.Background()))
	h.waitFor(func(s model.GameSession) bool { return s.Status == model.StatusFinished }, "finished")
}

func TestProgressionHandleScore(t *testing.T) {
	h := newHostHarness(t)
	ctx := context.Background()
	h.waitFor(func(s model.GameSession) bool { return len(s.Teams) == 2 }, "teams")

	require.NoError(t, h.prog.HandleScore(ctx, "p2", 3))
	h.waitFor(func(s model.GameSession) bool { return s.Teams[1].Score == 3 }, "score added")

	require.NoError(t, h.prog.HandleScore(ctx, "p1", -2))
	h.waitFor(func(s model.GameSession) bool { return s.Teams[0].Score == -2 }, "negative totals allowed")
	assert.Equal(t, 3, h.state().Teams[1].Score)

	before, _, err := h.store.Snapshot(ctx, "HOST")
	require.NoError(t, err)
	assert.ErrorIs(t, h.prog.HandleScore(ctx, "nobody", 1), ErrTeamNotFound)
	after, _, err := h.store.Snapshot(ctx, "HOST")
	require.NoError(t, err)
	assert.Equal(t, *before.Teams, *after.Teams)
}

func TestProgressionToggleQuizMasterSilences(t *testing.T) {
	voice := newBlockingVoice()
	h := newHostHarnessVoice(t, voice)
	ctx := context.Background()
	h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == 3 }, "question reset")
	waitStarted(t, voice, "Ronde 1: Sport. Vraag een?")
	assert.True(t, h.prog.narrator.Speaking())

	require.NoError(t, h.prog.ToggleQuizMaster(ctx))
	assert.False(t, h.prog.narrator.Speaking())
	h.waitFor(func(s model.GameSession) bool { return !s.QuizMasterEnabled }, "narration off")

	require.NoError(t, h.prog.ToggleQuizMaster(ctx))
	h.waitFor(func(s model.GameSession) bool { return s.QuizMasterEnabled }, "narration on")
}

func TestProgressionPlayerStaysIdle(t *testing.T) {
	store := cache.NewMemoryStore()
	syncer := NewSynchronizer(store)
	tickers := 0
	var mu sync.Mutex
	prog := NewProgression(syncer, NewNarrator(&recordingVoice{}), NewCues(language.Dutch),
		WithTicker(func(time.Duration) (<-chan time.Time, func()) {
			mu.Lock()
			tickers++
			mu.Unlock()
			return make(chan time.Time), func() {}
		}))
	defer prog.Close()
	defer syncer.Unwatch()

	doc := model.NewSession()
	doc.RoomCode = "PLAY"
	doc.Rounds = gameRounds()
	doc.Status = model.StatusPlaying
	doc.CurrentRoundIndex, doc.CurrentQuestionIndex = 0, 0
	doc.TimeLeft = 3
	require.NoError(t, store.Set(context.Background(), "PLAY", doc.Snapshot()))

	local := model.NewSession()
	local.Role = model.RolePlayer
	syncer.Replace(local)
	require.NoError(t, syncer.Watch(context.Background(), "PLAY"))
	require.Eventually(t, func() bool { return syncer.State().Status == model.StatusPlaying }, eventually, poll)

	ctx := context.Background()
	assert.ErrorIs(t, prog.RevealAnswer(ctx), ErrNotHost)
	assert.ErrorIs(t, prog.NextQuestion(ctx), ErrNotHost)
	assert.ErrorIs(t, prog.HandleScore(ctx, "x", 1), ErrNotHost)
	assert.ErrorIs(t, prog.ToggleQuizMaster(ctx), ErrNotHost)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, tickers)
	assert.False(t, prog.Running())
}

func TestProgressionStopsWhenLeavingPlay(t *testing.T) {
	h := newHostHarness(t)
	h.nextTicker()
	assert.True(t, h.prog.Running())

	require.NoError(t, h.store.Update(context.Background(), "HOST", model.Update{Status: model.Ptr(model.StatusFinished)}))
	h.waitFor(func(s model.GameSession) bool { return s.Status == model.StatusFinished }, "finished")
	assert.Eventually(t, func() bool { return !h.prog.Running() }, eventually, poll)
}

// heldStore writes through to a MemoryStore but only delivers the snapshots the
// test hands it, so echoes can arrive late or out of order
type heldStore struct {
	*cache.MemoryStore
	pending chan model.Update
}

func newHeldStore() *heldStore {
	return &heldStore{MemoryStore: cache.NewMemoryStore(), pending: make(chan model.Update, 16)}
}

func (s *heldStore) Subscribe(ctx context.Context, code string) (<-chan model.Update, error) {
	out := make(chan model.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-s.pending:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *heldStore) stored(t *testing.T) model.Update {
	t.Helper()
	doc, ok, err := s.Snapshot(context.Background(), "HOST")
	require.NoError(t, err)
	require.True(t, ok)
	return doc
}

func (s *heldStore) deliver(u model.Update) {
	s.pending <- u
}

func TestProgressionLateTickEchoDoesNotRestartCountdown(t *testing.T) {
	ctx := context.Background()
	store := newHeldStore()
	tickers := make(chan chan time.Time, 16)
	syncer := NewSynchronizer(store)
	prog := NewProgression(syncer, NewNarrator(&recordingVoice{}), NewCues(language.Dutch),
		WithTicker(func(time.Duration) (<-chan time.Time, func()) {
			ch := make(chan time.Time)
			tickers <- ch
			return ch, func() {}
		}))
	t.Cleanup(func() {
		syncer.Unwatch()
		prog.Close()
	})
	h := &hostHarness{t: t, syncer: syncer, prog: prog, tickers: tickers}

	doc := model.NewSession()
	doc.RoomCode = "HOST"
	doc.Rounds = gameRounds()
	doc.Status = model.StatusPlaying
	doc.CurrentRoundIndex, doc.CurrentQuestionIndex = 0, 0
	require.NoError(t, store.Set(ctx, "HOST", doc.Snapshot()))

	local := model.NewSession()
	local.RoomCode = "HOST"
	local.Role = model.RoleHost
	syncer.Replace(local)
	require.NoError(t, syncer.Watch(ctx, "HOST"))

	store.deliver(store.stored(t))
	require.Eventually(t, func() bool { return *store.stored(t).TimeLeft == 3 }, eventually, poll, "question reset written")
	store.deliver(store.stored(t))
	ticker := h.nextTicker()

	h.tick(ticker)
	require.Eventually(t, func() bool { return *store.stored(t).TimeLeft == 2 }, eventually, poll, "tick written")
	lateEcho := store.stored(t)

	require.NoError(t, prog.RevealAnswer(ctx))
	assert.True(t, *store.stored(t).ShowAnswer)
	assert.False(t, prog.Running())

	// The tick's echo arrives after the reveal was written but before its echo
	store.deliver(lateEcho)
	h.waitFor(func(s model.GameSession) bool { return s.TimeLeft == 2 && !s.ShowAnswer }, "late echo applied")
	assert.Never(t, func() bool { return len(tickers) > 0 }, 200*time.Millisecond, poll, "countdown restarted after reveal")
	assert.False(t, prog.Running())

	require.NoError(t, prog.RevealAnswer(ctx), "revealing again before the echo is a no-op")
	assert.Equal(t, 2, *store.stored(t).TimeLeft, "timeLeft stays frozen")

	store.deliver(store.stored(t))
	h.waitFor(func(s model.GameSession) bool { return s.ShowAnswer }, "reveal echo")

	// A new question clears the reveal and counts down again
	require.NoError(t, prog.NextQuestion(ctx))
	store.deliver(store.stored(t))
	require.Eventually(t, func() bool {
		s := store.stored(t)
		return *s.CurrentQuestionIndex == 1 && *s.TimeLeft == 2 && !*s.ShowAnswer
	}, eventually, poll, "second question reset written")
	store.deliver(store.stored(t))
	h.nextTicker()
}
