package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squizy/internal/cache"
	"squizy/internal/model"
)

const eventually = 2 * time.Second
const poll = 5 * time.Millisecond

type transition struct {
	prev, next model.GameSession
}

type observerLog struct {
	mu  sync.Mutex
	log []transition
}

func (o *observerLog) observe(prev, next model.GameSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log = append(o.log, transition{prev, next})
}

func (o *observerLog) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.log)
}

func (o *observerLog) Last() transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log[len(o.log)-1]
}

// failingStore rejects every write
type failingStore struct {
	*cache.MemoryStore
}

func (failingStore) Update(ctx context.Context, code string, u model.Update) error {
	return errors.New("store offline")
}

func TestSynchronizerWatchMergesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	s := NewSynchronizer(store)
	defer s.Unwatch()

	var obs observerLog
	s.Observe(obs.observe)

	local := model.NewSession()
	local.Role = model.RolePlayer
	local.PlayerID = "p1"
	s.Replace(local)
	require.Equal(t, 1, obs.Len())

	require.NoError(t, store.Set(ctx, "ROOM", model.Update{
		RoomCode: model.Ptr("ROOM"),
		Status:   model.Ptr(model.StatusWaiting),
	}))
	require.NoError(t, s.Watch(ctx, "ROOM"))

	assert.Eventually(t, func() bool { return s.State().Status == model.StatusWaiting }, eventually, poll)
	got := s.State()
	assert.Equal(t, "ROOM", got.RoomCode)
	assert.Equal(t, model.RolePlayer, got.Role, "local role survives remote snapshots")
	assert.Equal(t, "p1", got.PlayerID)
	assert.True(t, got.QuizMasterEnabled, "fields missing from the snapshot are kept")

	last := obs.Last()
	assert.Equal(t, model.StatusLobby, last.prev.Status)
	assert.Equal(t, model.StatusWaiting, last.next.Status)
}

func TestSynchronizerWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	s := NewSynchronizer(store)
	defer s.Unwatch()

	require.ErrorIs(t, s.Write(ctx, model.Update{TimeLeft: model.Ptr(3)}), ErrNoRoom)

	s.Apply(model.Update{RoomCode: model.Ptr("ECHO")})
	require.NoError(t, s.Watch(ctx, "ECHO"))
	require.NoError(t, s.Write(ctx, model.Update{TimeLeft: model.Ptr(3)}))

	assert.Eventually(t, func() bool { return s.State().TimeLeft == 3 }, eventually, poll)
}

func TestSynchronizerWriteFailureIsReturned(t *testing.T) {
	s := NewSynchronizer(failingStore{cache.NewMemoryStore()})
	s.Apply(model.Update{RoomCode: model.Ptr("DOWN")})

	err := s.Write(context.Background(), model.Update{TimeLeft: model.Ptr(1)})
	assert.Error(t, err)
	assert.Equal(t, 0, s.State().TimeLeft)
}

func TestSynchronizerRewatchDropsOldSubscription(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	s := NewSynchronizer(store)
	defer s.Unwatch()

	require.NoError(t, s.Watch(ctx, "ONE"))
	assert.Equal(t, 1, store.Subscribers("ONE"))

	require.NoError(t, s.Watch(ctx, "TWO"))
	assert.Eventually(t, func() bool { return store.Subscribers("ONE") == 0 }, eventually, poll)
	assert.Equal(t, 1, store.Subscribers("TWO"))

	// Writes to the old room no longer reach this client
	require.NoError(t, store.Update(ctx, "ONE", model.Update{TimeLeft: model.Ptr(42)}))
	require.NoError(t, store.Update(ctx, "TWO", model.Update{TimeLeft: model.Ptr(7)}))
	assert.Eventually(t, func() bool { return s.State().TimeLeft == 7 }, eventually, poll)
	assert.Never(t, func() bool { return s.State().TimeLeft == 42 }, 50*time.Millisecond, poll)

	s.Unwatch()
	assert.Eventually(t, func() bool { return store.Subscribers("TWO") == 0 }, eventually, poll)
	s.Unwatch()
}

func TestSynchronizerDropsInvalidFields(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	s := NewSynchronizer(store)
	defer s.Unwatch()

	require.NoError(t, s.Watch(ctx, "BAD"))
	require.NoError(t, store.Update(ctx, "BAD", model.Update{
		Status:   model.Ptr(model.Status("EXPLODED")),
		TimeLeft: model.Ptr(-3),
		RoomCode: model.Ptr("BAD"),
	}))

	assert.Eventually(t, func() bool { return s.State().RoomCode == "BAD" }, eventually, poll)
	assert.Equal(t, model.StatusLobby, s.State().Status)
	assert.Equal(t, 0, s.State().TimeLeft)
}

func TestSynchronizerAppliesSnapshotsInOrder(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	s := NewSynchronizer(store)
	defer s.Unwatch()

	var obs observerLog
	s.Observe(obs.observe)
	require.NoError(t, s.Watch(ctx, "SEQ"))

	for i := 1; i <= 20; i++ {
		require.NoError(t, store.Update(ctx, "SEQ", model.Update{TimeLeft: model.Ptr(i)}))
	}
	assert.Eventually(t, func() bool { return s.State().TimeLeft == 20 }, eventually, poll)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for i := 1; i < len(obs.log); i++ {
		assert.LessOrEqual(t, obs.log[i].prev.TimeLeft, obs.log[i].next.TimeLeft)
		assert.Equal(t, obs.log[i-1].next, obs.log[i].prev)
	}
}
