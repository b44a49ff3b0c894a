package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"squizy/internal/model"
)

// Observer is called after local state changes, with the state before and after.
// Observers run on the delivering goroutine without the synchronizer lock held.
type Observer func(prev, next model.GameSession)

// Synchronizer mirrors one room document from the store into local state and
// forwards local mutations to the store as partial updates.
type Synchronizer struct {
	store SessionStore

	mu        sync.Mutex
	state     model.GameSession
	observers []Observer
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSynchronizer creates a synchronizer starting from a fresh lobby session
func NewSynchronizer(store SessionStore) *Synchronizer {
	return &Synchronizer{
		store: store,
		state: model.NewSession(),
	}
}

// State returns a copy of the local session
func (s *Synchronizer) State() model.GameSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Observe registers fn for every future state change
func (s *Synchronizer) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Watch subscribes to a room. Any previous subscription is torn down first.
func (s *Synchronizer) Watch(ctx context.Context, code string) error {
	s.Unwatch()

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := s.store.Subscribe(subCtx, code)
	if err != nil {
		cancel()
		log.Printf("[sync] subscribe to room %s failed: %v", code, err)
		return fmt.Errorf("subscribe: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(code, ch, done)
	return nil
}

// Unwatch stops the current subscription and waits for its delivery loop to end.
// It must not be called from an observer.
func (s *Synchronizer) Unwatch() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Synchronizer) run(code string, ch <-chan model.Update, done chan struct{}) {
	defer close(done)
	for u := range ch {
		clean, errs := u.Sanitize()
		for _, err := range errs {
			log.Printf("[sync] room %s: dropped %v", code, err)
		}
		s.change(func(cur model.GameSession) model.GameSession {
			return cur.Apply(clean)
		})
	}
}

// Write merges u into the stored document of the current room.
// Failures are logged and returned; callers may ignore them.
func (s *Synchronizer) Write(ctx context.Context, u model.Update) error {
	code := s.State().RoomCode
	if code == "" {
		return ErrNoRoom
	}
	if err := s.store.Update(ctx, code, u); err != nil {
		log.Printf("[sync] write to room %s failed: %v", code, err)
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Apply merges u into local state only
func (s *Synchronizer) Apply(u model.Update) {
	s.change(func(cur model.GameSession) model.GameSession {
		return cur.Apply(u)
	})
}

// Replace swaps the whole local state, including role and identity
func (s *Synchronizer) Replace(next model.GameSession) {
	s.change(func(model.GameSession) model.GameSession {
		return next
	})
}

func (s *Synchronizer) change(fn func(model.GameSession) model.GameSession) {
	s.mu.Lock()
	prev := s.state
	next := fn(prev)
	s.state = next
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o(prev, next)
	}
}
