package service

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Voice renders one utterance. Say blocks until playback ends or ctx is cancelled.
type Voice interface {
	Say(ctx context.Context, text string) error
}

type utterance struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Narrator plays at most one utterance at a time. A new utterance cancels the
// current one and starts only after it has wound down.
type Narrator struct {
	voice Voice

	mu      sync.Mutex
	current *utterance
}

// NewNarrator creates a narrator speaking through voice
func NewNarrator(voice Voice) *Narrator {
	return &Narrator{voice: voice}
}

// Announce starts an utterance in the background and returns a channel that is
// closed when it has finished or been cancelled. The utterance is registered
// before Announce returns, so a later Stop always cancels it.
func (n *Narrator) Announce(ctx context.Context, text string) <-chan struct{} {
	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{ctx: uctx, cancel: cancel, done: make(chan struct{})}

	n.mu.Lock()
	prev := n.current
	n.current = u
	n.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	go n.play(u, prev, text)
	return u.done
}

// Speak plays text and returns once playback ends or is cancelled. It never fails;
// voice errors are logged.
func (n *Narrator) Speak(ctx context.Context, text string) {
	<-n.Announce(ctx, text)
}

// Stop cancels the active utterance, if any, and waits for it to end. Safe to call repeatedly.
func (n *Narrator) Stop() {
	n.mu.Lock()
	cur := n.current
	n.current = nil
	n.mu.Unlock()

	if cur == nil {
		return
	}
	cur.cancel()
	<-cur.done
}

// Speaking reports whether an utterance is registered
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current != nil
}

func (n *Narrator) play(u *utterance, prev *utterance, text string) {
	defer func() {
		u.cancel()
		n.mu.Lock()
		if n.current == u {
			n.current = nil
		}
		n.mu.Unlock()
		close(u.done)
	}()

	if prev != nil {
		<-prev.done
	}
	if u.ctx.Err() != nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := n.voice.Say(u.ctx, text); err != nil && u.ctx.Err() == nil {
		log.Printf("[narrator] playback failed: %v", err)
	}
}
