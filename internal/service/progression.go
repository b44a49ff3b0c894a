package service

import (
	"context"
	"log"
	"sync"
	"time"

	"squizy/internal/model"
)

// TickerFunc starts a periodic ticker and returns its channel and a stop function
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type questionKey struct {
	round, question int
}

func keyOf(s model.GameSession) questionKey {
	return questionKey{round: s.CurrentRoundIndex, question: s.CurrentQuestionIndex}
}

type countdown struct {
	key    questionKey
	cancel context.CancelFunc
}

// Progression drives the host side of play: the per-question countdown, the
// answer reveal, scoring and advancing. On player devices it stays idle.
type Progression struct {
	syncer    *Synchronizer
	narrator  *Narrator
	cues      *Cues
	newTicker TickerFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	timer    *countdown
	awaiting *questionKey // question whose reset has been written but not yet seen
	revealed *questionKey // question whose answer has been written as shown
}

// ProgressionOption configures a Progression
type ProgressionOption func(*Progression)

// WithTicker replaces the one-second ticker, mainly for tests
func WithTicker(fn TickerFunc) ProgressionOption {
	return func(p *Progression) { p.newTicker = fn }
}

// NewProgression creates a controller and attaches it to the synchronizer
func NewProgression(s *Synchronizer, narrator *Narrator, cues *Cues, opts ...ProgressionOption) *Progression {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Progression{
		syncer:    s,
		narrator:  narrator,
		cues:      cues,
		newTicker: realTicker,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	s.Observe(p.observe)
	return p
}

// Close stops the countdown and any narration
func (p *Progression) Close() {
	p.cancel()
	p.stopTimer()
	p.narrator.Stop()
}

// Running reports whether a countdown is active
func (p *Progression) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

func (p *Progression) observe(prev, next model.GameSession) {
	if !next.IsHost() || next.Status != model.StatusPlaying {
		p.stopTimer()
		p.mu.Lock()
		p.awaiting = nil
		p.revealed = nil
		p.mu.Unlock()
		if prev.Status == model.StatusPlaying && prev.IsHost() {
			p.narrator.Stop()
		}
		return
	}

	changed := !prev.IsHost() || prev.Status != model.StatusPlaying || keyOf(prev) != keyOf(next)
	if changed {
		p.stopTimer()
		p.enterQuestion(next)
		return
	}

	key := keyOf(next)
	p.mu.Lock()
	if p.awaiting != nil && *p.awaiting == key && !next.ShowAnswer {
		if q, ok := next.CurrentQuestion(); ok && next.TimeLeft == q.Timer {
			p.awaiting = nil
		}
	}
	ready := p.awaiting == nil && !p.isRevealed(key)
	p.mu.Unlock()

	if next.ShowAnswer || !ready {
		p.stopTimer()
		return
	}
	p.ensureTimer(key)
}

// enterQuestion resets the shared timer for a new question and announces it
func (p *Progression) enterQuestion(s model.GameSession) {
	p.narrator.Stop()

	q, ok := s.CurrentQuestion()
	if !ok {
		// NextQuestion finishes a game whose indices point nowhere
		log.Printf("[host] room %s: no question at round %d question %d", s.RoomCode, s.CurrentRoundIndex, s.CurrentQuestionIndex)
		return
	}

	key := keyOf(s)
	p.mu.Lock()
	p.awaiting = &key
	p.revealed = nil
	p.mu.Unlock()

	p.syncer.Write(p.ctx, model.Update{
		TimeLeft:   model.Ptr(q.Timer),
		ShowAnswer: model.Ptr(false),
	})

	if s.QuizMasterEnabled {
		round, _ := s.CurrentRound()
		p.narrator.Announce(p.ctx, p.cues.Intro(s.CurrentRoundIndex, s.CurrentQuestionIndex, round, q))
	}
}

// isRevealed must be called with p.mu held. Echoes of earlier ticks can arrive
// after the reveal was written; they must not restart the countdown.
func (p *Progression) isRevealed(key questionKey) bool {
	return p.revealed != nil && *p.revealed == key
}

func (p *Progression) ensureTimer(key questionKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil && p.timer.key == key {
		return
	}
	if p.timer != nil {
		p.timer.cancel()
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.timer = &countdown{key: key, cancel: cancel}
	ticks, stop := p.newTicker(time.Second)

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				p.tick(ctx, key)
			}
		}
	}()
}

// stopTimer cancels the countdown without waiting, so the countdown itself may call it
func (p *Progression) stopTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.cancel()
		p.timer = nil
	}
}

func (p *Progression) tick(ctx context.Context, key questionKey) {
	if ctx.Err() != nil {
		return
	}
	s := p.syncer.State()
	if !s.IsHost() || s.Status != model.StatusPlaying || s.ShowAnswer || keyOf(s) != key {
		return
	}
	p.mu.Lock()
	revealed := p.isRevealed(key)
	p.mu.Unlock()
	if revealed {
		return
	}
	if s.TimeLeft > 0 {
		p.syncer.Write(ctx, model.Update{TimeLeft: model.Ptr(s.TimeLeft - 1)})
		return
	}
	if err := p.RevealAnswer(p.ctx); err != nil {
		log.Printf("[host] room %s: reveal failed: %v", s.RoomCode, err)
	}
}

// RevealAnswer shows the answer of the current question and stops its countdown.
// Revealing twice has the same effect as revealing once.
func (p *Progression) RevealAnswer(ctx context.Context) error {
	s := p.syncer.State()
	if !s.IsHost() {
		return ErrNotHost
	}
	if s.Status != model.StatusPlaying {
		return ErrInvalidTransition
	}
	key := keyOf(s)
	p.mu.Lock()
	if s.ShowAnswer || p.isRevealed(key) {
		p.mu.Unlock()
		return nil
	}
	p.revealed = &key
	p.mu.Unlock()

	p.narrator.Stop()
	p.stopTimer()
	if err := p.syncer.Write(ctx, model.Update{ShowAnswer: model.Ptr(true)}); err != nil {
		p.mu.Lock()
		p.revealed = nil
		p.mu.Unlock()
		return err
	}

	if s.QuizMasterEnabled {
		if q, ok := s.CurrentQuestion(); ok {
			round, _ := s.CurrentRound()
			p.narrator.Announce(p.ctx, p.cues.Reveal(round, q))
		}
	}
	return nil
}

// NextQuestion moves to the next question, the first question of the next round,
// or finishes the game after the last question.
func (p *Progression) NextQuestion(ctx context.Context) error {
	s := p.syncer.State()
	if !s.IsHost() {
		return ErrNotHost
	}
	if s.Status != model.StatusPlaying {
		return ErrInvalidTransition
	}

	p.narrator.Stop()

	round, ok := s.CurrentRound()
	valid := ok && s.CurrentQuestionIndex >= 0 && s.CurrentQuestionIndex < len(round.Questions)
	switch {
	case valid && s.CurrentQuestionIndex < len(round.Questions)-1:
		return p.syncer.Write(ctx, model.Update{CurrentQuestionIndex: model.Ptr(s.CurrentQuestionIndex + 1)})
	case valid && s.CurrentRoundIndex < len(s.Rounds)-1:
		return p.syncer.Write(ctx, model.Update{
			CurrentRoundIndex:    model.Ptr(s.CurrentRoundIndex + 1),
			CurrentQuestionIndex: model.Ptr(0),
		})
	}

	p.stopTimer()
	return p.syncer.Write(ctx, model.Update{Status: model.Ptr(model.StatusFinished)})
}

// HandleScore adds delta to a team's score. Totals may go negative.
func (p *Progression) HandleScore(ctx context.Context, teamID string, delta int) error {
	s := p.syncer.State()
	if !s.IsHost() {
		return ErrNotHost
	}
	idx := s.FindTeam(teamID)
	if idx < 0 {
		return ErrTeamNotFound
	}

	teams := make([]model.Team, len(s.Teams))
	copy(teams, s.Teams)
	teams[idx].Score += delta
	return p.syncer.Write(ctx, model.Update{Teams: &teams})
}

// ToggleQuizMaster switches narration. Switching it off silences the current line.
func (p *Progression) ToggleQuizMaster(ctx context.Context) error {
	s := p.syncer.State()
	if !s.IsHost() {
		return ErrNotHost
	}
	enabled := !s.QuizMasterEnabled
	if !enabled {
		p.narrator.Stop()
	}
	return p.syncer.Write(ctx, model.Update{QuizMasterEnabled: model.Ptr(enabled)})
}
