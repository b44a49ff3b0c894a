package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"squizy/internal/model"
)

const (
	roomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLen   = 4
)

// SetupOptions are the host's choices on the setup screen
type SetupOptions struct {
	Mode      model.Mode
	Length    model.Length
	TeamNames [2]string
}

// Client is one device in a game. It owns the local session and exposes the
// actions a host or player can take. Failed actions are logged and returned;
// nothing is written when an action is rejected.
type Client struct {
	store       SessionStore
	content     ContentGenerator
	syncer      *Synchronizer
	narrator    *Narrator
	progression *Progression

	mu     sync.Mutex
	themes []string
}

// NewClient wires a synchronizer, narrator and progression controller around store
func NewClient(store SessionStore, content ContentGenerator, voice Voice, cues *Cues, opts ...ProgressionOption) *Client {
	syncer := NewSynchronizer(store)
	narrator := NewNarrator(voice)
	return &Client{
		store:       store,
		content:     content,
		syncer:      syncer,
		narrator:    narrator,
		progression: NewProgression(syncer, narrator, cues, opts...),
	}
}

// NewRoomCode returns a random four character room code. Codes are not checked for uniqueness.
func NewRoomCode() (string, error) {
	b := make([]byte, roomCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := make([]byte, roomCodeLen)
	for i := range code {
		code[i] = roomCodeChars[int(b[i])%len(roomCodeChars)]
	}
	return string(code), nil
}

// NormalizeRoomCode upper-cases a typed code and checks its shape
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != roomCodeLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
	}
	for _, c := range code {
		if !strings.ContainsRune(roomCodeChars, c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
		}
	}
	return code, nil
}

// State returns a copy of the local session
func (c *Client) State() model.GameSession {
	return c.syncer.State()
}

// Observe registers fn for every local state change
func (c *Client) Observe(fn Observer) {
	c.syncer.Observe(fn)
}

// Themes returns the themes offered for the current custom game
func (c *Client) Themes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.themes...)
}

// HostRoom creates a room with a fresh code and makes this client its host
func (c *Client) HostRoom(ctx context.Context) (string, error) {
	cur := c.State()
	if err := CheckTransition(cur, model.RoleHost, model.StatusWaiting); err != nil {
		return "", c.fail(cur, "host room", err)
	}

	code, err := NewRoomCode()
	if err != nil {
		return "", c.fail(cur, "host room", fmt.Errorf("room code: %w", err))
	}

	s := model.NewSession()
	s.RoomCode = code
	s.Role = model.RoleHost
	s.PlayerID = uuid.NewString()
	s.Status = model.StatusWaiting

	if err := c.store.Set(ctx, code, s.Snapshot()); err != nil {
		return "", c.fail(cur, "host room", fmt.Errorf("create room %s: %w", code, err))
	}
	c.syncer.Replace(s)
	if err := c.syncer.Watch(ctx, code); err != nil {
		return code, c.fail(s, "host room", err)
	}
	log.Printf("[host] hosting room %s", code)
	return code, nil
}

// JoinRoom adds a player to a room that is waiting for players. The join is
// rejected when the room does not exist or has moved past the waiting screen.
func (c *Client) JoinRoom(ctx context.Context, code, name, avatar string) error {
	cur := c.State()
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return c.fail(cur, "join", err)
	}
	if err := CheckTransition(cur, model.RolePlayer, model.StatusWaiting); err != nil {
		return c.fail(cur, "join", err)
	}

	doc, ok, err := c.store.Snapshot(ctx, code)
	if err != nil {
		return c.fail(cur, "join", fmt.Errorf("read room %s: %w", code, err))
	}
	if !ok {
		return c.fail(cur, "join", fmt.Errorf("%w: %s", ErrNoRoom, code))
	}
	clean, _ := doc.Sanitize()
	remote := model.NewSession().Apply(clean)
	if err := CheckJoin(remote); err != nil {
		return c.fail(cur, "join", err)
	}

	player := model.NewPlayer(uuid.NewString(), name, avatar)
	if !model.HasPlayer(remote.Players, player.ID) {
		players := append(append([]model.Player(nil), remote.Players...), player)
		if err := c.store.Update(ctx, code, model.Update{Players: &players}); err != nil {
			return c.fail(cur, "join", fmt.Errorf("add player: %w", err))
		}
		clean.Players = &players
	}

	local := model.NewSession()
	local.Role = model.RolePlayer
	local.PlayerID = player.ID
	c.syncer.Replace(local)
	// Mirror the joined room until the subscription delivers it
	clean.RoomCode = &code
	c.syncer.Apply(clean)
	if err := c.syncer.Watch(ctx, code); err != nil {
		return c.fail(c.State(), "join", err)
	}
	log.Printf("[player] %s joined room %s", player.Name, code)
	return nil
}

// StartSetup moves the room from the waiting screen to setup
func (c *Client) StartSetup(ctx context.Context) error {
	s := c.State()
	if err := CheckTransition(s, s.Role, model.StatusSetup); err != nil {
		return c.fail(s, "start setup", err)
	}
	return c.write(ctx, s, "start setup", model.Update{Status: model.Ptr(model.StatusSetup)})
}

// CompleteSetup applies the host's setup choices. Custom games continue to theme
// selection; fixed-length games generate their rounds and start playing.
func (c *Client) CompleteSetup(ctx context.Context, opts SetupOptions) error {
	s := c.State()
	if !opts.Mode.Valid() || !opts.Length.Valid() {
		return c.fail(s, "setup", fmt.Errorf("%w: mode %q length %d", model.ErrInvalidField, opts.Mode, opts.Length))
	}

	target := model.StatusPlaying
	if opts.Length == model.LengthCustom {
		target = model.StatusCategorySelection
	}
	next := s
	next.Length = opts.Length
	if err := CheckTransition(next, s.Role, target); err != nil {
		return c.fail(s, "setup", err)
	}

	teams := BuildTeams(opts.Mode, s.Players, opts.TeamNames)
	u := model.Update{
		Mode:   model.Ptr(opts.Mode),
		Length: model.Ptr(opts.Length),
		Teams:  &teams,
		Status: model.Ptr(target),
	}

	if target == model.StatusCategorySelection {
		themes := c.content.SuggestThemes(ctx)
		c.mu.Lock()
		c.themes = themes
		c.mu.Unlock()
		return c.write(ctx, s, "setup", u)
	}

	n, themes, total := Plan(opts.Length, nil, 0)
	rounds := c.content.GenerateRounds(ctx, n, themes, total)
	if len(rounds) == 0 {
		return c.fail(s, "setup", ErrNoPlayableContent)
	}
	u.Rounds = &rounds
	u.CurrentRoundIndex = model.Ptr(0)
	u.CurrentQuestionIndex = model.Ptr(0)
	return c.write(ctx, s, "setup", u)
}

// SuggestedThemes refreshes the offered themes
func (c *Client) SuggestedThemes(ctx context.Context) []string {
	themes := c.content.SuggestThemes(ctx)
	c.mu.Lock()
	c.themes = themes
	c.mu.Unlock()
	return append([]string(nil), themes...)
}

// SelectCategories generates a custom game from one to four themes and starts it
func (c *Client) SelectCategories(ctx context.Context, themes []string, questionCount int) error {
	s := c.State()
	if s.Status != model.StatusCategorySelection {
		return c.fail(s, "select themes", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, model.StatusPlaying))
	}
	if err := CheckTransition(s, s.Role, model.StatusPlaying); err != nil {
		return c.fail(s, "select themes", err)
	}
	if err := CheckThemes(themes); err != nil {
		return c.fail(s, "select themes", err)
	}
	if err := CheckQuestionCount(questionCount); err != nil {
		return c.fail(s, "select themes", err)
	}

	n, selected, total := Plan(model.LengthCustom, themes, questionCount)
	rounds := c.content.GenerateRounds(ctx, n, selected, total)
	if len(rounds) == 0 {
		return c.fail(s, "select themes", ErrNoPlayableContent)
	}
	return c.write(ctx, s, "select themes", model.Update{
		Rounds:               &rounds,
		Status:               model.Ptr(model.StatusPlaying),
		CurrentRoundIndex:    model.Ptr(0),
		CurrentQuestionIndex: model.Ptr(0),
	})
}

// RevealAnswer shows the current answer
func (c *Client) RevealAnswer(ctx context.Context) error {
	if err := c.progression.RevealAnswer(ctx); err != nil {
		return c.fail(c.State(), "reveal", err)
	}
	return nil
}

// NextQuestion advances the game
func (c *Client) NextQuestion(ctx context.Context) error {
	if err := c.progression.NextQuestion(ctx); err != nil {
		return c.fail(c.State(), "next", err)
	}
	return nil
}

// HandleScore adds delta points to a team
func (c *Client) HandleScore(ctx context.Context, teamID string, delta int) error {
	if err := c.progression.HandleScore(ctx, teamID, delta); err != nil {
		return c.fail(c.State(), "score", err)
	}
	return nil
}

// ToggleQuizMaster switches narration on or off
func (c *Client) ToggleQuizMaster(ctx context.Context) error {
	if err := c.progression.ToggleQuizMaster(ctx); err != nil {
		return c.fail(c.State(), "quiz master", err)
	}
	return nil
}

// Reset leaves the room and returns to a fresh lobby. The stored document is left to expire.
func (c *Client) Reset() {
	s := c.State()
	c.syncer.Unwatch()
	c.narrator.Stop()
	c.syncer.Replace(model.NewSession())
	c.mu.Lock()
	c.themes = nil
	c.mu.Unlock()
	if s.RoomCode != "" {
		log.Printf("[%s] left room %s", logRole(s), s.RoomCode)
	}
}

// Close releases the subscription, countdown and narration
func (c *Client) Close() {
	c.syncer.Unwatch()
	c.progression.Close()
}

func (c *Client) write(ctx context.Context, s model.GameSession, op string, u model.Update) error {
	if err := c.syncer.Write(ctx, u); err != nil {
		return c.fail(s, op, err)
	}
	return nil
}

func (c *Client) fail(s model.GameSession, op string, err error) error {
	if s.RoomCode != "" {
		log.Printf("[%s] room %s: %s: %v", logRole(s), s.RoomCode, op, err)
	} else {
		log.Printf("[%s] %s: %v", logRole(s), op, err)
	}
	return err
}

func logRole(s model.GameSession) string {
	if s.IsHost() {
		return "host"
	}
	return "player"
}
