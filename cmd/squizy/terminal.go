package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"squizy/internal/model"
	"squizy/internal/service"
)

var errUsage = errors.New("unknown command, type help")

const help = `commands:
  setup                         open the setup screen (host)
  start MODE LENGTH [T1 T2]     MODE individual|teams, LENGTH normal|long|custom
  themes                        list suggested themes of a custom game
  pick I,J,... [COUNT]          play the numbered themes, COUNT questions in total
  reveal | next | master        drive the current question (host)
  score TEAM DELTA              add DELTA points to a team id
  lobby | state | quit`

// game is the part of service.Client the terminal drives
type game interface {
	State() model.GameSession
	Themes() []string
	StartSetup(ctx context.Context) error
	CompleteSetup(ctx context.Context, opts service.SetupOptions) error
	SelectCategories(ctx context.Context, themes []string, questionCount int) error
	RevealAnswer(ctx context.Context) error
	NextQuestion(ctx context.Context) error
	HandleScore(ctx context.Context, teamID string, delta int) error
	ToggleQuizMaster(ctx context.Context) error
	Reset()
}

type terminal struct {
	client game
	out    io.Writer
	mu     sync.Mutex
}

// run executes one input line. It reports whether the user asked to quit.
func (t *terminal) run(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		t.printf("%s\n", help)
	case "setup":
		return false, t.client.StartSetup(ctx)
	case "start":
		opts, err := parseSetup(args)
		if err != nil {
			return false, err
		}
		return false, t.client.CompleteSetup(ctx, opts)
	case "themes":
		for i, theme := range t.client.Themes() {
			t.printf("  %d. %s\n", i+1, theme)
		}
	case "pick":
		themes, count, err := parsePick(args, t.client.Themes())
		if err != nil {
			return false, err
		}
		return false, t.client.SelectCategories(ctx, themes, count)
	case "reveal":
		return false, t.client.RevealAnswer(ctx)
	case "next":
		return false, t.client.NextQuestion(ctx)
	case "master":
		return false, t.client.ToggleQuizMaster(ctx)
	case "score":
		if len(args) != 2 {
			return false, errors.New("usage: score TEAM DELTA")
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("invalid score delta %q", args[1])
		}
		return false, t.client.HandleScore(ctx, args[0], delta)
	case "lobby":
		t.client.Reset()
	case "state":
		t.render(model.GameSession{}, t.client.State())
	case "quit", "exit":
		return true, nil
	default:
		return false, errUsage
	}
	return false, nil
}

func parseSetup(args []string) (service.SetupOptions, error) {
	var opts service.SetupOptions
	if len(args) != 2 && len(args) != 4 {
		return opts, errors.New("usage: start MODE LENGTH [TEAM1 TEAM2]")
	}

	switch strings.ToLower(args[0]) {
	case "individual", "solo":
		opts.Mode = model.ModeIndividual
	case "teams", "team":
		opts.Mode = model.ModeTeams
	default:
		return opts, fmt.Errorf("unknown mode %q", args[0])
	}

	switch strings.ToLower(args[1]) {
	case "normal":
		opts.Length = model.LengthNormal
	case "long":
		opts.Length = model.LengthLong
	case "custom":
		opts.Length = model.LengthCustom
	default:
		return opts, fmt.Errorf("unknown length %q", args[1])
	}

	if len(args) == 4 {
		opts.TeamNames = [2]string{args[2], args[3]}
	}
	return opts, nil
}

// parsePick maps 1-based theme numbers to the offered themes
func parsePick(args []string, offered []string) ([]string, int, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, 0, errors.New("usage: pick I,J,... [COUNT]")
	}

	var themes []string
	for _, part := range strings.Split(args[0], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > len(offered) {
			return nil, 0, fmt.Errorf("no theme numbered %q", part)
		}
		themes = append(themes, offered[n-1])
	}

	count := service.DefaultCustomQuestions
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, 0, fmt.Errorf("invalid question count %q", args[1])
		}
		count = n
	}
	return themes, count, nil
}

// render prints what changed between two local states
func (t *terminal) render(prev, next model.GameSession) {
	if next.Status != prev.Status {
		t.printf("== %s ==\n", next.Status)
	}

	switch next.Status {
	case model.StatusWaiting:
		if len(next.Players) != len(prev.Players) {
			t.printf("Room %s, players:\n", next.RoomCode)
			for _, p := range next.Players {
				icon := ""
				if a, ok := model.FindAvatar(p.Avatar); ok {
					icon = a.Icon
				}
				t.printf("  %s %s\n", icon, p.Name)
			}
		}
	case model.StatusPlaying:
		t.renderQuestion(prev, next)
	case model.StatusFinished:
		if prev.Status != model.StatusFinished {
			t.renderStandings(next)
		}
	}
}

func (t *terminal) renderQuestion(prev, next model.GameSession) {
	round, ok := next.CurrentRound()
	if !ok {
		return
	}
	q, ok := next.CurrentQuestion()
	if !ok {
		return
	}

	moved := prev.Status != model.StatusPlaying ||
		prev.CurrentRoundIndex != next.CurrentRoundIndex ||
		prev.CurrentQuestionIndex != next.CurrentQuestionIndex
	if moved {
		t.printf("Round %d (%s) question %d/%d\n", round.Number, round.Theme, next.CurrentQuestionIndex+1, len(round.Questions))
		t.printf("  %s\n", q.Text)
		for i, opt := range q.Options {
			t.printf("  %c) %s\n", 'A'+i, opt)
		}
	}
	if next.TimeLeft != prev.TimeLeft && next.TimeLeft > 0 && next.TimeLeft%5 == 0 {
		t.printf("  %ds left\n", next.TimeLeft)
	}
	if next.ShowAnswer && !prev.ShowAnswer {
		t.printf("  Answer: %s\n", q.Answer)
		if q.Explanation != "" {
			t.printf("  %s\n", q.Explanation)
		}
	}
	if next.QuizMasterEnabled != prev.QuizMasterEnabled && !moved {
		t.printf("  quiz master %s\n", onOff(next.QuizMasterEnabled))
	}
}

func (t *terminal) renderStandings(s model.GameSession) {
	t.printf("Final standings:\n")
	for i, team := range s.Standings() {
		t.printf("  %d. %s (%s) %d\n", i+1, team.Name, team.ID, team.Score)
	}
}

func (t *terminal) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
