package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"squizy/internal/config"
	"squizy/internal/model"
)

const (
	DefaultQuestionTimer = 30 // seconds
	QuestionsPerRound    = 5  // fixed-length games
	SuggestedThemeCount  = 12

	DefaultCustomQuestions = 20
	MinCustomQuestions     = 5
	MaxCustomQuestions     = 40
	CustomQuestionStep     = 5
)

// FallbackThemes is offered when theme suggestion fails
var FallbackThemes = []string{
	"Actualiteit", "Muziek", "Sport", "Film & TV", "Wetenschap", "Geschiedenis", "Eten & Drinken", "Aardrijkskunde",
}

// DefaultThemes feeds fixed-length games, one theme per round in order
var DefaultThemes = []string{
	"Actualiteit", "Netflix", "Nostalgie", "Sport", "Wetenschap", "Muziek", "Eten", "Reizen", "Gen Z", "Technologie",
}

// ContentGenerator produces quiz content
type ContentGenerator interface {
	SuggestThemes(ctx context.Context) []string
	GenerateRounds(ctx context.Context, roundCount int, themes []string, totalQuestions int) []model.Round
}

// ContentService generates themes and rounds with Gemini, or offline when no API key is set
type ContentService struct {
	gemini *geminiClient
	lang   language.Tag
}

// NewContentService creates a new content service
func NewContentService(cfg *config.AIConfig) *ContentService {
	return &ContentService{
		gemini: newGeminiClient(cfg),
		lang:   cfg.Language,
	}
}

// Plan returns the round count, themes and question total for a game.
// Fixed lengths use the default themes with five questions per round.
func Plan(length model.Length, selected []string, questionCount int) (int, []string, int) {
	if length != model.LengthCustom {
		return length.Rounds(), DefaultThemes, length.Rounds() * QuestionsPerRound
	}
	return len(selected), selected, questionCount
}

// CheckQuestionCount validates the question total of a custom game
func CheckQuestionCount(n int) error {
	if n < MinCustomQuestions || n > MaxCustomQuestions || n%CustomQuestionStep != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuestionCnt, n)
	}
	return nil
}

// SuggestThemes returns up to twelve themes for a broad audience.
// It never fails; any problem yields the fallback list.
func (s *ContentService) SuggestThemes(ctx context.Context) []string {
	if !s.gemini.config.IsEnabled() {
		return append([]string(nil), FallbackThemes...)
	}

	response, err := s.gemini.callJSON(ctx, s.gemini.config.Models.Content, s.buildThemesPrompt())
	if err != nil {
		log.Printf("[content] theme suggestion failed: %v", err)
		return append([]string(nil), FallbackThemes...)
	}

	themes := parseThemes(response)
	if len(themes) == 0 {
		log.Printf("[content] theme suggestion returned no usable themes")
		return append([]string(nil), FallbackThemes...)
	}
	if len(themes) > SuggestedThemeCount {
		themes = themes[:SuggestedThemeCount]
	}
	return themes
}

// GenerateRounds returns roundCount rounds holding totalQuestions questions in total.
// Round i takes themes[i]. Failure or malformed output yields an empty slice.
func (s *ContentService) GenerateRounds(ctx context.Context, roundCount int, themes []string, totalQuestions int) []model.Round {
	if roundCount <= 0 || totalQuestions <= 0 {
		return []model.Round{}
	}
	themes = roundThemes(roundCount, themes)

	if !s.gemini.config.IsEnabled() {
		return mockRounds(roundCount, themes, totalQuestions)
	}

	response, err := s.gemini.callJSON(ctx, s.gemini.config.Models.Content, s.buildRoundsPrompt(roundCount, themes, totalQuestions))
	if err != nil {
		log.Printf("[content] round generation failed: %v", err)
		return []model.Round{}
	}

	rounds, err := parseRounds(response)
	if err != nil {
		log.Printf("[content] malformed rounds: %v", err)
		return []model.Round{}
	}
	if len(rounds) > roundCount {
		rounds = rounds[:roundCount]
	}
	rounds, err = fitRounds(NormalizeRounds(rounds, themes), roundCount, totalQuestions)
	if err != nil {
		log.Printf("[content] malformed rounds: %v", err)
		return []model.Round{}
	}
	return rounds
}

// fitRounds holds normalized rounds to the plan: exactly roundCount rounds with
// the question counts of distribute. Surplus questions are cut from the end of a
// round; a missing round or a short round makes the whole game unusable.
func fitRounds(rounds []model.Round, roundCount, totalQuestions int) ([]model.Round, error) {
	if len(rounds) != roundCount {
		return nil, fmt.Errorf("got %d playable rounds, want %d", len(rounds), roundCount)
	}

	counts := distribute(totalQuestions, roundCount)
	for i := range rounds {
		if len(rounds[i].Questions) < counts[i] {
			return nil, fmt.Errorf("round %d has %d questions, want %d", i+1, len(rounds[i].Questions), counts[i])
		}
		rounds[i].Questions = rounds[i].Questions[:counts[i]]
	}
	return rounds, nil
}

// NormalizeRounds repairs generated rounds: renumbers them, gives round i the
// theme themes[i], fills missing ids and types, drops option lists that are not
// exactly four long, replaces non-positive timers and drops questions without
// text and rounds left empty.
func NormalizeRounds(rounds []model.Round, themes []string) []model.Round {
	out := make([]model.Round, 0, len(rounds))
	for pos, r := range rounds {
		i := len(out)
		if !r.Type.Valid() {
			r.Type = model.RoundTypes[pos%len(model.RoundTypes)]
		}
		if pos < len(themes) {
			r.Theme = themes[pos]
		}

		questions := make([]model.Question, 0, len(r.Questions))
		for _, q := range r.Questions {
			if strings.TrimSpace(q.Text) == "" {
				continue
			}
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			if !q.Type.Valid() {
				q.Type = r.Type
			}
			if len(q.Options) != model.OptionCount {
				q.Options = nil
			}
			if q.Timer <= 0 {
				q.Timer = DefaultQuestionTimer
			}
			questions = append(questions, q)
		}
		if len(questions) == 0 {
			continue
		}

		r.Questions = questions
		r.Number = i + 1
		out = append(out, r)
	}
	return out
}

// distribute spreads total over n rounds, earlier rounds taking the remainder.
// Every round gets at least one question.
func distribute(total, n int) []int {
	counts := make([]int, n)
	for i := range counts {
		counts[i] = total / n
		if i < total%n {
			counts[i]++
		}
		if counts[i] == 0 {
			counts[i] = 1
		}
	}
	return counts
}

// roundThemes picks one theme per round, cycling when there are too few
func roundThemes(n int, themes []string) []string {
	if len(themes) == 0 {
		themes = FallbackThemes
	}
	out := make([]string, n)
	for i := range out {
		out[i] = themes[i%len(themes)]
	}
	return out
}

func parseThemes(response string) []string {
	var list []string
	if err := json.Unmarshal([]byte(response), &list); err != nil {
		var wrapped struct {
			Themes []string `json:"themes"`
		}
		if err := json.Unmarshal([]byte(response), &wrapped); err != nil {
			return nil
		}
		list = wrapped.Themes
	}

	themes := make([]string, 0, len(list))
	seen := make(map[string]bool)
	for _, t := range list {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		themes = append(themes, t)
	}
	return themes
}

func parseRounds(response string) ([]model.Round, error) {
	var wrapped struct {
		Rounds []model.Round `json:"rounds"`
	}
	if err := json.Unmarshal([]byte(response), &wrapped); err == nil && len(wrapped.Rounds) > 0 {
		return wrapped.Rounds, nil
	}
	var rounds []model.Round
	if err := json.Unmarshal([]byte(response), &rounds); err != nil {
		return nil, err
	}
	return rounds, nil
}

// Prompt builders
func (s *ContentService) languageName() string {
	return display.Tags(language.English).Name(s.lang)
}

func (s *ContentService) buildThemesPrompt() string {
	return fmt.Sprintf(`You are the quiz master of SQUIZY, a party quiz for a mixed group aged 12 to 67.
Suggest %d varied, fun quiz themes. Write them in %s, at most three words each.
Return ONLY a JSON array of strings.`, SuggestedThemeCount, s.languageName())
}

func (s *ContentService) buildRoundsPrompt(roundCount int, themes []string, totalQuestions int) string {
	counts := distribute(totalQuestions, roundCount)
	var plan strings.Builder
	for i := 0; i < roundCount; i++ {
		fmt.Fprintf(&plan, "- Round %d: theme %q, %d questions, type %s\n",
			i+1, themes[i], counts[i], model.RoundTypes[i%len(model.RoundTypes)])
	}

	return fmt.Sprintf(`You are the quiz master of SQUIZY, a party quiz for a mixed group aged 12 to 67.
Write %d rounds with %d questions in total, in %s. Return ONLY valid JSON matching this schema:
{
  "rounds": [
    {
      "number": 1,
      "theme": "theme",
      "type": "NORMAL" or "DOE" or "RAADSEL" or "MUZIEK",
      "questions": [
        {
          "type": same as the round type,
          "text": "the question",
          "options": exactly 4 strings, or omit for open questions and DOE challenges,
          "answer": "the correct answer",
          "explanation": "one short fun fact",
          "imageHint": "optional short visual hint",
          "timer": seconds to answer, 15 to 45
        }
      ]
    }
  ]
}

Round plan:
%s
NORMAL is general knowledge, DOE is a challenge the players perform, RAADSEL is a riddle,
MUZIEK is about songs and artists. Keep questions short enough to read aloud.`,
		roundCount, totalQuestions, s.languageName(), plan.String())
}

// Offline content
func mockRounds(roundCount int, themes []string, totalQuestions int) []model.Round {
	counts := distribute(totalQuestions, roundCount)
	rounds := make([]model.Round, roundCount)
	for i := range rounds {
		typ := model.RoundTypes[i%len(model.RoundTypes)]
		theme := themes[i]
		questions := make([]model.Question, counts[i])
		for j := range questions {
			questions[j] = mockQuestion(typ, theme, j+1)
		}
		rounds[i] = model.Round{
			Number:    i + 1,
			Theme:     theme,
			Type:      typ,
			Questions: questions,
		}
	}
	return rounds
}

func mockQuestion(typ model.RoundType, theme string, n int) model.Question {
	q := model.Question{
		ID:    uuid.NewString(),
		Type:  typ,
		Timer: DefaultQuestionTimer,
	}
	switch typ {
	case model.RoundDoe:
		q.Text = fmt.Sprintf("Opdracht %d: beeld iets uit dat met %s te maken heeft.", n, theme)
		q.Answer = "Applaus voor de beste uitbeelding"
	case model.RoundRaadsel:
		q.Text = fmt.Sprintf("Raadsel %d: ik hoor bij %s, wat ben ik?", n, theme)
		q.Answer = theme
		q.Explanation = "Het thema van deze ronde."
	case model.RoundMuziek:
		q.Text = fmt.Sprintf("Muziekvraag %d over %s: welk instrument heeft zes snaren?", n, theme)
		q.Options = []string{"Gitaar", "Viool", "Harp", "Banjo"}
		q.Answer = "Gitaar"
		q.Explanation = "Een standaard gitaar heeft zes snaren."
	default:
		q.Text = fmt.Sprintf("Vraag %d over %s: hoeveel minuten zitten er in een uur?", n, theme)
		q.Options = []string{"60", "30", "90", "100"}
		q.Answer = "60"
		q.Explanation = "Een uur heeft zestig minuten."
	}
	return q
}
