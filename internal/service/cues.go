package service

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"squizy/internal/model"
)

func init() {
	nl := language.Dutch
	message.SetString(nl, "cue.round", "Ronde %d: %s.")
	message.SetString(nl, "cue.reveal.doe", "Tijd is om! %s.")
	message.SetString(nl, "cue.reveal", "Het juiste antwoord is: %s. %s")
	message.SetString(nl, "cue.speaker", "SQUIZY zegt: %s")

	en := language.English
	message.SetString(en, "cue.round", "Round %d: %s.")
	message.SetString(en, "cue.reveal.doe", "Time is up! %s.")
	message.SetString(en, "cue.reveal", "The correct answer is: %s. %s")
	message.SetString(en, "cue.speaker", "SQUIZY says: %s")
}

// Cues renders the quiz master lines in one language
type Cues struct {
	printer *message.Printer
}

// NewCues creates a cue renderer for the given language
func NewCues(lang language.Tag) *Cues {
	return &Cues{printer: message.NewPrinter(lang)}
}

// Intro announces a question. The round is announced only on its first question.
func (c *Cues) Intro(roundIndex, questionIndex int, round model.Round, q model.Question) string {
	if questionIndex != 0 {
		return q.Text
	}
	return c.printer.Sprintf("cue.round", roundIndex+1, round.Theme) + " " + q.Text
}

// Reveal announces the answer. Performative questions get a shorter line.
func (c *Cues) Reveal(round model.Round, q model.Question) string {
	if round.QuestionType(q) == model.RoundDoe {
		return c.printer.Sprintf("cue.reveal.doe", q.Answer)
	}
	return strings.TrimSpace(c.printer.Sprintf("cue.reveal", q.Answer, q.Explanation))
}

// Speaker wraps a line in the prompt used for speech synthesis
func (c *Cues) Speaker(text string) string {
	return c.printer.Sprintf("cue.speaker", text)
}
