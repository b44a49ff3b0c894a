package model

// RoundType defines the kind of challenge a round or question poses
type RoundType string

const (
	RoundNormal  RoundType = "NORMAL"  // Knowledge question
	RoundDoe     RoundType = "DOE"     // Performative challenge, no single correct option
	RoundRaadsel RoundType = "RAADSEL" // Riddle
	RoundMuziek  RoundType = "MUZIEK"  // Music facts and artists
)

// RoundTypes lists every round type in rotation order
var RoundTypes = []RoundType{RoundNormal, RoundDoe, RoundRaadsel, RoundMuziek}

// Valid reports whether t is one of the known round types
func (t RoundType) Valid() bool {
	switch t {
	case RoundNormal, RoundDoe, RoundRaadsel, RoundMuziek:
		return true
	}
	return false
}

// OptionCount is the number of options a multiple-choice question carries
const OptionCount = 4

// Question is a single quiz prompt
type Question struct {
	ID          string    `json:"id" bson:"id"`
	Type        RoundType `json:"type" bson:"type"`
	Text        string    `json:"text" bson:"text"`
	Options     []string  `json:"options,omitempty" bson:"options,omitempty"` // Exactly OptionCount when present
	Answer      string    `json:"answer" bson:"answer"`
	Explanation string    `json:"explanation,omitempty" bson:"explanation,omitempty"`
	ImageHint   string    `json:"imageHint,omitempty" bson:"imageHint,omitempty"`
	Timer       int       `json:"timer" bson:"timer"` // Seconds allotted, > 0
}

// Round is a themed block of questions
type Round struct {
	Number    int        `json:"number" bson:"number"` // 1-based
	Theme     string     `json:"theme" bson:"theme"`
	Type      RoundType  `json:"type" bson:"type"`
	Questions []Question `json:"questions" bson:"questions"`
}

// QuestionType returns the question's own type, falling back to the round type
func (r Round) QuestionType(q Question) RoundType {
	if q.Type.Valid() {
		return q.Type
	}
	return r.Type
}
