package model

import "sort"

// Status is the lifecycle phase of a game session
type Status string

const (
	StatusLobby             Status = "LOBBY"
	StatusWaiting           Status = "WAITING_FOR_PLAYERS"
	StatusSetup             Status = "SETUP"
	StatusCategorySelection Status = "CATEGORY_SELECTION"
	StatusPlaying           Status = "PLAYING"
	StatusFinished          Status = "FINISHED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusLobby, StatusWaiting, StatusSetup, StatusCategorySelection, StatusPlaying, StatusFinished:
		return true
	}
	return false
}

// Mode selects how players are grouped for scoring
type Mode string

const (
	ModeIndividual Mode = "INDIVIDUAL"
	ModeTeams      Mode = "TEAMS"
)

func (m Mode) Valid() bool {
	return m == ModeIndividual || m == ModeTeams
}

// Length is the number of rounds a game plays. Custom games pick themes instead.
type Length int

const (
	LengthCustom Length = 0
	LengthNormal Length = 5
	LengthLong   Length = 10
)

func (l Length) Valid() bool {
	return l == LengthCustom || l == LengthNormal || l == LengthLong
}

// Rounds returns the round count for fixed lengths, 0 for custom games
func (l Length) Rounds() int {
	return int(l)
}

// Role is the client-local position of a device in a room
type Role string

const (
	RoleNone   Role = ""
	RoleHost   Role = "HOST"
	RolePlayer Role = "PLAYER"
)

// GameSession is the shared per-room document plus the client-local role and identity
type GameSession struct {
	RoomCode             string   `json:"roomCode" bson:"roomCode"`
	Role                 Role     `json:"-" bson:"-"` // Local only, never written to the store
	PlayerID             string   `json:"-" bson:"-"` // Local only
	Players              []Player `json:"players" bson:"players"`
	Teams                []Team   `json:"teams" bson:"teams"`
	Mode                 Mode     `json:"mode" bson:"mode"`
	Length               Length   `json:"length" bson:"length"`
	Rounds               []Round  `json:"rounds" bson:"rounds"`
	CurrentRoundIndex    int      `json:"currentRoundIndex" bson:"currentRoundIndex"`
	CurrentQuestionIndex int      `json:"currentQuestionIndex" bson:"currentQuestionIndex"` // -1 before play
	Status               Status   `json:"status" bson:"status"`
	QuizMasterEnabled    bool     `json:"quizMasterEnabled" bson:"quizMasterEnabled"`
	ShowAnswer           bool     `json:"showAnswer" bson:"showAnswer"`
	TimeLeft             int      `json:"timeLeft" bson:"timeLeft"`
	CurrentAnswerID      string   `json:"currentAnswerId,omitempty" bson:"currentAnswerId,omitempty"` // Reserved
}

// NewSession returns the fresh local state every client starts from
func NewSession() GameSession {
	return GameSession{
		Players:              []Player{},
		Teams:                []Team{},
		Mode:                 ModeIndividual,
		Length:               LengthNormal,
		Rounds:               []Round{},
		CurrentRoundIndex:    -1,
		CurrentQuestionIndex: -1,
		Status:               StatusLobby,
		QuizMasterEnabled:    true,
	}
}

// IsHost reports whether this client drives the game
func (s GameSession) IsHost() bool {
	return s.Role == RoleHost
}

// Apply merges an update into the session. Fields present in u replace local values,
// absent fields are kept.
func (s GameSession) Apply(u Update) GameSession {
	if u.RoomCode != nil {
		s.RoomCode = *u.RoomCode
	}
	if u.Players != nil {
		s.Players = *u.Players
	}
	if u.Teams != nil {
		s.Teams = *u.Teams
	}
	if u.Mode != nil {
		s.Mode = *u.Mode
	}
	if u.Length != nil {
		s.Length = *u.Length
	}
	if u.Rounds != nil {
		s.Rounds = *u.Rounds
	}
	if u.CurrentRoundIndex != nil {
		s.CurrentRoundIndex = *u.CurrentRoundIndex
	}
	if u.CurrentQuestionIndex != nil {
		s.CurrentQuestionIndex = *u.CurrentQuestionIndex
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.QuizMasterEnabled != nil {
		s.QuizMasterEnabled = *u.QuizMasterEnabled
	}
	if u.ShowAnswer != nil {
		s.ShowAnswer = *u.ShowAnswer
	}
	if u.TimeLeft != nil {
		s.TimeLeft = *u.TimeLeft
	}
	if u.CurrentAnswerID != nil {
		s.CurrentAnswerID = *u.CurrentAnswerID
	}
	return s
}

// Snapshot returns an update carrying every shared field of the session
func (s GameSession) Snapshot() Update {
	u := Update{
		RoomCode:             Ptr(s.RoomCode),
		Players:              Ptr(nonNil(s.Players)),
		Teams:                Ptr(nonNil(s.Teams)),
		Mode:                 Ptr(s.Mode),
		Length:               Ptr(s.Length),
		Rounds:               Ptr(nonNil(s.Rounds)),
		CurrentRoundIndex:    Ptr(s.CurrentRoundIndex),
		CurrentQuestionIndex: Ptr(s.CurrentQuestionIndex),
		Status:               Ptr(s.Status),
		QuizMasterEnabled:    Ptr(s.QuizMasterEnabled),
		ShowAnswer:           Ptr(s.ShowAnswer),
		TimeLeft:             Ptr(s.TimeLeft),
	}
	if s.CurrentAnswerID != "" {
		u.CurrentAnswerID = Ptr(s.CurrentAnswerID)
	}
	return u
}

// CurrentRound returns the round at the current index
func (s GameSession) CurrentRound() (Round, bool) {
	if s.CurrentRoundIndex < 0 || s.CurrentRoundIndex >= len(s.Rounds) {
		return Round{}, false
	}
	return s.Rounds[s.CurrentRoundIndex], true
}

// CurrentQuestion returns the question at the current indices
func (s GameSession) CurrentQuestion() (Question, bool) {
	r, ok := s.CurrentRound()
	if !ok || s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[s.CurrentQuestionIndex], true
}

// Standings returns the teams ordered by score, highest first. Ties keep their order.
func (s GameSession) Standings() []Team {
	teams := make([]Team, len(s.Teams))
	copy(teams, s.Teams)
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].Score > teams[j].Score
	})
	return teams
}

// FindTeam returns the index of the team with the given id, or -1
func (s GameSession) FindTeam(id string) int {
	for i, t := range s.Teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
