package model

import "time"

// GameRecord is a finished game kept for history lookups after the live room expires
type GameRecord struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	RoomCode   string    `json:"roomCode" bson:"roomCode"`
	Mode       Mode      `json:"mode" bson:"mode"`
	Length     Length    `json:"length" bson:"length"`
	Players    []Player  `json:"players" bson:"players"`
	Standings  []Team    `json:"standings" bson:"standings"` // Highest score first
	Themes     []string  `json:"themes" bson:"themes"`
	Questions  int       `json:"questions" bson:"questions"`
	FinishedAt time.Time `json:"finishedAt" bson:"finishedAt"`
}

// NewGameRecord summarizes a session for the archive
func NewGameRecord(s GameSession, finishedAt time.Time) GameRecord {
	rec := GameRecord{
		RoomCode:   s.RoomCode,
		Mode:       s.Mode,
		Length:     s.Length,
		Players:    nonNil(s.Players),
		Standings:  s.Standings(),
		Themes:     []string{},
		FinishedAt: finishedAt,
	}
	for _, r := range s.Rounds {
		rec.Themes = append(rec.Themes, r.Theme)
		rec.Questions += len(r.Questions)
	}
	return rec
}

// Winner returns the leading team, if any
func (r GameRecord) Winner() (Team, bool) {
	if len(r.Standings) == 0 {
		return Team{}, false
	}
	return r.Standings[0], true
}
