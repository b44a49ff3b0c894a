package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRounds() []Round {
	return []Round{
		{Number: 1, Theme: "Sport", Type: RoundNormal, Questions: []Question{
			{ID: "q1", Type: RoundNormal, Text: "Hoeveel spelers?", Options: []string{"9", "10", "11", "12"}, Answer: "11", Timer: 30},
			{ID: "q2", Type: RoundNormal, Text: "Welke bal?", Answer: "Rond", Timer: 20},
		}},
		{Number: 2, Theme: "Muziek", Type: RoundDoe, Questions: []Question{
			{ID: "q3", Type: RoundDoe, Text: "Zing!", Answer: "Lalala", Timer: 15},
		}},
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StatusLobby, s.Status)
	assert.Equal(t, -1, s.CurrentRoundIndex)
	assert.Equal(t, -1, s.CurrentQuestionIndex)
	assert.True(t, s.QuizMasterEnabled)
	assert.Equal(t, ModeIndividual, s.Mode)
	assert.Equal(t, LengthNormal, s.Length)
	assert.Empty(t, s.Rounds)
	assert.False(t, s.IsHost())
}

func TestApplyMergesPresentFieldsOnly(t *testing.T) {
	base := NewSession()
	base.Role = RoleHost
	base.PlayerID = "host-1"
	base.RoomCode = "ABCD"
	base.TimeLeft = 12

	got := base.Apply(Update{
		Status:   Ptr(StatusPlaying),
		TimeLeft: Ptr(0),
	})

	assert.Equal(t, StatusPlaying, got.Status)
	assert.Equal(t, 0, got.TimeLeft)
	assert.Equal(t, "ABCD", got.RoomCode, "absent field must be kept")
	assert.Equal(t, RoleHost, got.Role, "local role is never touched")
	assert.Equal(t, "host-1", got.PlayerID)
	assert.Equal(t, 12, base.TimeLeft, "receiver is not modified")
}

func TestApplyMergeLaw(t *testing.T) {
	// Applying S1 then S2 equals applying {...S1, ...S2}
	s1 := Update{
		RoomCode:          Ptr("WXYZ"),
		Status:            Ptr(StatusSetup),
		QuizMasterEnabled: Ptr(false),
		Players:           Ptr([]Player{{ID: "p1", Name: "Anna"}}),
	}
	s2 := Update{
		Status:   Ptr(StatusPlaying),
		Rounds:   Ptr(sampleRounds()),
		TimeLeft: Ptr(30),
	}

	sequential := NewSession().Apply(s1).Apply(s2)
	merged := NewSession().Apply(s1.Merge(s2))

	assert.Equal(t, merged, sequential)
	assert.Equal(t, StatusPlaying, sequential.Status)
	assert.False(t, sequential.QuizMasterEnabled)
	assert.Len(t, sequential.Players, 1)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewSession()
	s.Role = RolePlayer
	s.PlayerID = "p9"
	s.RoomCode = "K3P0"
	s.Rounds = sampleRounds()
	s.CurrentRoundIndex = 1
	s.CurrentQuestionIndex = 0
	s.Status = StatusPlaying

	rebuilt := GameSession{}.Apply(s.Snapshot())
	rebuilt.Role = s.Role
	rebuilt.PlayerID = s.PlayerID
	assert.Equal(t, s, rebuilt)
}

func TestSnapshotJSONOmitsLocalFields(t *testing.T) {
	s := NewSession()
	s.Role = RoleHost
	s.PlayerID = "secret"

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "HOST")
	assert.NotContains(t, string(data), "currentAnswerId")
}

func TestCurrentQuestion(t *testing.T) {
	s := NewSession()
	s.Rounds = sampleRounds()

	_, ok := s.CurrentQuestion()
	assert.False(t, ok, "indices start at -1")

	s.CurrentRoundIndex, s.CurrentQuestionIndex = 0, 1
	q, ok := s.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, "q2", q.ID)

	s.CurrentRoundIndex, s.CurrentQuestionIndex = 1, 3
	_, ok = s.CurrentQuestion()
	assert.False(t, ok)

	s.CurrentRoundIndex = 7
	_, ok = s.CurrentRound()
	assert.False(t, ok)
}

func TestStandings(t *testing.T) {
	s := NewSession()
	s.Teams = []Team{
		{ID: "a", Score: 1},
		{ID: "b", Score: 5},
		{ID: "c", Score: 1},
		{ID: "d", Score: -2},
	}

	got := s.Standings()
	ids := make([]string, len(got))
	for i, team := range got {
		ids[i] = team.ID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
	assert.Equal(t, "a", s.Teams[0].ID, "session teams keep their order")
}

func TestNewPlayer(t *testing.T) {
	p := NewPlayer("id", "Maximiliaan de Grote", "taco")
	assert.Equal(t, "Maximiliaan ", p.Name)
	assert.Equal(t, "taco", p.Avatar)
	assert.Equal(t, 0, p.Score)

	p = NewPlayer("id", "Bo", "dinosaur")
	assert.Equal(t, "broccoli", p.Avatar)
}

func TestGameRecord(t *testing.T) {
	s := NewSession()
	s.RoomCode = "ZZZZ"
	s.Rounds = sampleRounds()
	s.Teams = []Team{{ID: "t1", Name: "Team Alpha", Score: 2}, {ID: "t2", Name: "Team Omega", Score: 4}}

	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewGameRecord(s, finished)

	assert.Equal(t, "ZZZZ", rec.RoomCode)
	assert.Equal(t, []string{"Sport", "Muziek"}, rec.Themes)
	assert.Equal(t, 3, rec.Questions)
	winner, ok := rec.Winner()
	require.True(t, ok)
	assert.Equal(t, "t2", winner.ID)
	assert.Equal(t, finished, rec.FinishedAt)
}

func TestLength(t *testing.T) {
	assert.Equal(t, 5, LengthNormal.Rounds())
	assert.Equal(t, 10, LengthLong.Rounds())
	assert.Equal(t, 0, LengthCustom.Rounds())
	assert.False(t, Length(7).Valid())
}
