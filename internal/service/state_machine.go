package service

import (
	"fmt"

	"squizy/internal/model"
)

const (
	DefaultTeamOneName = "Team Alpha"
	DefaultTeamTwoName = "Team Omega"

	MinThemes = 1
	MaxThemes = 4
)

// CheckTransition reports whether a client with the given role may move the
// session from its current status to the target status.
func CheckTransition(s model.GameSession, role model.Role, to model.Status) error {
	from := s.Status

	// Returning to the lobby is a local reset and always allowed
	if to == model.StatusLobby {
		return nil
	}

	switch {
	case from == model.StatusLobby && to == model.StatusWaiting:
		return nil

	case from == model.StatusWaiting && to == model.StatusSetup:
		if role != model.RoleHost {
			return ErrNotHost
		}
		if len(s.Players) < 1 {
			return ErrNotEnoughPlayers
		}
		return nil

	case from == model.StatusSetup && to == model.StatusCategorySelection:
		if role != model.RoleHost {
			return ErrNotHost
		}
		if s.Length != model.LengthCustom {
			return fmt.Errorf("%w: theme selection needs a custom length", ErrInvalidTransition)
		}
		return nil

	case from == model.StatusSetup && to == model.StatusPlaying:
		if role != model.RoleHost {
			return ErrNotHost
		}
		if s.Length == model.LengthCustom {
			return fmt.Errorf("%w: custom games pick themes first", ErrInvalidTransition)
		}
		return nil

	case from == model.StatusCategorySelection && to == model.StatusPlaying,
		from == model.StatusPlaying && to == model.StatusPlaying,
		from == model.StatusPlaying && to == model.StatusFinished:
		if role != model.RoleHost {
			return ErrNotHost
		}
		return nil
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CheckJoin reports whether a player may join a room in the given remote state
func CheckJoin(remote model.GameSession) error {
	if remote.Status != model.StatusWaiting {
		return fmt.Errorf("%w: room %s is %s", ErrRoomNotJoinable, remote.RoomCode, remote.Status)
	}
	return nil
}

// CheckThemes validates a custom theme selection
func CheckThemes(themes []string) error {
	if len(themes) < MinThemes || len(themes) > MaxThemes {
		return fmt.Errorf("%w: got %d", ErrThemeSelection, len(themes))
	}
	return nil
}

// BuildTeams groups players for scoring. Individual mode gives every player a
// team of one keyed by the player id. Team mode always builds two teams of two
// slots; missing slots are filled with the first player.
func BuildTeams(mode model.Mode, players []model.Player, names [2]string) []model.Team {
	if mode == model.ModeIndividual {
		teams := make([]model.Team, len(players))
		for i, p := range players {
			teams[i] = model.Team{
				ID:      p.ID,
				Name:    p.Name,
				Players: []model.Player{p},
			}
		}
		return teams
	}

	if len(players) == 0 {
		return []model.Team{}
	}
	slot := func(i int) model.Player {
		if i < len(players) {
			return players[i]
		}
		return players[0]
	}
	if names[0] == "" {
		names[0] = DefaultTeamOneName
	}
	if names[1] == "" {
		names[1] = DefaultTeamTwoName
	}
	return []model.Team{
		{ID: "t1", Name: names[0], Players: []model.Player{slot(0), slot(1)}},
		{ID: "t2", Name: names[1], Players: []model.Player{slot(2), slot(3)}},
	}
}
