package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"squizy/internal/cache"
	"squizy/internal/model"
	"squizy/internal/repository"
)

// RoomService is the relay side of the shared store. It validates writes, keeps
// the leaderboard in step with team scores and archives finished games.
type RoomService struct {
	sessions    cache.SessionCache
	leaderboard cache.LeaderboardCache
	games       repository.GameRepo
	now         func() time.Time
}

// NewRoomService creates a new room service. leaderboard and games may be nil.
func NewRoomService(sessions cache.SessionCache, leaderboard cache.LeaderboardCache, games repository.GameRepo) *RoomService {
	return &RoomService{
		sessions:    sessions,
		leaderboard: leaderboard,
		games:       games,
		now:         time.Now,
	}
}

// GetRoom returns the stored document; ok is false when the room does not exist
func (s *RoomService) GetRoom(ctx context.Context, code string) (model.Update, bool, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return model.Update{}, false, err
	}
	return s.sessions.Snapshot(ctx, code)
}

// SetRoom replaces the whole document of a room
func (s *RoomService) SetRoom(ctx context.Context, code string, doc model.Update) error {
	return s.write(ctx, code, doc, true)
}

// PatchRoom merges the present fields into a room document
func (s *RoomService) PatchRoom(ctx context.Context, code string, u model.Update) error {
	return s.write(ctx, code, u, false)
}

// Subscribe streams whole-document snapshots of a room
func (s *RoomService) Subscribe(ctx context.Context, code string) (<-chan model.Update, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	return s.sessions.Subscribe(ctx, code)
}

// GetLeaderboard returns the top teams of a room
func (s *RoomService) GetLeaderboard(ctx context.Context, code string, limit int) ([]cache.LeaderboardEntry, error) {
	if s.leaderboard == nil {
		return []cache.LeaderboardEntry{}, nil
	}
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	return s.leaderboard.GetTop(ctx, code, limit)
}

// GetTeamRank returns a team's 1-based place in the standings, or -1 when the
// team is not ranked
func (s *RoomService) GetTeamRank(ctx context.Context, code, teamID string) (int64, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return 0, err
	}
	if s.leaderboard == nil {
		return -1, nil
	}
	return s.leaderboard.GetRank(ctx, code, teamID)
}

// DeleteRoom drops a room document. Open connections stay attached to the code.
func (s *RoomService) DeleteRoom(ctx context.Context, code string) error {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, code); err != nil {
		return err
	}
	log.Printf("[relay] room %s deleted", code)
	return nil
}

// GetHistory returns the archived game for a room code, or nil
func (s *RoomService) GetHistory(ctx context.Context, code string) (*model.GameRecord, error) {
	if s.games == nil {
		return nil, nil
	}
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	return s.games.GetByRoomCode(ctx, code)
}

// RecentGames returns the latest archived games
func (s *RoomService) RecentGames(ctx context.Context, limit int) ([]*model.GameRecord, error) {
	if s.games == nil {
		return []*model.GameRecord{}, nil
	}
	return s.games.Recent(ctx, limit)
}

func (s *RoomService) write(ctx context.Context, code string, u model.Update, replace bool) error {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return err
	}
	if _, errs := u.Sanitize(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	if u.RoomCode != nil && *u.RoomCode != code {
		return fmt.Errorf("%w: roomCode %q does not match %q", model.ErrInvalidField, *u.RoomCode, code)
	}

	if replace {
		err = s.sessions.Set(ctx, code, u)
	} else {
		err = s.sessions.Update(ctx, code, u)
	}
	if err != nil {
		return fmt.Errorf("store room %s: %w", code, err)
	}

	s.afterWrite(ctx, code, u)
	return nil
}

// afterWrite runs the side effects of a stored write. Their failures are logged
// and never fail the write itself.
func (s *RoomService) afterWrite(ctx context.Context, code string, u model.Update) {
	if u.Teams != nil && s.leaderboard != nil {
		if err := s.leaderboard.SyncTeams(ctx, code, *u.Teams); err != nil {
			log.Printf("[relay] room %s: leaderboard sync failed: %v", code, err)
		}
	}

	if u.Status != nil && *u.Status == model.StatusFinished && s.games != nil {
		if err := s.archive(ctx, code); err != nil {
			log.Printf("[relay] room %s: archive failed: %v", code, err)
		}
	}
}

func (s *RoomService) archive(ctx context.Context, code string) error {
	doc, ok, err := s.sessions.Snapshot(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoRoom
	}
	session := model.NewSession().Apply(doc)
	session.RoomCode = code

	record := model.NewGameRecord(session, s.now())
	if err := s.games.Save(ctx, &record); err != nil {
		return err
	}
	log.Printf("[relay] room %s: archived game with %d teams", code, len(record.Standings))
	return nil
}
