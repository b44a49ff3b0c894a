package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"squizy/internal/model"
)

// LeaderboardCache handles Redis ZSET operations for team standings
type LeaderboardCache interface {
	SyncTeams(ctx context.Context, roomCode string, teams []model.Team) error
	GetTop(ctx context.Context, roomCode string, limit int) ([]LeaderboardEntry, error)
	GetRank(ctx context.Context, roomCode, teamID string) (int64, error)
}

// LeaderboardEntry represents a single leaderboard entry
type LeaderboardEntry struct {
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}

type leaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) LeaderboardCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &leaderboardCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *leaderboardCache) key(roomCode string) string {
	return fmt.Sprintf("room:%s:lb", roomCode)
}

func (c *leaderboardCache) namesKey(roomCode string) string {
	return fmt.Sprintf("room:%s:lb:names", roomCode)
}

// SyncTeams replaces the standings with the given team scores
func (c *leaderboardCache) SyncTeams(ctx context.Context, roomCode string, teams []model.Team) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key(roomCode), c.namesKey(roomCode))
	if len(teams) > 0 {
		members := make([]redis.Z, len(teams))
		names := make(map[string]interface{}, len(teams))
		for i, t := range teams {
			members[i] = redis.Z{Score: float64(t.Score), Member: t.ID}
			names[t.ID] = t.Name
		}
		pipe.ZAdd(ctx, c.key(roomCode), members...)
		pipe.HSet(ctx, c.namesKey(roomCode), names)
		pipe.Expire(ctx, c.key(roomCode), c.ttl)
		pipe.Expire(ctx, c.namesKey(roomCode), c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *leaderboardCache) GetTop(ctx context.Context, roomCode string, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	if len(results) == 0 {
		return entries, nil
	}
	ids := make([]string, len(results))
	for i, z := range results {
		ids[i], _ = z.Member.(string)
	}
	names, err := c.client.HMGet(ctx, c.namesKey(roomCode), ids...).Result()
	if err != nil {
		return nil, err
	}

	for i, z := range results {
		entries[i] = LeaderboardEntry{
			TeamID: ids[i],
			Score:  int(z.Score),
			Rank:   i + 1,
		}
		if i < len(names) {
			entries[i].Name, _ = names[i].(string)
		}
	}
	return entries, nil
}

func (c *leaderboardCache) GetRank(ctx context.Context, roomCode, teamID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(roomCode), teamID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err // 1-indexed
}
