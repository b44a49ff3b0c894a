package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squizy/internal/model"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "room:ABCD:doc", docKey("ABCD"))
	assert.Equal(t, "room:ABCD:changes", changesChannel("ABCD"))
}

// redisClient connects to REDIS_URI or skips the test
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	uri := os.Getenv("REDIS_URI")
	if uri == "" {
		t.Skip("REDIS_URI not set")
	}
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSessionCacheRoundTrip(t *testing.T) {
	client := redisClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewSessionCache(client, time.Minute)
	code := "T" + time.Now().Format("150405")
	defer c.Delete(context.Background(), code)

	require.NoError(t, c.Set(ctx, code, model.NewSession().Snapshot()))

	ch, err := c.Subscribe(ctx, code)
	require.NoError(t, err)
	first := receive(t, ch)
	assert.Equal(t, model.StatusLobby, *first.Status)

	require.NoError(t, c.Update(ctx, code, model.Update{TimeLeft: model.Ptr(7)}))
	next := receive(t, ch)
	assert.Equal(t, 7, *next.TimeLeft)
	assert.Equal(t, model.StatusLobby, *next.Status)

	ttl, err := client.TTL(ctx, docKey(code)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestLeaderboardCache(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()

	lb := NewLeaderboardCache(client, time.Minute)
	code := "L" + time.Now().Format("150405")
	defer client.Del(ctx, "room:"+code+":lb", "room:"+code+":lb:names")

	require.NoError(t, lb.SyncTeams(ctx, code, []model.Team{
		{ID: "t1", Name: "Team Alpha", Score: 3},
		{ID: "t2", Name: "Team Omega", Score: 5},
	}))

	top, err := lb.GetTop(ctx, code, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "t2", top[0].TeamID)
	assert.Equal(t, "Team Omega", top[0].Name)
	assert.Equal(t, 1, top[0].Rank)

	rank, err := lb.GetRank(ctx, code, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)
}
