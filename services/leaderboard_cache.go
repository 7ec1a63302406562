package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaderboardPointsKey = "leaderboard:points"

// LeaderboardCache is an optional redis sorted-set mirror of players'
// points, for cheap top-N reads by dashboards. The in-memory leaderboard
// stays authoritative — the full ranking needs the wins and insertion
// tiebreakers a ZSET cannot express.
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCacheFromEnv connects when REDIS_ADDR is set; otherwise
// the cache is disabled and (nil, nil) is returned.
func NewLeaderboardCacheFromEnv() (*LeaderboardCache, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("✅ [REDIS] leaderboard cache connected to %s", addr)
	return &LeaderboardCache{rdb: rdb}, nil
}

// AddPoints increments a player's cached points.
func (c *LeaderboardCache) AddPoints(player Address, points int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.rdb.ZIncrBy(ctx, leaderboardPointsKey, float64(points), string(player)).Err()
}

// CachedPoints is one row of the points-only view.
type CachedPoints struct {
	Player Address `json:"player"`
	Points int64   `json:"points"`
}

// TopPoints returns the top players by cached points (highest first).
func (c *LeaderboardCache) TopPoints(ctx context.Context, limit int64) ([]CachedPoints, error) {
	rows, err := c.rdb.ZRevRangeWithScores(ctx, leaderboardPointsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached leaderboard: %w", err)
	}
	out := make([]CachedPoints, 0, len(rows))
	for _, z := range rows {
		member, _ := z.Member.(string)
		out = append(out, CachedPoints{Player: Address(member), Points: int64(z.Score)})
	}
	return out, nil
}
