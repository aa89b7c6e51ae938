package data

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaderboardPrefix = "leaderboard:"

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// CacheLeaderboard stores a rendered leaderboard JSON payload for a short TTL.
func CacheLeaderboard(ctx context.Context, rdb *redis.Client, kind string, payload []byte) error {
	return rdb.Set(ctx, leaderboardPrefix+kind, payload, 30*time.Second).Err()
}

func GetLeaderboard(ctx context.Context, rdb *redis.Client, kind string) ([]byte, error) {
	return rdb.Get(ctx, leaderboardPrefix+kind).Bytes()
}
