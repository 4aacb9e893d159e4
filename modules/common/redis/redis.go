package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"storyreel-server/modules/common/config"
)

// PipelineQueueKey - list consumed by the full-pipeline worker (BRPOP)
const PipelineQueueKey = "pipeline:queue"

const cancelFlagTTL = 24 * time.Hour

// Connect - create a redis client
func Connect(cfg *config.Config) *redis.Client {
	log.Printf("🔌 Connecting to Redis: %s", cfg.GetRedisAddr())

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // managed Redis with self-signed certs
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("🔍 Testing Redis connection...")
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("❌ Redis ping failed: %v", err)
		return nil
	}

	return rdb
}

func cancelKey(runID string) string {
	return "runs:cancelled:" + runID
}

// SetRunCancelled - flag a pipeline run as cancelled so workers in any
// process stop starting new items
func SetRunCancelled(rdb *redis.Client, runID string) error {
	if rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.Set(ctx, cancelKey(runID), "1", cancelFlagTTL).Err()
}

// IsRunCancelled - check the cancel flag for a run. Errors count as
// not-cancelled; the in-process context is the authoritative signal.
func IsRunCancelled(rdb *redis.Client, runID string) bool {
	if rdb == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := rdb.Exists(ctx, cancelKey(runID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// PushPipelineRequest - enqueue a serialized full-pipeline run request
func PushPipelineRequest(rdb *redis.Client, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.LPush(ctx, PipelineQueueKey, payload).Err()
}
