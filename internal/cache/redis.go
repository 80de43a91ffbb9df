package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"colorbet/internal/game"
)

const (
	keyCurrentRound = "colorbet:round:current"
	keyResults      = "colorbet:round:results"

	historyMaxLen = 100
)

// Service is a read-side cache in front of Postgres: the current round
// snapshot and the settled-results list. Postgres stays authoritative; a
// cache miss falls through to the store.
type Service interface {
	GetClient() *redis.Client
	SetCurrentRound(ctx context.Context, snapshot game.RoundSnapshot) error
	CurrentRound(ctx context.Context) (game.RoundSnapshot, bool)
	PushResult(ctx context.Context, round game.Round) error
	RecentResults(ctx context.Context, limit int) ([]game.Round, bool)
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without Redis cache")
		return nil
	}

	log.Println("[CACHE] Redis connected successfully")

	cacheInstance = &service{client: client}
	return cacheInstance
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

// SetCurrentRound stores the latest client-facing round snapshot. The TTL
// covers scheduler hiccups: a stale snapshot expires instead of lingering.
func (s *service) SetCurrentRound(ctx context.Context, snapshot game.RoundSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyCurrentRound, data, 5*time.Second).Err()
}

func (s *service) CurrentRound(ctx context.Context) (game.RoundSnapshot, bool) {
	data, err := s.client.Get(ctx, keyCurrentRound).Bytes()
	if err != nil {
		return game.RoundSnapshot{}, false
	}
	var snapshot game.RoundSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return game.RoundSnapshot{}, false
	}
	return snapshot, true
}

// PushResult prepends a settled round to the capped history list.
func (s *service) PushResult(ctx context.Context, round game.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, keyResults, data)
	pipe.LTrim(ctx, keyResults, 0, historyMaxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *service) RecentResults(ctx context.Context, limit int) ([]game.Round, bool) {
	if limit <= 0 || limit > historyMaxLen {
		limit = historyMaxLen
	}
	raw, err := s.client.LRange(ctx, keyResults, 0, int64(limit-1)).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	rounds := make([]game.Round, 0, len(raw))
	for _, item := range raw {
		var round game.Round
		if err := json.Unmarshal([]byte(item), &round); err != nil {
			return nil, false
		}
		rounds = append(rounds, round)
	}
	return rounds, true
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	return s.client.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
