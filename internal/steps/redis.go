package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "step:"

type stepRecord struct {
	Token     string    `json:"token"`
	Data      []byte    `json:"data,omitempty"`
	EnteredAt time.Time `json:"entered_at"`
}

// RedisStore keeps conversation steps in Redis with a TTL, one key per chat.
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func redisKey(chatID int64) string {
	return redisKeyPrefix + strconv.FormatInt(chatID, 10)
}

func (s *RedisStore) Current(ctx context.Context, chatID int64) (string, []byte, error) {
	raw, err := s.client.Get(ctx, redisKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrNoStep
	}
	if err != nil {
		return "", nil, fmt.Errorf("get step: %w", err)
	}
	var rec stepRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", nil, fmt.Errorf("unmarshal step: %w", err)
	}
	return rec.Token, rec.Data, nil
}

func (s *RedisStore) Enter(ctx context.Context, chatID int64, token string, data []byte) error {
	rec := stepRecord{Token: token, Data: data, EnteredAt: time.Now().UTC()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(chatID), raw, StepTTL).Err(); err != nil {
		return fmt.Errorf("set step: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, redisKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clear step: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
