package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cityforall/internal/model"
)

// redisStore keeps sessions in Redis so they survive process restarts.
// The TTL doubles as the session expiry for abandoned surveys.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) Store {
	return &redisStore{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:session", chatID)
}

func (s *redisStore) Get(ctx context.Context, chatID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(chatID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *redisStore) Put(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(sess.ChatID), data, s.ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, sessionKey(chatID)).Err()
}
