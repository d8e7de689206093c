package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yanmxa/finsight/internal/message"
)

const redisPrefix = "finsight:session:"

// RedisStore persists sessions in Redis: one JSON value per session and an
// append-only list of JSON messages.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func sessionKey(id string) string  { return redisPrefix + id }
func messagesKey(id string) string { return redisPrefix + id + ":messages" }

func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) PutSession(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(sess.ID), data, 0).Err()
}

func (s *RedisStore) ListMessages(ctx context.Context, sessionID string) ([]message.Message, error) {
	items, err := s.rdb.LRange(ctx, messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]message.Message, 0, len(items))
	for _, item := range items {
		var m message.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, m message.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, messagesKey(sessionID), data).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
