package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogDeadLetter только пишет неудачу в лог; используется, когда Redis не настроен
type LogDeadLetter struct {
	Log *zap.Logger
}

func (l LogDeadLetter) Record(_ context.Context, f Failure) error {
	l.Log.Warn("dead letter",
		zap.String("kind", f.Kind),
		zap.String("ref", f.Ref),
		zap.String("error", f.Error),
		zap.Time("failed_at", f.FailedAt),
	)
	return nil
}

// RedisDeadLetter складывает неудачи в список Redis, откуда их читает rfpctl
type RedisDeadLetter struct {
	client redis.Cmdable
	key    string
}

func NewRedisDeadLetter(client redis.Cmdable, key string) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, key: key}
}

func (r *RedisDeadLetter) Record(ctx context.Context, f Failure) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}
	return nil
}

// List возвращает до limit записей, начиная с самых старых
func (r *RedisDeadLetter) List(ctx context.Context, limit int64) ([]Failure, error) {
	if limit <= 0 {
		return []Failure{}, nil
	}
	raw, err := r.client.LRange(ctx, r.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	out := make([]Failure, 0, len(raw))
	for _, item := range raw {
		var f Failure
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Purge удаляет все записи
func (r *RedisDeadLetter) Purge(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
