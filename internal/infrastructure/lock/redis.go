package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

const (
	lockKeyPrefix       = "civic-intake:turn:"
	defaultLockTTL      = 90 * time.Second
	defaultPollInterval = 50 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит нам: после
// истечения TTL блокировку мог взять другой экземпляр.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker блокирует ходы распределённо, через SET NX PX. TTL ключа
// ограничивает время жизни блокировки, если экземпляр упал посреди хода.
type RedisLocker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
	log          logrus.FieldLogger
}

var _ repository.TurnLocker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		log:          log,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperror.ErrTurnInProgress
			}
			return nil, apperror.Wrap(err, apperror.ErrCodeStore, "не удалось взять блокировку хода")
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, apperror.ErrTurnInProgress
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// контекст хода к этому моменту может быть уже отменён
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) && l.log != nil {
				l.log.WithError(err).WithField("key", redisKey).Warn("не удалось снять блокировку хода")
			}
		})
	}
}

// Ping проверяет доступность Redis.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
