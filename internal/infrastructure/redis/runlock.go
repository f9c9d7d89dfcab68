package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/fel-ingestor/internal/application/ingestion"
	"github.com/jhoicas/fel-ingestor/internal/domain"
)

// DefaultLockKey clave del candado de ejecución del pipeline.
const DefaultLockKey = "fel-ingest:run-lock"

var _ ingestion.RunLock = (*RunLock)(nil)

// releaseScript borra la clave solo si el token coincide; un candado expirado y
// tomado por otra instancia no se libera por error.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RunLock candado distribuido para que solo una corrida del pipeline avance a la vez.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewClient abre el cliente desde una URL redis:// y verifica la conexión.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRunLock crea el candado. El TTL acota cuánto sobrevive a una instancia caída.
func NewRunLock(client *redis.Client, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{client: client, key: key, ttl: ttl}
}

// TryLock toma el candado sin esperar. Si otra corrida lo tiene devuelve domain.ErrRunInProgress.
func (l *RunLock) TryLock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}

	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release run lock: %w", err)
		}
		return nil
	}
	return unlock, nil
}
