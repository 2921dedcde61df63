package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

var _ inventory.IdempotencyStore = (*IdempotencyStore)(nil)

const (
	keyPrefix     = "ledger:idem:"
	pendingMarker = "pending"
)

// NewClient crea el cliente Redis y verifica la conexión.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// IdempotencyStore guarda llave -> ID de movimiento. Mientras la operación corre la llave
// vale "pending"; una segunda petición con la misma llave recibe domain.ErrConflict.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore construye el store. ttl <= 0 usa 24h.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve marca la llave en proceso con SETNX.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: llave de idempotencia vacía", domain.ErrInvalidInput)
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingMarker, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis: reservar llave: %w", err)
	}
	if ok {
		return "", nil
	}
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expiró entre SETNX y GET
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("redis: leer llave: %w", err)
	}
	if val == pendingMarker {
		return "", fmt.Errorf("%w: petición con la misma llave en proceso", domain.ErrConflict)
	}
	return val, nil
}

// Complete asocia la llave al movimiento confirmado.
func (s *IdempotencyStore) Complete(ctx context.Context, key, movementID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, movementID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: completar llave: %w", err)
	}
	return nil
}

// Release borra la llave para permitir reintentos.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: liberar llave: %w", err)
	}
	return nil
}
