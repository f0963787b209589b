// Пакет blacklist — отзыв токенов (logout) по jti в Redis.
package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix — префикс ключей отозванных токенов.
const keyPrefix = "pocketfile:revoked:"

// Store хранит отозванные jti до истечения срока токена.
type Store struct {
	rdb *redis.Client
}

// Config — параметры подключения к Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New создаёт Store с новым клиентом Redis.
func New(cfg Config) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

// NewWithClient создаёт Store поверх существующего клиента.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(jti string) string { return keyPrefix + jti }

// Revoke помечает jti отозванным до exp (TTL = exp - now).
func (s *Store) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		// токен уже истёк
		return nil
	}
	if err := s.rdb.Set(ctx, key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("ошибка отзыва токена: %w", err)
	}
	return nil
}

// IsRevoked проверяет, отозван ли jti.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки отзыва токена: %w", err)
	}
	return n == 1, nil
}

// Name — имя проверки в ответе /health/ready.
func (s *Store) Name() string { return "redis" }

// CheckReady проверяет доступность Redis.
func (s *Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return "fail", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}

// Close закрывает клиент Redis.
func (s *Store) Close() error {
	return s.rdb.Close()
}
