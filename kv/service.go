package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// Service stores plain string values in Redis.
type Service struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewService wraps client. A nil logger uses slog.Default.
func NewService(client redis.UniversalClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// SetValue stores value under key with no expiry.
func (s *Service) SetValue(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	s.logger.DebugContext(ctx, "kv: value set", slog.String("key", key))
	return nil
}

// GetValue returns the value under key. The bool is false when the key
// does not exist.
func (s *Service) GetValue(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, true, nil
}

// Ping checks that Redis answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}
