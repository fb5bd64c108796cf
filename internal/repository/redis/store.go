package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/Frida144/site-segnorito/pkg/errors"
	"github.com/Frida144/site-segnorito/pkg/tracing"
)

const tracerName = "github.com/Frida144/site-segnorito/internal/repository/redis"

// Store implements repository.KeyValueStore on Redis. Every write refreshes
// the key's TTL, so an abandoned cart expires ttl after its last change.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates a Redis-backed store. A zero ttl keeps keys forever.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		tracer: tracing.Tracer(tracerName),
	}
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (value string, err error) {
	ctx, end := s.trace(ctx, "GET", key)
	defer func() { end(err) }()

	value, err = s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := s.trace(ctx, "SET", key)
	defer func() { end(err) }()

	if err = s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, end := s.trace(ctx, "DEL", key)
	defer func() { end(err) }()

	if err = s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) trace(ctx context.Context, op, key string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "redis."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", op),
			attribute.String("db.redis.key", key),
		),
	)
	return ctx, func(err error) {
		if !errors.Is(err, apperrors.ErrNotFound) {
			tracing.Fail(span, err)
		}
		span.End()
	}
}
