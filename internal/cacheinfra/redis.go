package cacheinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
)

// ClientSource hands out the Redis client at call time, so a store created
// before the client is set up reports the source's error instead of
// panicking.
type ClientSource interface {
	Client() (*redis.Client, error)
}

// Codec encodes cached values.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// RedisConfig holds the options of the Redis store.
type RedisConfig struct {
	// Prefix namespaces every key, joined with ':'. Empty means none.
	Prefix string

	// TTL is the expiry of written keys. Zero keeps them until deleted.
	TTL time.Duration

	// JSON stores values as JSON text instead of msgpack.
	JSON bool

	// ScanCount is the COUNT hint of SCAN during prefix deletes, and the
	// number of keys sent per DEL.
	ScanCount int64

	// Logger receives store failures that do not fail the call. Nil
	// discards them.
	Logger *slog.Logger
}

// RedisService is a cache store shared between processes. Values are
// decoded into the result type of the fetch function, so every caller of a
// key must use the same type.
type RedisService struct {
	source ClientSource
	cfg    RedisConfig
	codec  Codec
	logger *slog.Logger
}

func NewRedisService(source ClientSource, cfg RedisConfig) (*RedisService, error) {
	if source == nil {
		return nil, &ConfigError{Field: "source", Message: "cannot be nil"}
	}
	if cfg.TTL < 0 {
		return nil, &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 100
	}

	var codec Codec = msgpackCodec{}
	if cfg.JSON {
		codec = jsonCodec{}
	}

	return &RedisService{
		source: source,
		cfg:    cfg,
		codec:  codec,
		logger: logging.OrDiscard(cfg.Logger).With("component", "cacheinfra", "store", "redis"),
	}, nil
}

// GetOrFetch serves key from Redis, or calls fetchFn and stores its result.
// When Redis answers with an error the value is fetched and returned without
// being stored. A failing write is logged and the fetched value returned.
func (s *RedisService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	resultType, err := fetchResultType(fetchFn)
	if err != nil {
		return nil, err
	}

	client, err := s.source.Client()
	if err != nil {
		return nil, err
	}

	fullKey := s.key(key)
	data, err := client.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		target := reflect.New(resultType)
		if decodeErr := s.codec.Unmarshal(data, target.Interface()); decodeErr == nil {
			return target.Elem().Interface(), nil
		}
		// stale layout, refetch and overwrite
	case errors.Is(err, redis.Nil):
	default:
		s.logger.WarnContext(ctx, "cache read failed", "key", fullKey, "error", err)
		return callFetch(ctx, fetchFn)
	}

	result, err := callFetch(ctx, fetchFn)
	if err != nil {
		return result, err
	}

	encoded, err := s.codec.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode cache value %q: %w", key, err)
	}
	if err := client.Set(ctx, fullKey, encoded, s.cfg.TTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "key", fullKey, "error", err)
	}

	return result, nil
}

func (s *RedisService) Delete(ctx context.Context, key string) error {
	return s.InvalidateKeys(ctx, []string{key})
}

func (s *RedisService) InvalidateKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	client, err := s.source.Client()
	if err != nil {
		return err
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(key)
	}
	return client.Del(ctx, full...).Err()
}

// DeleteByPrefix removes every key starting with prefix using SCAN, so the
// server is never blocked by a KEYS call. Keys are collected before the
// first DEL so the cursor walks an unchanged keyspace.
func (s *RedisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	client, err := s.source.Client()
	if err != nil {
		return err
	}

	pattern := escapeGlob(s.key(prefix)) + "*"
	iter := client.Scan(ctx, 0, pattern, s.cfg.ScanCount).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	for _, batch := range lo.Chunk(lo.Uniq(keys), int(s.cfg.ScanCount)) {
		if err := client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisService) key(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}
	return s.cfg.Prefix + ":" + key
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
