package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey holds the document when no key is configured.
const DefaultRedisKey = "quizbot:profiles"

// RedisBackend keeps the whole document under a single key. SET replaces the
// value atomically, so readers never observe a partial write.
type RedisBackend struct {
	client redis.UniversalClient
	key    string
	loc    *time.Location
}

// NewRedisBackend returns a backend bound to key on client.
func NewRedisBackend(client redis.UniversalClient, key string, loc *time.Location) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	if loc == nil {
		loc = time.Local
	}
	return &RedisBackend{client: client, key: key, loc: loc}
}

// Name identifies the backend in logs.
func (b *RedisBackend) Name() string { return "redis" }

// Load fetches and decodes the document.
func (b *RedisBackend) Load(ctx context.Context) (*Document, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", b.key, err)
	}
	return DecodeDocument(data, b.loc)
}

// Save stores the encoded document without expiry.
func (b *RedisBackend) Save(ctx context.Context, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", b.key, err)
	}
	return nil
}
