package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/focusstake/internal/domain/ledger"
)

// Dial connects to Redis and verifies the connection with a ping.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Redis is a ReceiptCache shared between ledger nodes.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed receipt cache.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "focusstake:receipt:", ttl: ttl}
}

func (r *Redis) key(signature string) string {
	return r.prefix + signature
}

func (r *Redis) Get(ctx context.Context, signature string) (*ledger.Receipt, error) {
	val, err := r.client.Get(ctx, r.key(signature)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var receipt ledger.Receipt
	if err := json.Unmarshal(val, &receipt); err != nil {
		return nil, fmt.Errorf("cache: failed to unmarshal receipt: %w", err)
	}
	return &receipt, nil
}

func (r *Redis) Put(ctx context.Context, receipt *ledger.Receipt) error {
	if receipt.Signature == "" {
		return fmt.Errorf("cache: receipt without signature")
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal receipt: %w", err)
	}
	return r.client.Set(ctx, r.key(receipt.Signature), data, r.ttl).Err()
}
