// Package sidecar is the durable state adapter. The daemon is the only writer
// for the keys it owns; the explorer and operator CLI read them.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swarmpool/internal/utils"

	"github.com/redis/go-redis/v9"
)

// Key layout. Entries under pool:epoch:<id>:proofs are JSON objects, newest
// history entries first.
const (
	StateCidKey = "pool:state:cid"
	HistoryKey  = "pool:epochs:history"
)

func EpochKey(id string) string {
	return fmt.Sprintf("pool:epoch:%s", id)
}

func EpochProofsKey(id string) string {
	return fmt.Sprintf("pool:epoch:%s:proofs", id)
}

type Client struct {
	rdb *redis.Client
}

func New(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, utils.Wrap("failed parsing sidecar url", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

// Get returns "" for a missing key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *Client) LPush(ctx context.Context, key, val string) error {
	return c.rdb.LPush(ctx, key, val).Err()
}

// RPush keeps append-order lists (proof logs) in arrival order.
func (c *Client) RPush(ctx context.Context, key, val string) error {
	return c.rdb.RPush(ctx, key, val).Err()
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
