package export

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis delivery modes.
const (
	RedisModeStream = "stream"
	RedisModeList   = "list"
)

// RedisConfig tunes the Redis pusher.
type RedisConfig struct {
	// Key is the stream or list name. Defaults to tsexporter:<interface>.
	Key string `yaml:"key"`

	// Mode is stream (XADD, default) or list (RPUSH).
	Mode string `yaml:"mode"`

	// MaxLen approximately caps the stream length. Zero leaves it
	// unbounded. Ignored in list mode.
	MaxLen int64 `yaml:"max_len"`
}

// Validate checks the delivery mode.
func (c *RedisConfig) Validate() error {
	switch c.Mode {
	case "", RedisModeStream, RedisModeList:
		return nil
	default:
		return fmt.Errorf("invalid redis mode %q", c.Mode)
	}
}

// RedisPusher appends each batch to a Redis stream or list.
type RedisPusher struct {
	log    logrus.FieldLogger
	client *redis.Client
	cfg    RedisConfig
	iface  string
}

// NewRedisPusher builds a client for endpoint. go-redis dials on first
// use, so nothing is contacted here.
func NewRedisPusher(
	log logrus.FieldLogger,
	cfg RedisConfig,
	endpoint string,
	iface string,
) (*RedisPusher, error) {
	opts, err := redis.ParseURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing redis endpoint: %w", err)
	}

	if cfg.Key == "" {
		cfg.Key = "tsexporter:" + iface
	}

	if cfg.Mode == "" {
		cfg.Mode = RedisModeStream
	}

	return &RedisPusher{
		log:    log.WithField("component", "redis_pusher"),
		client: redis.NewClient(opts),
		cfg:    cfg,
		iface:  iface,
	}, nil
}

// Name returns the pusher's identifier.
func (p *RedisPusher) Name() string { return "redis" }

// Key returns the stream or list the pusher writes to.
func (p *RedisPusher) Key() string { return p.cfg.Key }

// Push appends blob under the configured key.
func (p *RedisPusher) Push(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}

	var err error

	switch p.cfg.Mode {
	case RedisModeList:
		err = p.client.RPush(ctx, p.cfg.Key, blob).Err()
	default:
		err = p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.cfg.Key,
			MaxLen: p.cfg.MaxLen,
			Approx: p.cfg.MaxLen > 0,
			Values: map[string]any{
				"interface": p.iface,
				"payload":   blob,
			},
		}).Err()
	}

	if err != nil {
		return fmt.Errorf("redis %s %s: %w", p.cfg.Mode, p.cfg.Key, err)
	}

	p.log.WithField("bytes", len(blob)).Debug("Pushed batch via Redis")

	return nil
}

// Close closes the client's connection pool.
func (p *RedisPusher) Close() error {
	return p.client.Close()
}
