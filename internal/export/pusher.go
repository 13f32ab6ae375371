// Package export holds the remote push primitives used to forward flushed
// batches to a time-series collector, plus the agent's health metrics.
package export

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	httpexport "github.com/ethpandaops/tsexporter/internal/export/http"
)

// Pusher sends one opaque batch to a remote collector.
type Pusher interface {
	// Name returns the pusher's identifier for logging and metrics.
	Name() string
	// Push delivers blob, returning an error if the collector is
	// unreachable or rejected it.
	Push(ctx context.Context, blob []byte) error
	// Close releases connections held by the pusher.
	Close() error
}

// PushConfig selects and configures the remote collector. The endpoint
// URL scheme picks the transport; the matching block tunes it.
type PushConfig struct {
	// Endpoint is the collector address, e.g. http://influx:8086/write?db=ts,
	// nats://nats:4222/ts.iface, redis://redis:6379/0 or
	// clickhouse://default@ch:9000/metrics.
	Endpoint string `yaml:"endpoint"`

	HTTP       httpexport.Config `yaml:"http"`
	NATS       NATSConfig        `yaml:"nats"`
	Redis      RedisConfig       `yaml:"redis"`
	ClickHouse ClickHouseConfig  `yaml:"clickhouse"`
}

// Enabled reports whether a remote endpoint is configured.
func (c *PushConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Validate checks that the endpoint parses and uses a known scheme.
func (c *PushConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("parsing endpoint %q: %w", c.Endpoint, err)
	}

	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", c.Endpoint)
	}

	switch u.Scheme {
	case "http", "https":
		cfg := c.HTTP
		cfg.Address = c.Endpoint
		cfg.ApplyDefaults()

		return cfg.Validate()
	case "nats", "tls":
		return nil
	case "redis", "rediss":
		return c.Redis.Validate()
	case "clickhouse":
		return nil
	default:
		return fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// NewPusher builds the Pusher for cfg.Endpoint on behalf of the named
// interface. Connections are established lazily, so an unreachable
// collector surfaces on the first push rather than here.
func NewPusher(log logrus.FieldLogger, cfg PushConfig, iface string) (Pusher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	u, _ := url.Parse(cfg.Endpoint)

	switch u.Scheme {
	case "http", "https":
		httpCfg := cfg.HTTP
		httpCfg.Address = cfg.Endpoint

		return httpexport.NewPusher(log, httpCfg)
	case "nats", "tls":
		return NewNATSPusher(log, cfg.NATS, u, iface)
	case "redis", "rediss":
		return NewRedisPusher(log, cfg.Redis, cfg.Endpoint, iface)
	case "clickhouse":
		return NewClickHousePusher(log, cfg.ClickHouse, cfg.Endpoint, iface)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}
