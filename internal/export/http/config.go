package http

import (
	"errors"
	"net/url"
	"time"
)

// Config configures the HTTP pusher.
type Config struct {
	// Address is the collector URL that receives each batch, e.g. an
	// InfluxDB-compatible /write endpoint.
	Address string `yaml:"address"`

	// Headers are additional HTTP headers to include in requests.
	Headers map[string]string `yaml:"headers"`

	// Compression specifies the compression algorithm.
	// Valid values: none, gzip, zstd, zlib, snappy.
	// Defaults to none.
	Compression string `yaml:"compression"`

	// ContentType is sent as the Content-Type header.
	// Defaults to text/plain; charset=utf-8.
	ContentType string `yaml:"content_type"`

	// Timeout bounds a single push request.
	// Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// KeepAlive enables HTTP keep-alive connections.
	// Defaults to true.
	KeepAlive *bool `yaml:"keep_alive"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	keepAlive := true

	return Config{
		Compression: CompressionNone,
		ContentType: "text/plain; charset=utf-8",
		Timeout:     30 * time.Second,
		KeepAlive:   &keepAlive,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("http address is required")
	}

	u, err := url.Parse(c.Address)
	if err != nil {
		return errors.New("invalid http address: " + err.Error())
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("http address must use http or https: " + c.Address)
	}

	if u.Host == "" {
		return errors.New("http address has no host: " + c.Address)
	}

	if !ValidCompression(c.Compression) {
		return errors.New("invalid compression type: " + c.Compression)
	}

	return nil
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Compression == "" {
		c.Compression = defaults.Compression
	}

	if c.ContentType == "" {
		c.ContentType = defaults.ContentType
	}

	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}

	if c.KeepAlive == nil {
		c.KeepAlive = defaults.KeepAlive
	}
}

// IsKeepAlive returns whether HTTP keep-alive is enabled.
func (c *Config) IsKeepAlive() bool {
	if c.KeepAlive == nil {
		return true
	}

	return *c.KeepAlive
}
