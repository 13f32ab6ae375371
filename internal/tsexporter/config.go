package tsexporter

import (
	"time"

	"github.com/ethpandaops/tsexporter/internal/export"
)

// Config is the construction-time destination and flush policy of an
// Exporter. It cannot be changed after New.
type Config struct {
	// Path is the local artifact template. Supported placeholders:
	// {iface}, {ifid}, {unix}, {unixnano} and {seq}. A template using
	// {unix}, {unixnano} or {seq} yields one file per flush, otherwise
	// a single rolling file is appended to.
	Path string `yaml:"path"`

	// Push configures the optional remote collector.
	Push export.PushConfig `yaml:"push"`

	// MaxPendingEntries flushes the cache before it would grow past
	// this many records. Zero disables the entry trigger.
	MaxPendingEntries int `yaml:"max_pending_entries"`

	// MaxInterval flushes the cache on the first submit arriving more
	// than this long after the last flush. Zero disables the interval
	// trigger.
	MaxInterval time.Duration `yaml:"max_interval"`

	// RemoveAfterPush deletes a per-flush artifact once the batch was
	// pushed successfully.
	RemoveAfterPush bool `yaml:"remove_after_push"`
}

// DefaultConfig returns the flush policy used when none is configured.
func DefaultConfig() Config {
	return Config{
		MaxPendingEntries: 1000,
		MaxInterval:       60 * time.Second,
	}
}

// Merge returns c with unset fields taken from defaults. A negative
// threshold explicitly disables that trigger.
func (c Config) Merge(defaults Config) Config {
	if c.Path == "" {
		c.Path = defaults.Path
	}

	if !c.Push.Enabled() {
		c.Push = defaults.Push
	}

	if c.MaxPendingEntries == 0 {
		c.MaxPendingEntries = defaults.MaxPendingEntries
	}

	if c.MaxInterval == 0 {
		c.MaxInterval = defaults.MaxInterval
	}

	if !c.RemoveAfterPush {
		c.RemoveAfterPush = defaults.RemoveAfterPush
	}

	if c.MaxPendingEntries < 0 {
		c.MaxPendingEntries = 0
	}

	if c.MaxInterval < 0 {
		c.MaxInterval = 0
	}

	return c
}

// Validate checks the configuration. Errors wrap ErrConfig.
func (c *Config) Validate() error {
	return c.validate(false)
}

// validate checks the configuration; hasPusher reports a pusher supplied
// through WithPusher, which counts as a remote destination.
func (c *Config) validate(hasPusher bool) error {
	remote := c.Push.Enabled() || hasPusher

	if c.Path == "" && !remote {
		return configError("at least one of path or push.endpoint is required")
	}

	if c.MaxPendingEntries < 0 {
		return configError("max_pending_entries must not be negative")
	}

	if c.MaxInterval < 0 {
		return configError("max_interval must not be negative")
	}

	if c.RemoveAfterPush {
		if !remote {
			return configError("remove_after_push requires push.endpoint")
		}

		if c.Path != "" && !isPerFlush(c.Path) {
			return configError("remove_after_push requires a per-flush path template")
		}
	}

	if err := c.Push.Validate(); err != nil {
		return configError("push: %v", err)
	}

	return nil
}
