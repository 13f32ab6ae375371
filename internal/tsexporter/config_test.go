package tsexporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ethpandaops/tsexporter/internal/export"
)

func TestConfig_Merge(t *testing.T) {
	defaults := Config{
		Path:              "/var/lib/tsexporter/{iface}/{unix}.lp",
		Push:              export.PushConfig{Endpoint: "http://influx:8086/write"},
		MaxPendingEntries: 1000,
		MaxInterval:       time.Minute,
	}

	t.Run("inherits unset fields", func(t *testing.T) {
		got := Config{}.Merge(defaults)
		assert.Equal(t, defaults, got)
	})

	t.Run("keeps overrides", func(t *testing.T) {
		got := Config{Path: "/tmp/x.lp", MaxPendingEntries: 5}.Merge(defaults)

		assert.Equal(t, "/tmp/x.lp", got.Path)
		assert.Equal(t, 5, got.MaxPendingEntries)
		assert.Equal(t, time.Minute, got.MaxInterval)
		assert.Equal(t, "http://influx:8086/write", got.Push.Endpoint)
	})

	t.Run("negative disables", func(t *testing.T) {
		got := Config{MaxPendingEntries: -1, MaxInterval: -1}.Merge(defaults)

		assert.Zero(t, got.MaxPendingEntries)
		assert.Zero(t, got.MaxInterval)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1000, cfg.MaxPendingEntries)
	assert.Equal(t, 60*time.Second, cfg.MaxInterval)
}
