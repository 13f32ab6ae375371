package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/tsexporter/internal/export"
	"github.com/ethpandaops/tsexporter/internal/tsexporter"
)

// Config is the top-level configuration for the tsexporter agent.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`

	// Export holds destination and flush defaults shared by every
	// interface. Per-interface settings override it.
	Export tsexporter.Config `yaml:"export"`

	// FlushTick, when set, flushes every interface on this period so
	// quiet interfaces still reach their destination. Zero disables it.
	FlushTick time.Duration `yaml:"flush_tick"`

	// Interfaces lists the monitored network interfaces.
	Interfaces []InterfaceConfig `yaml:"interfaces"`
}

// InterfaceConfig describes one monitored interface and where its
// records come from.
type InterfaceConfig struct {
	// ID is the numeric interface id, exposed to path templates as {ifid}.
	ID int `yaml:"id"`

	// Name is the interface name, exposed as {iface}.
	Name string `yaml:"name"`

	// Source is the producer file followed for records.
	Source SourceConfig `yaml:"source"`

	// Export overrides the shared export settings.
	Export tsexporter.Config `yaml:"export"`
}

// SourceConfig configures the file follower feeding an interface.
type SourceConfig struct {
	// Path is the file the monitoring pipeline appends records to,
	// one per line. Empty means records are submitted programmatically.
	Path string `yaml:"path"`

	// FromStart reads the file from the beginning instead of the end.
	FromStart bool `yaml:"from_start"`

	// Poll uses stat polling instead of inotify.
	Poll bool `yaml:"poll"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Health: export.HealthConfig{
			Addr: ":9090",
		},
		Export: tsexporter.DefaultConfig(),
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ExportConfig returns the effective export settings of iface.
func (c *Config) ExportConfig(iface InterfaceConfig) tsexporter.Config {
	return iface.Export.Merge(c.Export)
}

// Validate checks the configuration for required fields and consistency.
func (c *Config) Validate() error {
	if len(c.Interfaces) == 0 {
		return fmt.Errorf("at least one interface is required")
	}

	if c.FlushTick < 0 {
		return fmt.Errorf("flush_tick must not be negative")
	}

	names := make(map[string]struct{}, len(c.Interfaces))
	ids := make(map[int]struct{}, len(c.Interfaces))

	for i, iface := range c.Interfaces {
		if iface.Name == "" {
			return fmt.Errorf("interfaces[%d].name is required", i)
		}

		if _, dup := names[iface.Name]; dup {
			return fmt.Errorf("duplicate interface name %q", iface.Name)
		}

		if _, dup := ids[iface.ID]; dup {
			return fmt.Errorf("duplicate interface id %d", iface.ID)
		}

		names[iface.Name] = struct{}{}
		ids[iface.ID] = struct{}{}

		exportCfg := c.ExportConfig(iface)
		if err := exportCfg.Validate(); err != nil {
			return fmt.Errorf("interface %s: %w", iface.Name, err)
		}
	}

	return nil
}
