package agent

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tsexporter/internal/export"
	"github.com/ethpandaops/tsexporter/internal/tsexporter"
)

// Interface is a monitored network interface. It owns exactly one
// exporter for its whole lifetime and tears it down on Close.
type Interface struct {
	id       int
	name     string
	exporter *tsexporter.Exporter
}

var _ tsexporter.Interface = (*Interface)(nil)

// NewInterface creates the interface and binds its exporter.
func NewInterface(
	log logrus.FieldLogger,
	id int,
	name string,
	cfg tsexporter.Config,
	health *export.HealthMetrics,
) (*Interface, error) {
	iface := &Interface{id: id, name: name}

	opts := make([]tsexporter.Option, 0, 1)
	if health != nil {
		opts = append(opts, tsexporter.WithHealth(health))
	}

	exp, err := tsexporter.New(log, iface, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating exporter for %s: %w", name, err)
	}

	iface.exporter = exp

	return iface, nil
}

func (i *Interface) ID() int { return i.id }
func (i *Interface) Name() string { return i.name }

// Export hands a formatted record to the interface's exporter.
func (i *Interface) Export(record []byte) error {
	return i.exporter.Submit(record)
}

// Flush forces the exporter to persist its pending batch.
func (i *Interface) Flush() error {
	return i.exporter.Flush()
}

// Pending reports the exporter's cached record count.
func (i *Interface) Pending() int {
	entries, _ := i.exporter.Pending()

	return entries
}

// Close releases the exporter after a final flush.
func (i *Interface) Close() error {
	return i.exporter.Close()
}
