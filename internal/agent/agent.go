package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tsexporter/internal/export"
)

// Agent is the top-level orchestrator for tsexporter.
type Agent interface {
	// Start begins serving metrics and following sources.
	Start(ctx context.Context) error
	// Stop shuts down all components, flushing every interface.
	Stop() error
	// Interface returns the named interface, or nil.
	Interface(name string) *Interface
}

// server is the HTTP side of the health metrics.
type server interface {
	Start(ctx context.Context) error
	Stop() error
}

type agent struct {
	log     logrus.FieldLogger
	cfg     *Config
	health  *export.HealthMetrics
	server  server
	ifaces  []*Interface
	sources []*Source

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Agent. Every interface's exporter is built here so an
// invalid destination fails startup immediately.
func New(log logrus.FieldLogger, cfg *Config) (Agent, error) {
	a := &agent{
		log:     log.WithField("component", "agent"),
		cfg:     cfg,
		health:  export.NewHealthMetrics(log, cfg.Health),
		ifaces:  make([]*Interface, 0, len(cfg.Interfaces)),
		sources: make([]*Source, 0, len(cfg.Interfaces)),
	}

	a.server = a.health

	for _, ic := range cfg.Interfaces {
		iface, err := NewInterface(log, ic.ID, ic.Name, cfg.ExportConfig(ic), a.health)
		if err != nil {
			a.closeInterfaces()

			return nil, err
		}

		a.ifaces = append(a.ifaces, iface)

		if ic.Source.Path != "" {
			a.sources = append(a.sources, NewSource(log, ic.Source, iface))
		}
	}

	return a, nil
}

func (a *agent) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	// 1. Start health metrics server.
	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("starting health metrics: %w", err)
	}

	// 2. Follow producer files.
	for _, s := range a.sources {
		if err := s.Start(); err != nil {
			return fmt.Errorf("starting source: %w", err)
		}
	}

	// 3. Periodic flush for quiet interfaces.
	if a.cfg.FlushTick > 0 {
		a.wg.Add(1)

		go a.flushLoop(ctx)
	}

	a.log.WithFields(logrus.Fields{
		"interfaces": len(a.ifaces),
		"sources":    len(a.sources),
	}).Info("Agent fully started")

	return nil
}

func (a *agent) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()

	// Stop producers before tearing down the exporters they feed.
	for _, s := range a.sources {
		if err := s.Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping source")
		}
	}

	errs := []error{a.closeInterfaces()}

	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.log.WithError(err).Error("Error stopping health server")

			errs = append(errs, fmt.Errorf("stopping health server: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (a *agent) Interface(name string) *Interface {
	for _, iface := range a.ifaces {
		if iface.Name() == name {
			return iface
		}
	}

	return nil
}

func (a *agent) closeInterfaces() error {
	var errs []error

	for _, iface := range a.ifaces {
		if err := iface.Close(); err != nil {
			a.log.WithError(err).WithField("interface", iface.Name()).
				Error("Final flush failed")

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *agent) flushLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.FlushTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, iface := range a.ifaces {
				if err := iface.Flush(); err != nil {
					a.log.WithError(err).WithField("interface", iface.Name()).
						Warn("Periodic flush failed")
				}
			}
		}
	}
}
