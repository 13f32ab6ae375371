// Package tsexporter buffers serialized time-series records for one
// network interface and periodically persists them to a local artifact
// and/or a remote collector.
//
// Producers call Submit from any goroutine. The cache guard is held only
// while appending a record or detaching the pending batch; file and
// network I/O run outside it, serialized by a second lock so batches reach
// the destination in the order they were detached.
package tsexporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tsexporter/internal/clock"
	"github.com/ethpandaops/tsexporter/internal/export"
)

// Interface is the network interface an Exporter is bound to.
type Interface interface {
	ID() int
	Name() string
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Exporter) { e.clock = c }
}

// WithHealth records submit and flush metrics.
func WithHealth(h *export.HealthMetrics) Option {
	return func(e *Exporter) { e.health = h }
}

// WithPusher overrides the pusher built from Config.Push.
func WithPusher(p export.Pusher) Option {
	return func(e *Exporter) { e.pusher = p }
}

// batch is a detached cache: the records and how many there are.
type batch struct {
	data    []byte
	entries int
}

// Exporter is the per-interface record buffer.
type Exporter struct {
	log    logrus.FieldLogger
	name   string
	cfg    Config
	clock  clock.Clock
	health *export.HealthMetrics

	// Written only during the I/O phase, under ioMu.
	artifact *artifact
	pusher   export.Pusher
	ioMu     sync.Mutex

	mu          sync.Mutex
	buf         []byte
	entries     int
	lastFlush   time.Time
	lastAttempt time.Time
	closed      bool
}

// New creates an Exporter bound to iface. An invalid destination is
// reported here, wrapped in ErrConfig, rather than on the first flush.
func New(
	log logrus.FieldLogger,
	iface Interface,
	cfg Config,
	opts ...Option,
) (*Exporter, error) {
	e := &Exporter{
		log:   log.WithField("interface", iface.Name()),
		name:  iface.Name(),
		cfg:   cfg,
		clock: clock.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := cfg.validate(e.pusher != nil); err != nil {
		return nil, err
	}

	if cfg.Path != "" {
		tmpl, err := parseTemplate(cfg.Path, iface)
		if err != nil {
			return nil, err
		}

		a, err := openArtifact(tmpl)
		if err != nil {
			return nil, err
		}

		e.artifact = a
	}

	if e.pusher == nil && cfg.Push.Enabled() {
		p, err := export.NewPusher(log, cfg.Push, iface.Name())
		if err != nil {
			if e.artifact != nil {
				_ = e.artifact.close()
			}

			return nil, configError("push: %v", err)
		}

		e.pusher = p
	}

	now := e.clock.Now()
	e.lastFlush = now
	e.lastAttempt = now

	if e.health != nil {
		e.health.InterfacesActive.Inc()
	}

	e.log.WithFields(logrus.Fields{
		"path":                cfg.Path,
		"endpoint":            cfg.Push.Endpoint,
		"max_pending_entries": cfg.MaxPendingEntries,
		"max_interval":        cfg.MaxInterval,
	}).Info("Exporter created")

	return e, nil
}

// Name returns the bound interface's name.
func (e *Exporter) Name() string {
	return e.name
}

// LastFlush returns the time of the last successful flush, or the
// construction time if none succeeded yet.
func (e *Exporter) LastFlush() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastFlush
}

// Pending returns the number of cached records and their total size.
func (e *Exporter) Pending() (entries, bytes int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.entries, len(e.buf)
}

// Submit appends record to the cache. If the cache is full or stale, the
// pending batch is flushed first and record starts the next batch. The
// returned error is that flush's failure; record itself is always kept.
func (e *Exporter) Submit(record []byte) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return ErrClosed
	}

	if e.triggerLocked() == "" {
		pending := e.appendLocked(record)
		e.mu.Unlock()
		e.recordSubmit(len(record), pending)

		return nil
	}

	e.mu.Unlock()

	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return ErrClosed
	}

	// Another producer may have flushed while we waited for ioMu.
	trigger := e.triggerLocked()

	var b batch
	if trigger != "" {
		b = e.detachLocked()
	}

	pending := e.appendLocked(record)
	e.mu.Unlock()
	e.recordSubmit(len(record), pending)

	if trigger == "" {
		return nil
	}

	return e.persist(b, trigger)
}

// Flush persists the pending batch. On failure the batch is dropped and
// the flush marker is left untouched.
func (e *Exporter) Flush() error {
	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return ErrClosed
	}

	b := e.detachLocked()
	e.mu.Unlock()
	e.recordPending(0)

	return e.persist(b, export.TriggerManual)
}

// Close flushes whatever is still cached and releases the rolling file
// and the pusher. Resources are released even if the final flush fails.
// Calling Close again is a no-op.
func (e *Exporter) Close() error {
	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return nil
	}

	e.closed = true
	b := e.detachLocked()
	e.mu.Unlock()

	var errs []error

	if err := e.persist(b, export.TriggerClose); err != nil {
		errs = append(errs, err)
	}

	if e.artifact != nil {
		if err := e.artifact.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing artifact: %w", err))
		}
	}

	if e.pusher != nil {
		if err := e.pusher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s pusher: %w", e.pusher.Name(), err))
		}
	}

	if e.health != nil {
		e.health.InterfacesActive.Dec()
		e.health.PendingEntries.DeleteLabelValues(e.name)
	}

	e.log.Info("Exporter closed")

	return errors.Join(errs...)
}

// triggerLocked reports which threshold, if any, requires the pending
// batch to be flushed before another record is added.
func (e *Exporter) triggerLocked() string {
	if e.entries == 0 {
		return ""
	}

	if e.cfg.MaxPendingEntries > 0 && e.entries >= e.cfg.MaxPendingEntries {
		return export.TriggerEntries
	}

	if e.cfg.MaxInterval > 0 && e.clock.Now().Sub(e.lastAttempt) > e.cfg.MaxInterval {
		return export.TriggerInterval
	}

	return ""
}

func (e *Exporter) appendLocked(record []byte) int {
	e.buf = append(e.buf, record...)
	e.entries++

	return e.entries
}

// detachLocked hands the pending batch to the caller and leaves an empty
// cache behind.
func (e *Exporter) detachLocked() batch {
	b := batch{data: e.buf, entries: e.entries}

	e.buf = nil
	e.entries = 0
	e.lastAttempt = e.clock.Now()

	return b
}

// persist writes and pushes a detached batch. Callers hold ioMu.
func (e *Exporter) persist(b batch, trigger string) error {
	now := e.clock.Now()

	if b.entries == 0 {
		e.markFlushed(now)

		return nil
	}

	start := time.Now()

	var (
		errs    []error
		path    string
		written bool
	)

	if e.artifact != nil {
		p, err := e.artifact.write(now, b.data)
		path = p

		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrWrite, err))
			e.recordFailure(export.FailureWrite)
		} else {
			written = true
		}
	}

	if e.pusher != nil {
		if err := e.pusher.Push(context.Background(), b.data); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrPush, e.pusher.Name(), err))
			e.recordFailure(export.FailurePush)
		} else if written && e.cfg.RemoveAfterPush && e.artifact.tmpl.perFlush {
			if err := os.Remove(path); err != nil {
				e.log.WithError(err).WithField("path", path).
					Warn("Failed to remove pushed artifact")
			}
		}
	}

	if len(errs) > 0 {
		ferr := &FlushError{
			Interface: e.name,
			Entries:   b.entries,
			Bytes:     len(b.data),
			Err:       errors.Join(errs...),
		}

		e.log.WithError(ferr.Err).WithFields(logrus.Fields{
			"trigger": trigger,
			"entries": b.entries,
			"bytes":   len(b.data),
		}).Error("Flush failed, dropping batch")

		if e.health != nil {
			e.health.RecordsDropped.WithLabelValues(e.name).Add(float64(b.entries))
			e.health.BytesDropped.WithLabelValues(e.name).Add(float64(len(b.data)))
		}

		return ferr
	}

	e.markFlushed(now)

	if e.health != nil {
		e.health.Flushes.WithLabelValues(e.name, trigger).Inc()
		e.health.FlushDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())
		e.health.BatchEntries.WithLabelValues(e.name).Observe(float64(b.entries))
	}

	e.log.WithFields(logrus.Fields{
		"trigger": trigger,
		"entries": b.entries,
		"bytes":   len(b.data),
		"path":    path,
	}).Debug("Flushed batch")

	return nil
}

func (e *Exporter) markFlushed(at time.Time) {
	e.mu.Lock()
	e.lastFlush = at
	e.mu.Unlock()
}

func (e *Exporter) recordSubmit(size, pending int) {
	if e.health == nil {
		return
	}

	e.health.RecordsSubmitted.WithLabelValues(e.name).Inc()
	e.health.BytesSubmitted.WithLabelValues(e.name).Add(float64(size))
	e.recordPending(pending)
}

func (e *Exporter) recordPending(pending int) {
	if e.health != nil {
		e.health.PendingEntries.WithLabelValues(e.name).Set(float64(pending))
	}
}

func (e *Exporter) recordFailure(kind string) {
	if e.health != nil {
		e.health.FlushErrors.WithLabelValues(e.name, kind).Inc()
	}
}
