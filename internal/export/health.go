package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Flush trigger labels.
const (
	TriggerEntries  = "entries"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerClose    = "close"
)

// Flush failure kinds.
const (
	FailureWrite = "write"
	FailurePush  = "push"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics for exporter health.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	RecordsSubmitted *prometheus.CounterVec   // interface
	BytesSubmitted   *prometheus.CounterVec   // interface
	Flushes          *prometheus.CounterVec   // interface, trigger
	FlushErrors      *prometheus.CounterVec   // interface, kind
	RecordsDropped   *prometheus.CounterVec   // interface
	BytesDropped     *prometheus.CounterVec   // interface
	FlushDuration    *prometheus.HistogramVec // interface
	BatchEntries     *prometheus.HistogramVec // interface
	PendingEntries   *prometheus.GaugeVec     // interface
	InterfacesActive prometheus.Gauge

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		RecordsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsexporter",
				Name:      "records_submitted_total",
				Help:      "Total records accepted into an interface cache.",
			},
			[]string{"interface"},
		),
		BytesSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsexporter",
				Name:      "bytes_submitted_total",
				Help:      "Total record bytes accepted into an interface cache.",
			},
			[]string{"interface"},
		),
		Flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsexporter",
				Name:      "flushes_total",
				Help:      "Total successful non-empty flushes by trigger.",
			},
			[]string{"interface", "trigger"},
		),
		FlushErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsexporter",
				Name:      "flush_errors_total",
				Help:      "Total flush failures by kind (write, push).",
			},
			[]string{"interface", "kind"},
		),
		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsexporter",
				Name:      "records_dropped_total",
				Help:      "Total records lost with a failed flush.",
			},
			[]string{"interface"},
		),
		BytesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tsexporter",
				Name:      "bytes_dropped_total",
				Help:      "Total record bytes lost with a failed flush.",
			},
			[]string{"interface"},
		),
		FlushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tsexporter",
				Name:      "flush_duration_seconds",
				Help:      "Time spent in the I/O phase of a flush.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}, // 1ms-5s
			},
			[]string{"interface"},
		),
		BatchEntries: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tsexporter",
				Name:      "batch_entries",
				Help:      "Number of records per flushed batch.",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"interface"},
		),
		PendingEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tsexporter",
				Name:      "pending_entries",
				Help:      "Records currently cached and not yet flushed.",
			},
			[]string{"interface"},
		),
		InterfacesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tsexporter",
			Name:      "interfaces_active",
			Help:      "Number of interfaces with a live exporter.",
		}),
	}

	reg.MustRegister(
		h.RecordsSubmitted,
		h.BytesSubmitted,
		h.Flushes,
		h.FlushErrors,
		h.RecordsDropped,
		h.BytesDropped,
		h.FlushDuration,
		h.BatchEntries,
		h.PendingEntries,
		h.InterfacesActive,
	)

	return h
}

// Registry returns the registry backing /metrics.
func (h *HealthMetrics) Registry() *prometheus.Registry {
	return h.registry
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop gracefully shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
