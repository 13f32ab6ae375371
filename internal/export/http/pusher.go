// Package http pushes serialized time-series batches to an HTTP collector.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tsexporter/internal/version"
)

// Pusher POSTs each batch as a single request body.
type Pusher struct {
	cfg        Config
	client     *http.Client
	compressor *Compressor
	log        logrus.FieldLogger
}

// NewPusher creates a new HTTP pusher.
func NewPusher(log logrus.FieldLogger, cfg Config) (*Pusher, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	compressor, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   !cfg.IsKeepAlive(),
	}

	return &Pusher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		compressor: compressor,
		log:        log.WithField("component", "http_pusher"),
	}, nil
}

// Name returns the pusher's identifier.
func (p *Pusher) Name() string { return "http" }

// Push sends blob to the configured address.
func (p *Pusher) Push(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}

	body, err := p.compressor.Compress(blob)
	if err != nil {
		return fmt.Errorf("compressing data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Address, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", p.cfg.ContentType)
	req.Header.Set("User-Agent", version.UserAgent())

	if encoding := p.compressor.ContentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	defer resp.Body.Close()

	// Drain response body to enable connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	p.log.WithFields(logrus.Fields{
		"bytes":      len(blob),
		"compressed": len(body),
	}).Debug("Pushed batch via HTTP")

	return nil
}

// Close releases the compressor and idle connections.
func (p *Pusher) Close() error {
	p.client.CloseIdleConnections()

	return p.compressor.Close()
}
