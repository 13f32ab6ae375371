package export

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSConfig tunes the NATS pusher.
type NATSConfig struct {
	// Subject receives each batch. The endpoint URL path wins when set.
	// Defaults to tsexporter.<interface>.
	Subject string `yaml:"subject"`

	// FlushTimeout bounds the round trip confirming the server got the
	// batch. Defaults to 5s.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// NATSPusher publishes each batch as one NATS message.
type NATSPusher struct {
	log     logrus.FieldLogger
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// NewNATSPusher connects to the server named by endpoint. The connection
// retries in the background, so a collector that is down at startup does
// not fail construction.
func NewNATSPusher(
	log logrus.FieldLogger,
	cfg NATSConfig,
	endpoint *url.URL,
	iface string,
) (*NATSPusher, error) {
	subject := natsSubject(cfg, endpoint, iface)
	if subject == "" {
		return nil, fmt.Errorf("nats subject is empty")
	}

	timeout := cfg.FlushTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	server := url.URL{Scheme: endpoint.Scheme, User: endpoint.User, Host: endpoint.Host}

	p := &NATSPusher{
		log:     log.WithField("component", "nats_pusher"),
		subject: subject,
		timeout: timeout,
	}

	nc, err := nats.Connect(server.String(),
		nats.Name("tsexporter-"+iface),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", endpoint.Host, err)
	}

	p.nc = nc

	return p, nil
}

func natsSubject(cfg NATSConfig, endpoint *url.URL, iface string) string {
	if s := strings.Trim(endpoint.Path, "/"); s != "" {
		return strings.ReplaceAll(s, "/", ".")
	}

	if cfg.Subject != "" {
		return cfg.Subject
	}

	return "tsexporter." + iface
}

// Name returns the pusher's identifier.
func (p *NATSPusher) Name() string { return "nats" }

// Subject returns the subject batches are published on.
func (p *NATSPusher) Subject() string { return p.subject }

// Push publishes blob and waits for the server to acknowledge the flush.
func (p *NATSPusher) Push(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.nc.Publish(p.subject, blob); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return fmt.Errorf("flushing nats connection: %w", context.DeadlineExceeded)
		}
	}

	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flushing nats connection: %w", err)
	}

	p.log.WithField("bytes", len(blob)).Debug("Pushed batch via NATS")

	return nil
}

// Close drains and closes the connection.
func (p *NATSPusher) Close() error {
	if p.nc == nil {
		return nil
	}

	if p.nc.IsConnected() {
		return p.nc.Drain()
	}

	p.nc.Close()

	return nil
}
