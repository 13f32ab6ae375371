package export

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"
)

// ClickHouseConfig tunes the ClickHouse pusher. Address, database and
// credentials come from the endpoint DSN; the fields here override them.
type ClickHouseConfig struct {
	// Table receives one row per batch. Defaults to ts_batches.
	Table string `yaml:"table"`

	// Username for ClickHouse authentication.
	Username string `yaml:"username"`

	// Password for ClickHouse authentication.
	Password string `yaml:"password"`
}

// ClickHousePusher stores each batch as a row of the batches table
// created by the migrate package.
type ClickHousePusher struct {
	log      logrus.FieldLogger
	conn     clickhouse.Conn
	database string
	table    string
	iface    string
}

// NewClickHousePusher opens a connection pool for the endpoint DSN.
// clickhouse-go dials lazily, so an unreachable server fails the first push.
func NewClickHousePusher(
	log logrus.FieldLogger,
	cfg ClickHouseConfig,
	endpoint string,
	iface string,
) (*ClickHousePusher, error) {
	opts, err := clickhouse.ParseDSN(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing clickhouse endpoint: %w", err)
	}

	if cfg.Username != "" {
		opts.Auth.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Auth.Password = cfg.Password
	}

	if opts.Auth.Database == "" {
		opts.Auth.Database = "default"
	}

	if cfg.Table == "" {
		cfg.Table = "ts_batches"
	}

	opts.Compression = &clickhouse.Compression{
		Method: clickhouse.CompressionLZ4,
	}
	opts.MaxOpenConns = 2
	opts.MaxIdleConns = 1

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening ClickHouse connection: %w", err)
	}

	return &ClickHousePusher{
		log:      log.WithField("component", "clickhouse_pusher"),
		conn:     conn,
		database: opts.Auth.Database,
		table:    cfg.Table,
		iface:    iface,
	}, nil
}

// Name returns the pusher's identifier.
func (p *ClickHousePusher) Name() string { return "clickhouse" }

// Table returns the fully qualified target table.
func (p *ClickHousePusher) Table() string {
	return fmt.Sprintf("%s.%s", p.database, p.table)
}

// insertQuery is the statement batches are prepared with. Its columns
// match the ts_batches migration.
func (p *ClickHousePusher) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (interface, flushed_at, bytes, payload)", p.Table())
}

// row returns the column values for one batch, in insertQuery order.
func (p *ClickHousePusher) row(at time.Time, blob []byte) []any {
	return []any{p.iface, at.UTC(), uint64(len(blob)), string(blob)}
}

// Push inserts blob as a single row.
func (p *ClickHousePusher) Push(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}

	batch, err := p.conn.PrepareBatch(ctx, p.insertQuery())
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	if err := batch.Append(p.row(time.Now(), blob)...); err != nil {
		return fmt.Errorf("appending row: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch of %d bytes: %w", len(blob), err)
	}

	p.log.WithField("bytes", len(blob)).Debug("Pushed batch via ClickHouse")

	return nil
}

// Close closes the connection pool.
func (p *ClickHousePusher) Close() error {
	return p.conn.Close()
}
