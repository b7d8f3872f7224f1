package clickhouse

import (
	"context"
	"fmt"
	"time"

	"can-decoder/internal/database"
	"can-decoder/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SignalRow is one decoded signal value as stored in the signals table.
type SignalRow struct {
	Timestamp time.Time
	Session   uuid.UUID
	Interface string
	CANID     uint32
	Extended  bool
	Message   string
	Signal    string
	Value     float32
	Unit      string
}

// appender is the part of driver.Batch used to stage rows.
type appender interface {
	Append(v ...any) error
}

// Writer handles writing decoded signals to ClickHouse
type Writer struct {
	conn    driver.Conn
	config  Config
	session uuid.UUID
	logger  zerolog.Logger
	batcher *database.Batcher[models.DecodedMessage]
}

var _ database.Writer = (*Writer)(nil)

// Open connects to ClickHouse and verifies the connection.
func Open(ctx context.Context, config Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr()},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to ClickHouse")
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to ping ClickHouse at %s", config.Addr())
	}
	return conn, nil
}

// New creates a new ClickHouse writer and its signals table.
func New(ctx context.Context, config Config, batchSize int, session uuid.UUID, logger zerolog.Logger) (*Writer, error) {
	conn, err := Open(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := conn.Exec(ctx, createSignalsTable(config.Table)); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to create table %s", config.Table)
	}

	w := &Writer{
		conn:    conn,
		config:  config,
		session: session,
		logger:  logger.With().Str("component", "clickhouse").Str("table", config.Table).Logger(),
	}
	w.batcher = database.NewBatcher[models.DecodedMessage](batchSize, time.Second, w.flush, w.logger)
	return w, nil
}

func createSignalsTable(tableName string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(6),
			session UUID,
			interface LowCardinality(String),
			can_id UInt32,
			extended Bool,
			message LowCardinality(String),
			signal LowCardinality(String),
			value Float32,
			unit LowCardinality(String)
		) ENGINE = MergeTree()
		ORDER BY (message, signal, timestamp)
		PARTITION BY toYYYYMMDD(timestamp)
		TTL toDateTime(timestamp) + INTERVAL 1 MONTH
		SETTINGS index_granularity = 8192
	`, tableName)
}

// SignalRows flattens a decoded message into one row per signal.
func SignalRows(session uuid.UUID, msg models.DecodedMessage) []SignalRow {
	rows := make([]SignalRow, 0, len(msg.Signals))
	for _, s := range msg.Signals {
		rows = append(rows, SignalRow{
			Timestamp: msg.Timestamp,
			Session:   session,
			Interface: msg.Interface,
			CANID:     msg.FrameID,
			Extended:  msg.Extended,
			Message:   msg.Message,
			Signal:    s.Name,
			Value:     s.Value,
			Unit:      s.Unit,
		})
	}
	return rows
}

func appendSignalRows(batch appender, session uuid.UUID, msgs []models.DecodedMessage) (int, error) {
	n := 0
	for _, msg := range msgs {
		for _, row := range SignalRows(session, msg) {
			err := batch.Append(
				row.Timestamp,
				row.Session,
				row.Interface,
				row.CANID,
				row.Extended,
				row.Message,
				row.Signal,
				row.Value,
				row.Unit,
			)
			if err != nil {
				return n, errors.Wrap(err, "failed to append to batch")
			}
			n++
		}
	}
	return n, nil
}

// Start begins processing and writing messages
func (w *Writer) Start() {
	w.batcher.Start()
}

// flush writes the current batch to ClickHouse
func (w *Writer) flush(ctx context.Context, msgs []models.DecodedMessage) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.config.Table))
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	n, err := appendSignalRows(batch, w.session, msgs)
	if err != nil {
		batch.Abort()
		return err
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	w.logger.Debug().Int("messages", len(msgs)).Int("rows", n).Msg("flushed to ClickHouse")
	return nil
}

// Write queues a message for writing
func (w *Writer) Write(msg models.DecodedMessage) {
	w.batcher.Add(msg)
}

// Close flushes and closes the ClickHouse connection
func (w *Writer) Close() error {
	w.batcher.Close()
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// GetConn returns the underlying ClickHouse connection
func (w *Writer) GetConn() driver.Conn {
	return w.conn
}
