package clickhouse

import (
	"context"
	"fmt"
	"time"

	"can-decoder/internal/database"
	"can-decoder/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StatsWriter handles writing frame statistics snapshots to ClickHouse
type StatsWriter struct {
	conn      driver.Conn
	tableName string
	session   uuid.UUID
	logger    zerolog.Logger
	batcher   *database.Batcher[models.FrameStats]
}

// NewStatsWriter creates a new ClickHouse statistics writer on an open
// connection.
func NewStatsWriter(conn driver.Conn, tableName string, batchSize int, session uuid.UUID, logger zerolog.Logger) *StatsWriter {
	w := &StatsWriter{
		conn:      conn,
		tableName: tableName,
		session:   session,
		logger:    logger.With().Str("component", "clickhouse_stats").Str("table", tableName).Logger(),
	}
	w.batcher = database.NewBatcher[models.FrameStats](batchSize, 5*time.Second, w.flush, w.logger)
	return w
}

// CreateStatsTable creates the frame statistics table in ClickHouse
func CreateStatsTable(ctx context.Context, conn driver.Conn, tableName string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime64(6),
			session UUID,
			interface String,
			rx_frames UInt64,
			eff_total UInt64,
			eff_error UInt64,
			eff_rtr UInt64,
			sff_total UInt64,
			sff_error UInt64,
			sff_rtr UInt64,
			message_ids Map(UInt32, UInt64)
		) ENGINE = MergeTree()
		ORDER BY (timestamp, interface)
		PARTITION BY toYYYYMMDD(timestamp)
		SETTINGS index_granularity = 8192
	`, tableName)

	return conn.Exec(ctx, query)
}

func appendStats(batch appender, session uuid.UUID, snapshots []models.FrameStats) error {
	for _, s := range snapshots {
		ids := s.MessageIDs
		if ids == nil {
			ids = map[uint32]uint64{}
		}
		err := batch.Append(
			s.Timestamp,
			session,
			s.Interface,
			s.RXFrames,
			s.EFFTotal,
			s.EFFError,
			s.EFFRTR,
			s.SFFTotal,
			s.SFFError,
			s.SFFRTR,
			ids,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
	}
	return nil
}

// Start begins processing and writing statistics
func (w *StatsWriter) Start() {
	w.batcher.Start()
}

func (w *StatsWriter) flush(ctx context.Context, snapshots []models.FrameStats) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.tableName))
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	if err := appendStats(batch, w.session, snapshots); err != nil {
		batch.Abort()
		return err
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	w.logger.Debug().Int("records", len(snapshots)).Msg("flushed statistics to ClickHouse")
	return nil
}

// Write queues a snapshot for writing
func (w *StatsWriter) Write(stat models.FrameStats) {
	w.batcher.Add(stat)
}

// Close flushes pending snapshots. The connection belongs to the signals
// writer.
func (w *StatsWriter) Close() error {
	w.batcher.Close()
	return nil
}
