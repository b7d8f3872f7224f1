package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"can-decoder/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrNoStats is returned by LatestStats when nothing has been recorded.
var ErrNoStats = errors.New("no statistics recorded")

// Reader queries stored signals and statistics
type Reader struct {
	conn        driver.Conn
	signalTable string
	statsTable  string
}

// NewReader creates a reader over the signals and statistics tables.
func NewReader(conn driver.Conn, signalTable, statsTable string) *Reader {
	return &Reader{
		conn:        conn,
		signalTable: signalTable,
		statsTable:  statsTable,
	}
}

func buildSignalQuery(table string, params models.QueryParams) (string, []any) {
	query := fmt.Sprintf("SELECT timestamp, session, interface, can_id, message, signal, value, unit FROM %s WHERE 1=1", table)
	args := []any{}

	if params.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *params.StartTime)
	}
	if params.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *params.EndTime)
	}
	if params.CANID != nil {
		query += " AND can_id = ?"
		args = append(args, *params.CANID)
	}
	if params.Interface != "" {
		query += " AND interface = ?"
		args = append(args, params.Interface)
	}
	if params.Message != "" {
		query += " AND message = ?"
		args = append(args, params.Message)
	}
	if params.Signal != "" {
		query += " AND signal = ?"
		args = append(args, params.Signal)
	}

	query += " ORDER BY timestamp DESC"

	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}
	if params.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, params.Offset)
	}
	return query, args
}

// Signals returns stored signal values, newest first.
func (r *Reader) Signals(ctx context.Context, params models.QueryParams) ([]models.SignalRecord, error) {
	query, args := buildSignalQuery(r.signalTable, params)
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer rows.Close()

	records := []models.SignalRecord{}
	for rows.Next() {
		var (
			rec     models.SignalRecord
			session uuid.UUID
		)
		if err := rows.Scan(&rec.Timestamp, &session, &rec.Interface, &rec.CANID, &rec.Message, &rec.Signal, &rec.Value, &rec.Unit); err != nil {
			return nil, errors.Wrap(err, "scan failed")
		}
		rec.Session = session.String()
		rec.CANIDHex = fmt.Sprintf("0x%X", rec.CANID)
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "row iteration failed")
}

// LatestStats returns the newest statistics snapshot, optionally for one
// interface.
func (r *Reader) LatestStats(ctx context.Context, iface string) (models.FrameStats, error) {
	query := fmt.Sprintf(`
		SELECT
			timestamp, interface, rx_frames,
			eff_total, eff_error, eff_rtr,
			sff_total, sff_error, sff_rtr,
			message_ids
		FROM %s
		WHERE 1=1`, r.statsTable)
	args := []any{}
	if iface != "" {
		query += " AND interface = ?"
		args = append(args, iface)
	}
	query += " ORDER BY timestamp DESC LIMIT 1"

	var (
		s  models.FrameStats
		ts time.Time
	)
	err := r.conn.QueryRow(ctx, query, args...).Scan(
		&ts, &s.Interface, &s.RXFrames,
		&s.EFFTotal, &s.EFFError, &s.EFFRTR,
		&s.SFFTotal, &s.SFFError, &s.SFFRTR,
		&s.MessageIDs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FrameStats{}, errors.Wrapf(ErrNoStats, "interface %q", iface)
		}
		return models.FrameStats{}, errors.Wrap(err, "query failed")
	}
	s.Timestamp = ts
	return s, nil
}
