package influxdb

import (
	"context"
	"fmt"
	"time"

	"can-decoder/internal/database"
	"can-decoder/internal/models"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Measurement is the measurement name of decoded message points.
const Measurement = "can_signals"

// Writer handles writing decoded messages to InfluxDB
type Writer struct {
	client   *influxdb3.Client
	database string
	session  uuid.UUID
	logger   zerolog.Logger
	batcher  *database.Batcher[models.DecodedMessage]
}

var _ database.Writer = (*Writer)(nil)

// New creates a new InfluxDB writer
func New(config Config, batchSize int, session uuid.UUID, logger zerolog.Logger) (*Writer, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     config.URL,
		Token:    config.Token,
		Database: config.Database,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create InfluxDB client")
	}

	w := &Writer{
		client:   client,
		database: config.Database,
		session:  session,
		logger:   logger.With().Str("component", "influxdb").Str("database", config.Database).Logger(),
	}
	w.batcher = database.NewBatcher[models.DecodedMessage](batchSize, time.Second, w.flush, w.logger)
	return w, nil
}

// PointData returns the tags and fields of the point written for msg. Each
// signal becomes one float field named after the signal.
func PointData(session uuid.UUID, msg models.DecodedMessage) (map[string]string, map[string]any) {
	tags := map[string]string{
		"interface": msg.Interface,
		"message":   msg.Message,
		"can_id":    fmt.Sprintf("0x%X", msg.FrameID),
		"session":   session.String(),
	}
	fields := make(map[string]any, len(msg.Signals))
	for _, s := range msg.Signals {
		fields[s.Name] = float64(s.Value)
	}
	return tags, fields
}

// Start begins processing and writing messages
func (w *Writer) Start() {
	w.batcher.Start()
}

// flush writes the current batch to InfluxDB
func (w *Writer) flush(ctx context.Context, msgs []models.DecodedMessage) error {
	points := make([]*influxdb3.Point, 0, len(msgs))
	for _, msg := range msgs {
		// a point needs at least one field
		if len(msg.Signals) == 0 {
			continue
		}
		tags, fields := PointData(w.session, msg)
		points = append(points, influxdb3.NewPoint(Measurement, tags, fields, msg.Timestamp))
	}
	if len(points) == 0 {
		return nil
	}

	if err := w.client.WritePoints(ctx, points); err != nil {
		return errors.Wrap(err, "failed to write points")
	}

	w.logger.Debug().Int("points", len(points)).Msg("flushed to InfluxDB")
	return nil
}

// Write queues a message for writing
func (w *Writer) Write(msg models.DecodedMessage) {
	w.batcher.Add(msg)
}

// Close flushes and closes the InfluxDB client
func (w *Writer) Close() error {
	w.batcher.Close()
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
