package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"can-decoder/internal/can"
	"can-decoder/internal/catalog"
	"can-decoder/internal/config"
	"can-decoder/internal/database"
	"can-decoder/internal/database/clickhouse"
	"can-decoder/internal/database/influxdb"
	"can-decoder/internal/decoder"
	"can-decoder/internal/logging"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configFile := flag.String("config", "candecode.toml", "Path to TOML configuration file")
	flag.Parse()

	logger := logging.ConfigureRuntime("can-reader")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Info().
		Str("interface", cfg.CAN.Interface).
		Str("dbc", cfg.CAN.DBC).
		Bool("clickhouse", cfg.ClickHouse.Enabled).
		Bool("influxdb", cfg.InfluxDB.Enabled).
		Msg("starting CAN decoder bridge")

	holder := catalog.NewHolder(nil)
	if cfg.CAN.DBC != "" {
		c, err := catalog.LoadDBCFile(cfg.CAN.DBC)
		if err != nil {
			log.Fatal().Err(err).Str("dbc", cfg.CAN.DBC).Msg("failed to load DBC")
		}
		holder.Swap(c)
		logger.Info().Int("messages", c.Len()).Msg("catalog loaded")
	} else {
		logger.Warn().Msg("no DBC configured, frames are counted but not decoded")
	}
	dec := decoder.New(holder)

	canReader, err := can.NewReader(cfg.CAN.Interface, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create CAN reader")
	}
	defer canReader.Close()

	if ids := cfg.CAN.FilterIDs(); len(ids) > 0 {
		if err := canReader.SetFilter(ids); err != nil {
			logger.Warn().Err(err).Msg("failed to set filters")
		} else {
			logger.Info().Int("filters", len(ids)).Msg("applied CAN ID filters")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := database.NewSession()
	logger.Info().Str("session", session.String()).Msg("session started")

	var (
		writers     []database.Writer
		statsWriter *clickhouse.StatsWriter
	)

	if cfg.ClickHouse.Enabled {
		chConfig := clickhouse.Config{
			Host:       cfg.ClickHouse.Host,
			Port:       cfg.ClickHouse.Port,
			Database:   cfg.ClickHouse.Database,
			Username:   cfg.ClickHouse.Username,
			Password:   cfg.ClickHouse.Password,
			Table:      cfg.ClickHouse.Table,
			StatsTable: cfg.ClickHouse.StatsTable,
		}
		chWriter, err := clickhouse.New(ctx, chConfig, cfg.BatchSize, session, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create ClickHouse writer")
		}
		writers = append(writers, chWriter)

		if err := clickhouse.CreateStatsTable(ctx, chWriter.GetConn(), chConfig.StatsTable); err != nil {
			log.Fatal().Err(err).Msg("failed to create statistics table")
		}
		statsWriter = clickhouse.NewStatsWriter(chWriter.GetConn(), chConfig.StatsTable, max(cfg.BatchSize/10, 1), session, logger)
	}

	if cfg.InfluxDB.Enabled {
		influxWriter, err := influxdb.New(influxdb.Config{
			URL:      cfg.InfluxDB.URL,
			Token:    cfg.InfluxDB.Token,
			Database: cfg.InfluxDB.Database,
		}, cfg.BatchSize, session, logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create InfluxDB writer")
		}
		writers = append(writers, influxWriter)
	}

	statsCollector := can.NewStatsCollector(cfg.CAN.Interface, time.Duration(cfg.CAN.StatsInterval)*time.Second, logger)

	// Start readers and writers
	for _, w := range writers {
		w.Start()
	}
	if statsWriter != nil {
		statsWriter.Start()
	}
	statsCollector.Start()
	canReader.Start(ctx)

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for snapshot := range statsCollector.GetStatsChannel() {
			if statsWriter != nil {
				statsWriter.Write(snapshot)
			}
			logger.Info().
				Uint64("rx", snapshot.RXFrames).
				Uint64("eff", snapshot.EFFTotal).
				Uint64("sff", snapshot.SFFTotal).
				Int("ids", len(snapshot.MessageIDs)).
				Msg("frame statistics")
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logger.Info().Msg("bridge started, press Ctrl+C to stop")

	var messageCount, decodeErrors, readErrors uint64
	msgs := canReader.GetMessageChannel()
	errs := canReader.GetErrorChannel()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case <-hup:
			reloadCatalog(holder, cfg.CAN.DBC)

		case msg, ok := <-msgs:
			if !ok {
				break loop
			}
			messageCount++
			statsCollector.Observe(msg.Frame)
			if holder.Load() == nil || msg.Frame.RTR || msg.Frame.Error {
				continue
			}

			decoded, err := dec.DecodeFrame(msg)
			if err != nil {
				decodeErrors++
				if errors.Is(err, catalog.ErrUnknownMessage) && cfg.CAN.SkipUnknown {
					continue
				}
				logger.Debug().Err(err).Uint32("can_id", msg.Frame.ID).Msg("decode failed")
				continue
			}
			for _, w := range writers {
				w.Write(decoded)
			}

			if messageCount%1000 == 0 {
				logger.Info().Uint64("messages", messageCount).Uint64("decode_errors", decodeErrors).Msg("progress")
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			readErrors++
			logger.Warn().Err(err).Msg("CAN error")
		}
	}

	logger.Info().Msg("shutting down")
	// The stats writer shares the ClickHouse connection that the signal
	// writer closes, so it goes first.
	var sinks []io.Closer
	if statsWriter != nil {
		sinks = append(sinks, statsWriter)
	}
	for _, w := range writers {
		sinks = append(sinks, w)
	}
	shutdown(logger, canReader, statsCollector, forwarded, sinks...)
	logger.Info().
		Uint64("messages", messageCount).
		Uint64("decode_errors", decodeErrors).
		Uint64("read_errors", readErrors).
		Msg("final statistics")
}

type stopper interface {
	Stop()
}

// shutdown stops producers before the sinks they feed: the CAN reader, then
// the stats publisher and its forwarder, then each sink in order.
func shutdown(logger zerolog.Logger, reader io.Closer, stats stopper, forwarded <-chan struct{}, sinks ...io.Closer) {
	if err := reader.Close(); err != nil {
		logger.Warn().Err(err).Msg("CAN reader close failed")
	}
	stats.Stop()
	<-forwarded
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			logger.Error().Err(err).Msg("writer close failed")
		}
	}
}

func reloadCatalog(holder *catalog.Holder, path string) {
	if path == "" {
		log.Warn().Msg("SIGHUP ignored, no DBC configured")
		return
	}
	c, err := catalog.LoadDBCFile(path)
	if err != nil {
		log.Error().Err(err).Str("dbc", path).Msg("catalog reload failed, keeping previous catalog")
		return
	}
	holder.Swap(c)
	log.Info().Str("dbc", path).Int("messages", c.Len()).Msg("catalog reloaded")
}
