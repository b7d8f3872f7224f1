package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"can-decoder/internal/api"
	"can-decoder/internal/catalog"
	"can-decoder/internal/config"
	"can-decoder/internal/database/clickhouse"
	"can-decoder/internal/logging"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

func main() {
	configFile := flag.String("config", "candecode.toml", "Path to TOML configuration file")
	flag.Parse()

	logger := logging.ConfigureRuntime("api-server")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Info().
		Int("port", cfg.APIPort).
		Str("dbc", cfg.CAN.DBC).
		Bool("clickhouse", cfg.ClickHouse.Enabled).
		Msg("starting CAN decoder API server")

	holder := catalog.NewHolder(nil)
	if cfg.CAN.DBC != "" {
		c, err := catalog.LoadDBCFile(cfg.CAN.DBC)
		if err != nil {
			log.Fatal().Err(err).Str("dbc", cfg.CAN.DBC).Msg("failed to load DBC")
		}
		holder.Swap(c)
		logger.Info().Int("messages", c.Len()).Msg("catalog loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var history api.HistoryStore
	if cfg.ClickHouse.Enabled {
		conn, err := clickhouse.Open(ctx, clickhouse.Config{
			Host:       cfg.ClickHouse.Host,
			Port:       cfg.ClickHouse.Port,
			Database:   cfg.ClickHouse.Database,
			Username:   cfg.ClickHouse.Username,
			Password:   cfg.ClickHouse.Password,
			Table:      cfg.ClickHouse.Table,
			StatsTable: cfg.ClickHouse.StatsTable,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to ClickHouse")
		}
		defer conn.Close()
		history = clickhouse.NewReader(conn, cfg.ClickHouse.Table, cfg.ClickHouse.StatsTable)
	} else {
		logger.Warn().Msg("ClickHouse disabled, history endpoints will return 503")
	}

	server := api.NewServer(api.ServerConfig{
		Port:    cfg.APIPort,
		DBCPath: cfg.CAN.DBC,
	}, holder, history, logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	logger.Info().Msg("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	logger.Info().Msg("API server stopped")
}
