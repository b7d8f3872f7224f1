package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"can-decoder/internal/can"
	"can-decoder/internal/capture"
	"can-decoder/internal/config"
	"can-decoder/internal/logging"
	"can-decoder/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configFile := flag.String("config", "", "optional TOML configuration file for filters and interval")
	plain := flag.Bool("plain", false, "print a text report every interval instead of the live table")
	logFile := flag.String("log", "", "count frames from a candump log file")
	pcapFile := flag.String("pcap", "", "count frames from a pcapng capture")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config file] [-plain] [-log file | -pcap file] <interface>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logging.ConfigureRuntime("canstats")

	if flag.NArg() != 1 || (*logFile != "" && *pcapFile != "") {
		flag.Usage()
		os.Exit(2)
	}
	iface := flag.Arg(0)

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
	}
	interval := time.Duration(cfg.CAN.StatsInterval) * time.Second

	collector := can.NewStatsCollector(iface, interval, logger)

	if *logFile != "" || *pcapFile != "" {
		path, format := *logFile, capture.FormatLog
		if *pcapFile != "" {
			path, format = *pcapFile, capture.FormatPcap
		}
		if err := count(collector, path, format, iface, logger); err != nil {
			log.Fatal().Err(err).Msg("replay failed")
		}
		fmt.Print(collector.Snapshot().String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := can.NewReader(iface, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create CAN reader")
	}
	defer reader.Close()
	if err := reader.SetFilter(cfg.CAN.FilterIDs()); err != nil {
		logger.Warn().Err(err).Msg("failed to set filters")
	}
	reader.Start(ctx)

	go feed(ctx, reader, collector, logger)

	if *plain {
		collector.Start()
		defer collector.Stop()
		stats := collector.GetStatsChannel()
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-stats:
				fmt.Println(snapshot.String())
			}
		}
	}

	// The table owns the terminal, so keep log records off it.
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	program := tea.NewProgram(tui.NewStatsModel(collector.Snapshot, iface, 250*time.Millisecond), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatal().Err(err).Msg("stats view failed")
	}
}

func feed(ctx context.Context, reader *can.Reader, collector *can.StatsCollector, logger zerolog.Logger) {
	msgs := reader.GetMessageChannel()
	errs := reader.GetErrorChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			collector.Observe(msg.Frame)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn().Err(err).Msg("IO error")
		}
	}
}

func count(collector *can.StatsCollector, path string, format capture.Format, iface string, logger zerolog.Logger) error {
	src, err := capture.OpenFile(path, format, capture.Options{Interface: iface, Policy: capture.SkipMalformed, Logger: logger})
	if err != nil {
		return err
	}
	defer src.Close()

	for {
		msg, err := src.NextMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if format == capture.FormatLog && iface != "any" && msg.Interface != iface {
			continue
		}
		collector.Observe(msg.Frame)
	}
}
