package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"can-decoder/internal/can"
	"can-decoder/internal/capture"
	"can-decoder/internal/catalog"
	"can-decoder/internal/decoder"
	"can-decoder/internal/logging"
	"can-decoder/internal/models"
	"can-decoder/internal/render"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-dbc file] [-log file | -pcap file] [-skip-malformed] <interface>\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "log replay prints only frames recorded on <interface>; use \"any\" for all")
	flag.PrintDefaults()
}

func main() {
	dbcFile := flag.String("dbc", "", "DBC file used to decode signals")
	logFile := flag.String("log", "", "replay a candump log file instead of a live interface")
	pcapFile := flag.String("pcap", "", "replay a pcapng capture instead of a live interface")
	skipMalformed := flag.Bool("skip-malformed", false, "skip unparsable log lines instead of stopping")
	flag.Usage = usage
	flag.Parse()

	logger := logging.ConfigureRuntime("candump")

	if flag.NArg() != 1 || (*logFile != "" && *pcapFile != "") {
		usage()
		os.Exit(2)
	}
	iface := flag.Arg(0)

	var dec *decoder.Decoder
	if *dbcFile != "" {
		c, err := catalog.LoadDBCFile(*dbcFile)
		if err != nil {
			log.Fatal().Err(err).Str("dbc", *dbcFile).Msg("failed to load DBC")
		}
		dec = decoder.New(catalog.NewHolder(c))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := render.NewPrinter(os.Stdout)
	handle := func(msg models.CANMessage) {
		if dec != nil {
			printSignals(printer, dec, msg, logger)
		}
		if err := printer.Frame(msg.Frame); err != nil {
			log.Fatal().Err(err).Msg("write failed")
		}
	}

	var err error
	switch {
	case *logFile != "":
		err = replay(ctx, *logFile, capture.FormatLog, iface, *skipMalformed, logger, handle)
	case *pcapFile != "":
		err = replay(ctx, *pcapFile, capture.FormatPcap, iface, *skipMalformed, logger, handle)
	default:
		err = live(ctx, iface, logger, handle)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("candump failed")
	}
}

// printSignals prints decoded signals for frames the catalog knows. Unknown
// identifiers print nothing.
func printSignals(p *render.Printer, dec *decoder.Decoder, msg models.CANMessage, logger zerolog.Logger) {
	if msg.Frame.RTR || msg.Frame.Error {
		return
	}
	decoded, err := dec.DecodeFrame(msg)
	switch {
	case errors.Is(err, catalog.ErrUnknownMessage):
		return
	case err != nil:
		logger.Debug().Err(err).Uint32("can_id", msg.Frame.ID).Msg("decode failed")
		p.Failure(err)
		return
	}
	p.Decoded(decoded)
}

func replay(ctx context.Context, path string, format capture.Format, iface string, skip bool, logger zerolog.Logger, handle func(models.CANMessage)) error {
	policy := capture.Abort
	if skip {
		policy = capture.SkipMalformed
	}
	src, err := capture.OpenFile(path, format, capture.Options{Interface: iface, Policy: policy, Logger: logger})
	if err != nil {
		return err
	}
	defer src.Close()

	for ctx.Err() == nil {
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
		handle(msg)
	}
	return nil
}

func live(ctx context.Context, iface string, logger zerolog.Logger, handle func(models.CANMessage)) error {
	reader, err := can.NewReader(iface, logger)
	if err != nil {
		return err
	}
	defer reader.Close()
	reader.Start(ctx)

	msgs := reader.GetMessageChannel()
	errs := reader.GetErrorChannel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			handle(msg)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn().Err(err).Msg("IO error")
		}
	}
}
