package capture

import (
	"bufio"
	"io"
	"strings"

	"can-decoder/internal/candump"
	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Policy selects what LogReader does with a line that does not parse.
type Policy int

const (
	// Abort stops at the first malformed line.
	Abort Policy = iota
	// SkipMalformed logs the line and continues.
	SkipMalformed
)

// LogReader reads candump log files line by line.
type LogReader struct {
	scanner *bufio.Scanner
	policy  Policy
	logger  zerolog.Logger
	line    int
	skipped int
}

// NewLogReader wraps r. Lines longer than 64 KiB are reported as read errors.
func NewLogReader(r io.Reader, policy Policy, logger zerolog.Logger) *LogReader {
	return &LogReader{
		scanner: bufio.NewScanner(r),
		policy:  policy,
		logger:  logger.With().Str("component", "log_reader").Logger(),
	}
}

// Next returns the next parsed entry, or io.EOF at the end of input.
func (r *LogReader) Next() (models.LogEntry, error) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		entry, err := candump.Parse(text)
		if err == nil {
			return entry, nil
		}
		if r.policy == SkipMalformed {
			r.skipped++
			r.logger.Warn().Err(err).Int("line", r.line).Msg("skipping malformed log line")
			continue
		}
		return models.LogEntry{}, errors.Wrapf(err, "line %d", r.line)
	}
	if err := r.scanner.Err(); err != nil {
		return models.LogEntry{}, errors.Wrapf(err, "reading log after line %d", r.line)
	}
	return models.LogEntry{}, io.EOF
}

// NextMessage returns the next entry converted to a frame envelope.
func (r *LogReader) NextMessage() (models.CANMessage, error) {
	entry, err := r.Next()
	if err != nil {
		return models.CANMessage{}, err
	}
	msg, err := entry.Message()
	if err != nil {
		return models.CANMessage{}, errors.Wrapf(err, "line %d", r.line)
	}
	return msg, nil
}

// Line returns the number of the last line read.
func (r *LogReader) Line() int { return r.line }

// Skipped returns how many malformed lines were skipped.
func (r *LogReader) Skipped() int { return r.skipped }
