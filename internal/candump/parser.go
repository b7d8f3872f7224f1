// Package candump parses lines of the candump log format:
//
//	(1547046014.597158) vcan0 7B#1C7
//
// The grammar is deliberately permissive: whitespace between fields is
// optional, the fraction may have any number of digits and the frame body any
// number of hex digits up to 64 bits. Matching is greedy with no backtracking.
package candump

import (
	"fmt"
	"strconv"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

// ErrParse matches every *ParseError via errors.Is.
var ErrParse = errors.New("candump: parse error")

// Grammar rule names reported in ParseError.Rule.
const (
	RuleOpen      = "open"      // "("
	RuleSeconds   = "seconds"   // digit+
	RuleDot       = "dot"       // "."
	RuleNanos     = "nanos"     // digit+
	RuleClose     = "close"     // ")"
	RuleInterface = "interface" // alphanumeric+
	RuleFrameID   = "frame_id"  // hex+
	RuleHash      = "hash"      // "#"
	RuleFrameBody = "frame_body"
	RuleEnd       = "end"
)

// ParseError reports the first grammar rule that failed to match.
type ParseError struct {
	Rule      string
	Offset    int    // byte offset into the line
	Remaining string // unconsumed input at Offset
	Err       error  // numeric overflow or length failure, if any
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("candump: rule %s failed at offset %d near %q", e.Rule, e.Offset, truncate(e.Remaining, 16))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) true for any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// maxBodyDigits is the hex length of a full 8-byte payload.
const maxBodyDigits = 2 * models.MaxPayload

type scanner struct {
	line string
	pos  int
}

func (s *scanner) fail(rule string, err error) *ParseError {
	return &ParseError{Rule: rule, Offset: s.pos, Remaining: s.line[s.pos:], Err: err}
}

func (s *scanner) tag(rule string, c byte) error {
	if s.pos >= len(s.line) || s.line[s.pos] != c {
		return s.fail(rule, nil)
	}
	s.pos++
	return nil
}

// take consumes the longest run of bytes matching class; at least one is required.
func (s *scanner) take(rule string, class func(byte) bool) (string, error) {
	start := s.pos
	for s.pos < len(s.line) && class(s.line[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return "", s.fail(rule, nil)
	}
	return s.line[start:s.pos], nil
}

func (s *scanner) number(rule string, class func(byte) bool, base, bits int) (uint64, int, error) {
	start := s.pos
	digits, err := s.take(rule, class)
	if err != nil {
		return 0, 0, err
	}
	v, err := strconv.ParseUint(digits, base, bits)
	if err != nil {
		s.pos = start
		return 0, 0, s.fail(rule, err)
	}
	return v, len(digits), nil
}

func (s *scanner) space0() {
	for s.pos < len(s.line) && isSpace(s.line[s.pos]) {
		s.pos++
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isAlnum(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

func isTrailing(c byte) bool { return isSpace(c) || c == '\r' || c == '\n' }

// Parse converts one candump log line into a LogEntry. Trailing whitespace,
// including a line terminator, is accepted; any other trailing input is an
// error of rule RuleEnd.
func Parse(line string) (models.LogEntry, error) {
	s := &scanner{line: line}
	var e models.LogEntry

	if err := s.tag(RuleOpen, '('); err != nil {
		return models.LogEntry{}, err
	}
	seconds, _, err := s.number(RuleSeconds, isDigit, 10, 64)
	if err != nil {
		return models.LogEntry{}, err
	}
	if err := s.tag(RuleDot, '.'); err != nil {
		return models.LogEntry{}, err
	}
	nanos, fracDigits, err := s.number(RuleNanos, isDigit, 10, 64)
	if err != nil {
		return models.LogEntry{}, err
	}
	if err := s.tag(RuleClose, ')'); err != nil {
		return models.LogEntry{}, err
	}
	e.Timestamp = models.Timestamp{Seconds: seconds, Nanos: nanos, FracDigits: fracDigits}

	s.space0()
	iface, err := s.take(RuleInterface, isAlnum)
	if err != nil {
		return models.LogEntry{}, err
	}
	e.Interface = iface
	s.space0()

	id, _, err := s.number(RuleFrameID, isHex, 16, 32)
	if err != nil {
		return models.LogEntry{}, err
	}
	if err := s.tag(RuleHash, '#'); err != nil {
		return models.LogEntry{}, err
	}
	bodyStart := s.pos
	body, bodyDigits, err := s.number(RuleFrameBody, isHex, 16, 64)
	if err != nil {
		return models.LogEntry{}, err
	}
	if bodyDigits > maxBodyDigits {
		s.pos = bodyStart
		return models.LogEntry{}, s.fail(RuleFrameBody, errors.Newf("%d hex digits exceed %d", bodyDigits, maxBodyDigits))
	}
	e.FrameID = uint32(id)
	e.FrameBody = body
	e.BodyDigits = bodyDigits

	for i := s.pos; i < len(line); i++ {
		if !isTrailing(line[i]) {
			s.pos = i
			return models.LogEntry{}, s.fail(RuleEnd, nil)
		}
	}
	return e, nil
}
