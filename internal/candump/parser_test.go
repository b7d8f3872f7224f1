package candump

import (
	"bytes"
	"testing"
	"time"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

func TestParseReferenceLine(t *testing.T) {
	got, err := Parse("(1547046014.597158) vcan0 7B#1C7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Timestamp.Seconds != 1547046014 || got.Timestamp.Nanos != 597158 {
		t.Fatalf("timestamp = %+v", got.Timestamp)
	}
	if got.Interface != "vcan0" || got.FrameID != 123 || got.FrameBody != 455 {
		t.Fatalf("entry = %+v", got)
	}
}

func TestParseAcceptedVariants(t *testing.T) {
	cases := []struct {
		name string
		line string
		want models.LogEntry
	}{
		{
			name: "no whitespace before interface",
			line: "(1.2)can0 123#00",
			want: models.LogEntry{Timestamp: models.Timestamp{Seconds: 1, Nanos: 2, FracDigits: 1}, Interface: "can0", FrameID: 0x123, FrameBody: 0, BodyDigits: 2},
		},
		{
			name: "extra spaces and tabs",
			line: "(10.000001) \t vcan1   18FEF1FE#DEADBEEF01020304",
			want: models.LogEntry{Timestamp: models.Timestamp{Seconds: 10, Nanos: 1, FracDigits: 6}, Interface: "vcan1", FrameID: 0x18FEF1FE, FrameBody: 0xDEADBEEF01020304, BodyDigits: 16},
		},
		{
			name: "lower case hex",
			line: "(0.0) can0 7ff#abcdef",
			want: models.LogEntry{Timestamp: models.Timestamp{FracDigits: 1}, Interface: "can0", FrameID: 0x7FF, FrameBody: 0xABCDEF, BodyDigits: 6},
		},
		{
			name: "nanos longer than nine digits",
			line: "(5.12345678901) can0 1#1",
			want: models.LogEntry{Timestamp: models.Timestamp{Seconds: 5, Nanos: 12345678901, FracDigits: 11}, Interface: "can0", FrameID: 1, FrameBody: 1, BodyDigits: 1},
		},
		{
			name: "trailing newline",
			line: "(1547046014.597158) vcan0 7B#1C7\r\n",
			want: models.LogEntry{Timestamp: models.Timestamp{Seconds: 1547046014, Nanos: 597158, FracDigits: 6}, Interface: "vcan0", FrameID: 0x7B, FrameBody: 0x1C7, BodyDigits: 3},
		},
	}
	for _, tc := range cases {
		got, err := Parse(tc.line)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		line   string
		rule   string
		offset int
	}{
		{"garbage", RuleOpen, 0},
		{"", RuleOpen, 0},
		{"(.5) can0 1#1", RuleSeconds, 1},
		{"(1,5) can0 1#1", RuleDot, 2},
		{"(1.) can0 1#1", RuleNanos, 3},
		{"(1.5 can0 1#1", RuleClose, 4},
		{"(1.5) #1", RuleInterface, 6},
		{"(1.5) can0", RuleFrameID, 10},
		{"(1.5) can0 1-1", RuleHash, 12},
		{"(1.5) can0 1#", RuleFrameBody, 13},
		{"(1.5) can0 1#ZZ", RuleFrameBody, 13},
		{"(1.5) can0 1#12 R", RuleEnd, 16},
		{"(1.5) can0 1#12xyz", RuleEnd, 15},
		{"(1.5) vcan07B#1C7", RuleFrameID, 13},
		{"(1.5) can0 100000000#1", RuleFrameID, 11},
		{"(1.5) can0 1#11223344556677889", RuleFrameBody, 13},
		{"(1.5) can0 1#00000000000000000001", RuleFrameBody, 13},
		{"(99999999999999999999.5) can0 1#1", RuleSeconds, 1},
	}
	for _, tc := range cases {
		_, err := Parse(tc.line)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("%q: expected ErrParse, got %v", tc.line, err)
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("%q: expected *ParseError, got %T", tc.line, err)
		}
		if perr.Rule != tc.rule || perr.Offset != tc.offset {
			t.Fatalf("%q: rule=%s offset=%d, want rule=%s offset=%d", tc.line, perr.Rule, perr.Offset, tc.rule, tc.offset)
		}
		if perr.Remaining != tc.line[tc.offset:] {
			t.Fatalf("%q: remaining=%q", tc.line, perr.Remaining)
		}
	}
}

func TestEntryStringRoundTrip(t *testing.T) {
	for _, line := range []string{
		"(1547046014.597158) vcan0 7B#1C7",
		"(1.000001) can0 18FEF1FE#0001020304050607",
		"(0.0) can1 0#00",
	} {
		e, err := Parse(line)
		if err != nil {
			t.Fatalf("%q: parse: %v", line, err)
		}
		if got := e.String(); got != line {
			t.Fatalf("String() = %q, want %q", got, line)
		}
	}
}

func TestEntryPayloadAndMessage(t *testing.T) {
	e, err := Parse("(1547046014.597158) vcan0 7B#1C7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p := e.Payload(); !bytes.Equal(p, []byte{0x01, 0xC7}) {
		t.Fatalf("payload = %x", p)
	}

	e, _ = Parse("(1547046014.597158) vcan0 7B#0011223344556677")
	msg, err := e.Message()
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if msg.Frame.ID != 0x7B || msg.Frame.Extended || msg.Frame.DLC != 8 {
		t.Fatalf("frame = %+v", msg.Frame)
	}
	if !bytes.Equal(msg.Frame.Payload(), []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77}) {
		t.Fatalf("payload = %x", msg.Frame.Payload())
	}
	want := time.Unix(1547046014, 597158000).UTC()
	if !msg.Timestamp.Equal(want) || msg.Interface != "vcan0" {
		t.Fatalf("timestamp=%v interface=%s", msg.Timestamp, msg.Interface)
	}
}

func TestEntryMessageRejectsTimestampOutOfRange(t *testing.T) {
	e, err := Parse("(18446744073709551615.5) can0 1#1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := e.Message(); !errors.Is(err, models.ErrTimestampRange) {
		t.Fatalf("expected ErrTimestampRange, got %v", err)
	}
	if _, err := e.Timestamp.Time(); !errors.Is(err, models.ErrTimestampRange) {
		t.Fatalf("Time() expected ErrTimestampRange, got %v", err)
	}
}
