package models

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// Timestamp is the "(seconds.fraction)" prefix of a candump log line. Nanos
// holds the fraction as printed; it is not scaled to nanoseconds.
type Timestamp struct {
	Seconds    uint64 `json:"seconds"`
	Nanos      uint64 `json:"nanos"`
	FracDigits int    `json:"-"` // digits printed after the dot
}

// maxUnixSeconds is the largest second count time.Unix accepts without
// wrapping its internal representation.
const maxUnixSeconds = math.MaxInt64 - 62135596800

// ErrTimestampRange is returned for seconds beyond what time.Time can hold.
var ErrTimestampRange = errors.New("timestamp out of range")

// Time converts the printed fraction to a wall-clock instant. Fractions with
// more than nine digits are truncated to nanosecond resolution.
func (t Timestamp) Time() (time.Time, error) {
	if t.Seconds > maxUnixSeconds {
		return time.Time{}, errors.Wrapf(ErrTimestampRange, "%d seconds", t.Seconds)
	}
	frac := t.Nanos
	digits := t.FracDigits
	for ; digits > 9; digits-- {
		frac /= 10
	}
	for ; digits < 9 && digits > 0; digits++ {
		frac *= 10
	}
	return time.Unix(int64(t.Seconds), int64(frac)).UTC(), nil
}

// LogEntry is one parsed candump log line.
type LogEntry struct {
	Timestamp  Timestamp `json:"timestamp"`
	Interface  string    `json:"interface"`
	FrameID    uint32    `json:"frame_id"`
	FrameBody  uint64    `json:"frame_body"`
	BodyDigits int       `json:"-"` // hex digits present in the body
}

// String formats the entry in the candump log format.
func (e LogEntry) String() string {
	return fmt.Sprintf("(%d.%0*d) %s %X#%0*X",
		e.Timestamp.Seconds, e.Timestamp.FracDigits, e.Timestamp.Nanos,
		e.Interface, e.FrameID, e.BodyDigits, e.FrameBody)
}

// Payload unpacks the big-endian frame body into bytes. The byte count is
// implied by the number of hex digits, rounded up.
func (e LogEntry) Payload() []byte {
	n := (e.BodyDigits + 1) / 2
	if n > MaxPayload {
		n = MaxPayload
	}
	out := make([]byte, n)
	body := e.FrameBody
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(body)
		body >>= 8
	}
	return out
}

// Message converts the entry to a frame envelope for replay.
func (e LogEntry) Message() (CANMessage, error) {
	ts, err := e.Timestamp.Time()
	if err != nil {
		return CANMessage{}, err
	}
	frame, err := NewCANFrame(e.FrameID, e.Payload())
	if err != nil {
		return CANMessage{}, err
	}
	return CANMessage{
		Frame:     frame,
		Timestamp: ts,
		Interface: e.Interface,
	}, nil
}
