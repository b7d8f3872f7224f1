package models

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ByteOrder selects how the 8-byte payload is packed into a 64-bit integer
// before a signal is extracted.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota // byte 0 is least significant
	BigEndian                     // byte 0 is most significant
)

func (o ByteOrder) String() string {
	switch o {
	case LittleEndian:
		return "little_endian"
	case BigEndian:
		return "big_endian"
	default:
		return fmt.Sprintf("ByteOrder(%d)", uint8(o))
	}
}

// SignalDescriptor describes one named bit field within a message payload.
type SignalDescriptor struct {
	Name      string    `json:"name"`
	StartBit  uint8     `json:"start_bit"` // 0..63
	Length    uint8     `json:"length"`    // 1..64
	ByteOrder ByteOrder `json:"byte_order"`
	Signed    bool      `json:"signed"` // two's complement field, false by default
	Factor    float64   `json:"factor"`
	Offset    float64   `json:"offset"`
	Unit      string    `json:"unit,omitempty"`
}

// Validate checks the signal geometry against the 64-bit payload.
func (s SignalDescriptor) Validate() error {
	switch {
	case s.Name == "":
		return errors.New("signal has no name")
	case s.Length == 0 || s.Length > 64:
		return errors.Newf("signal %q: length %d outside 1..64", s.Name, s.Length)
	case s.StartBit > 63:
		return errors.Newf("signal %q: start bit %d outside 0..63", s.Name, s.StartBit)
	case int(s.StartBit)+int(s.Length) > 64:
		return errors.Newf("signal %q: start bit %d + length %d exceeds 64 bits", s.Name, s.StartBit, s.Length)
	}
	return nil
}

// MessageDescriptor is one catalog entry.
type MessageDescriptor struct {
	ID       uint32             `json:"message_id"` // extended marker stripped
	Name     string             `json:"name"`
	Extended bool               `json:"extended"`
	Signals  []SignalDescriptor `json:"signals"`
}

// MessageDefinition is the externally parsed input the catalog is built from.
// ID may be a standard or extended identifier and may carry EFFFlag.
type MessageDefinition struct {
	ID       uint32
	Extended bool
	Name     string
	Signals  []SignalDescriptor
}

// SignalValue is one decoded physical value.
type SignalValue struct {
	Name  string  `json:"name"`
	Value float32 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// DecodedMessage is a frame decoded against its catalog entry.
type DecodedMessage struct {
	Timestamp time.Time     `json:"timestamp"`
	Interface string        `json:"interface"`
	FrameID   uint32        `json:"can_id"`
	Extended  bool          `json:"extended"`
	Message   string        `json:"message"`
	Signals   []SignalValue `json:"signals"`
}
