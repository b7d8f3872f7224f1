package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// SocketCAN can_id flag bits and identifier masks
const (
	EFFFlag uint32 = 0x80000000 // extended frame format
	RTRFlag uint32 = 0x40000000 // remote transmission request
	ERRFlag uint32 = 0x20000000 // error frame

	SFFMask uint32 = 0x000007FF
	EFFMask uint32 = 0x1FFFFFFF
)

// MaxPayload is the classic CAN payload size in bytes.
const MaxPayload = 8

// CANFrame represents a CAN 2.0 frame
type CANFrame struct {
	ID       uint32 // may still carry EFFFlag when built from a raw can_id
	Extended bool
	RTR      bool
	Error    bool
	DLC      uint8 // authoritative payload length, 0..8
	Data     [MaxPayload]byte
}

// NewCANFrame builds a data frame from an identifier and payload. Identifiers
// above the standard range, or carrying EFFFlag, are marked extended.
func NewCANFrame(id uint32, payload []byte) (CANFrame, error) {
	if len(payload) > MaxPayload {
		return CANFrame{}, errors.Newf("payload of %d bytes exceeds %d", len(payload), MaxPayload)
	}
	f := CANFrame{
		ID:       id &^ EFFFlag,
		Extended: id&EFFFlag != 0 || id&^EFFFlag > SFFMask,
		DLC:      uint8(len(payload)),
	}
	copy(f.Data[:], payload)
	return f, nil
}

// Payload returns the first DLC bytes of the frame data.
func (f CANFrame) Payload() []byte {
	n := int(f.DLC)
	if n > MaxPayload {
		n = MaxPayload
	}
	return f.Data[:n]
}

// Key returns the identifier with the extended-frame marker stripped, the form
// used to index the signal catalog.
func (f CANFrame) Key() uint32 {
	return CatalogKey(f.ID)
}

// CatalogKey strips the extended-frame marker bit from an identifier.
func CatalogKey(id uint32) uint32 {
	return id &^ EFFFlag
}

// FrameFromCANID splits a raw SocketCAN can_id into identifier and flags.
func FrameFromCANID(canID uint32, dlc uint8, data []byte) CANFrame {
	f := CANFrame{
		Extended: canID&EFFFlag != 0,
		RTR:      canID&RTRFlag != 0,
		Error:    canID&ERRFlag != 0,
		DLC:      dlc,
	}
	if f.DLC > MaxPayload {
		f.DLC = MaxPayload
	}
	if f.Extended {
		f.ID = canID & EFFMask
	} else {
		f.ID = canID & SFFMask
	}
	copy(f.Data[:], data)
	return f
}

func (f CANFrame) String() string {
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	fmt.Fprintf(&b, " [%d]", f.DLC)
	if f.RTR {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, c := range f.Payload() {
		fmt.Fprintf(&b, " %02X", c)
	}
	return b.String()
}

// CANMessage includes the CAN frame and timestamp
type CANMessage struct {
	Frame     CANFrame
	Timestamp time.Time
	Interface string
}
