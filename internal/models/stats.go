package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FrameStats holds running counters for frames seen on an interface
type FrameStats struct {
	Interface string    `json:"interface"`
	Timestamp time.Time `json:"timestamp"`

	RXFrames uint64 `json:"rx_frames"`

	EFFTotal uint64 `json:"eff_total"` // extended frames
	EFFError uint64 `json:"eff_error"`
	EFFRTR   uint64 `json:"eff_rtr"`

	SFFTotal uint64 `json:"sff_total"` // standard frames
	SFFError uint64 `json:"sff_error"`
	SFFRTR   uint64 `json:"sff_rtr"`

	MessageIDs map[uint32]uint64 `json:"message_ids"` // frames per identifier
}

// Clone returns a deep copy.
func (s FrameStats) Clone() FrameStats {
	out := s
	out.MessageIDs = make(map[uint32]uint64, len(s.MessageIDs))
	for id, n := range s.MessageIDs {
		out.MessageIDs[id] = n
	}
	return out
}

// SortedIDs returns the observed identifiers in ascending order.
func (s FrameStats) SortedIDs() []uint32 {
	ids := make([]uint32, 0, len(s.MessageIDs))
	for id := range s.MessageIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s FrameStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RX Total: %d\n", s.RXFrames)
	fmt.Fprintf(&b, "EFF Total: %d\tERR: %d\tRTR: %d\n", s.EFFTotal, s.EFFError, s.EFFRTR)
	fmt.Fprintf(&b, "SFF Total: %d\tERR: %d\tRTR: %d\n", s.SFFTotal, s.SFFError, s.SFFRTR)
	b.WriteString("Messages by CAN ID\n")
	for _, id := range s.SortedIDs() {
		fmt.Fprintf(&b, "%-10s → #%-7d\n", fmt.Sprintf("%X", id), s.MessageIDs[id])
	}
	return b.String()
}
