package can

import (
	"encoding/binary"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

// FrameSize is the size of a classic struct can_frame.
const FrameSize = 16

// ErrShortRead reports a read smaller than one struct can_frame.
var ErrShortRead = errors.New("incomplete CAN frame")

// UnmarshalFrame decodes a struct can_frame in host (little-endian) order:
// can_id(4) len(1) pad(3) data(8).
func UnmarshalFrame(buf []byte) (models.CANFrame, error) {
	if len(buf) < FrameSize {
		return models.CANFrame{}, errors.Wrapf(ErrShortRead, "%d bytes", len(buf))
	}
	canID := binary.LittleEndian.Uint32(buf[0:4])
	return models.FrameFromCANID(canID, buf[4], buf[8:16]), nil
}

// MarshalFrame encodes a frame back to the struct can_frame layout.
func MarshalFrame(f models.CANFrame) []byte {
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], RawID(f))
	buf[4] = f.DLC
	copy(buf[8:16], f.Data[:])
	return buf
}

// RawID rebuilds the SocketCAN can_id with its flag bits.
func RawID(f models.CANFrame) uint32 {
	id := f.ID
	if f.Extended {
		id = id&models.EFFMask | models.EFFFlag
	} else {
		id &= models.SFFMask
	}
	if f.RTR {
		id |= models.RTRFlag
	}
	if f.Error {
		id |= models.ERRFlag
	}
	return id
}

// Filter is one CAN_RAW_FILTER entry.
type Filter struct {
	ID   uint32
	Mask uint32
}

// ExactFilters builds exact-match data-frame filters. Identifiers carrying
// EFFFlag or above the standard range are matched as extended frames.
func ExactFilters(ids []uint32) []Filter {
	filters := make([]Filter, 0, len(ids))
	for _, raw := range ids {
		id := models.CatalogKey(raw)
		if raw&models.EFFFlag != 0 || id > models.SFFMask {
			filters = append(filters, Filter{
				ID:   id&models.EFFMask | models.EFFFlag,
				Mask: models.EFFFlag | models.RTRFlag | models.EFFMask,
			})
			continue
		}
		filters = append(filters, Filter{
			ID:   id,
			Mask: models.EFFFlag | models.RTRFlag | models.SFFMask,
		})
	}
	return filters
}
