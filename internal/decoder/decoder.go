// Package decoder turns CAN payloads into scaled physical signal values.
//
// Values are computed in float32. The raw bit field is extracted with exact
// integer arithmetic; the product raw*factor is rounded to float32 before the
// offset is added so the compiler cannot fuse the two operations.
package decoder

import (
	"encoding/binary"

	"can-decoder/internal/catalog"
	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

// ErrShortFrame is returned when a payload is not exactly 8 bytes long.
var ErrShortFrame = errors.New("decoder: payload is not 8 bytes")

// Decode extracts every signal of msg from payload, in catalog order.
func Decode(msg models.MessageDescriptor, payload []byte) ([]models.SignalValue, error) {
	if len(payload) != models.MaxPayload {
		return nil, errors.Wrapf(ErrShortFrame, "message %q: got %d bytes", msg.Name, len(payload))
	}

	le := binary.LittleEndian.Uint64(payload)
	be := binary.BigEndian.Uint64(payload)

	values := make([]models.SignalValue, 0, len(msg.Signals))
	for _, sig := range msg.Signals {
		if err := sig.Validate(); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "message %q", msg.Name), catalog.ErrInvalidCatalog)
		}
		word := le
		if sig.ByteOrder == models.BigEndian {
			word = be
		}
		values = append(values, models.SignalValue{
			Name:  sig.Name,
			Value: Scale(sig, Extract(sig, word)),
			Unit:  sig.Unit,
		})
	}
	return values, nil
}

// Extract isolates the raw bit field of sig from the packed payload word.
func Extract(sig models.SignalDescriptor, word uint64) uint64 {
	return (word >> sig.StartBit) & mask(sig.Length)
}

// Scale converts a raw field to its physical value. Signed signals are sign
// extended from their declared length first.
func Scale(sig models.SignalDescriptor, raw uint64) float32 {
	var v float32
	if sig.Signed {
		v = float32(signExtend(raw, sig.Length))
	} else {
		v = float32(raw)
	}
	return float32(v*float32(sig.Factor)) + float32(sig.Offset)
}

func mask(length uint8) uint64 {
	if length >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<length - 1
}

func signExtend(raw uint64, length uint8) int64 {
	if length == 0 || length >= 64 {
		return int64(raw)
	}
	if raw&(uint64(1)<<(length-1)) != 0 {
		raw |= ^mask(length)
	}
	return int64(raw)
}

// Decoder decodes frames against the catalog currently published by a Holder.
type Decoder struct {
	catalogs *catalog.Holder
}

// New returns a decoder reading catalogs from h.
func New(h *catalog.Holder) *Decoder {
	return &Decoder{catalogs: h}
}

// DecodeFrame looks the frame up in the current catalog and decodes its
// payload. Unknown identifiers fail with catalog.ErrUnknownMessage; nothing
// is partially decoded.
func (d *Decoder) DecodeFrame(msg models.CANMessage) (models.DecodedMessage, error) {
	c := d.catalogs.Load()
	if c == nil {
		return models.DecodedMessage{}, errors.Wrap(catalog.ErrUnknownMessage, "no catalog loaded")
	}
	desc, err := c.Lookup(msg.Frame.ID)
	if err != nil {
		return models.DecodedMessage{}, err
	}
	values, err := Decode(desc, msg.Frame.Payload())
	if err != nil {
		return models.DecodedMessage{}, err
	}
	return models.DecodedMessage{
		Timestamp: msg.Timestamp,
		Interface: msg.Interface,
		FrameID:   desc.ID,
		Extended:  msg.Frame.Extended,
		Message:   desc.Name,
		Signals:   values,
	}, nil
}
