package capture

import (
	"encoding/binary"
	"io"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog"
)

// LinkTypeCANSocketCAN is DLT_CAN_SOCKETCAN. Its can_id is in network byte
// order.
const LinkTypeCANSocketCAN layers.LinkType = 227

// ErrUnsupportedLinkType is returned for captures that do not carry CAN.
var ErrUnsupportedLinkType = errors.New("unsupported link type")

// PcapReader reads CAN frames from a pcap-ng capture.
type PcapReader struct {
	reader      *pcapgo.NgReader
	linkType    layers.LinkType
	iface       string
	logger      zerolog.Logger
	packetCount uint64
}

// NewPcapReader opens a pcap-ng stream. iface names the interface reported
// on the produced messages.
func NewPcapReader(r io.Reader, iface string, logger zerolog.Logger) (*PcapReader, error) {
	ngReader, err := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pcapng reader")
	}

	linkType := ngReader.LinkType()
	if linkType != layers.LinkTypeLinuxSLL && linkType != LinkTypeCANSocketCAN {
		return nil, errors.Wrapf(ErrUnsupportedLinkType, "%d", linkType)
	}

	return &PcapReader{
		reader:   ngReader,
		linkType: linkType,
		iface:    iface,
		logger:   logger.With().Str("component", "pcap_reader").Logger(),
	}, nil
}

// NextMessage returns the next CAN frame; non-CAN packets are skipped.
func (r *PcapReader) NextMessage() (models.CANMessage, error) {
	for {
		data, ci, err := r.reader.ReadPacketData()
		if err == io.EOF {
			return models.CANMessage{}, io.EOF
		}
		if err != nil {
			return models.CANMessage{}, errors.Wrap(err, "failed to read packet data")
		}
		r.packetCount++

		frame, err := r.extractFrame(data)
		if err != nil {
			r.logger.Debug().Err(err).Uint64("packet", r.packetCount).Msg("skipping packet")
			continue
		}

		return models.CANMessage{
			Frame:     frame,
			Timestamp: ci.Timestamp.UTC(),
			Interface: r.iface,
		}, nil
	}
}

func (r *PcapReader) extractFrame(data []byte) (models.CANFrame, error) {
	switch r.linkType {
	case layers.LinkTypeLinuxSLL:
		var sll layers.LinuxSLL
		if err := sll.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return models.CANFrame{}, errors.Wrap(err, "linux sll header")
		}
		return rawFrame(sll.Payload, binary.LittleEndian)
	default:
		return rawFrame(data, binary.BigEndian)
	}
}

func rawFrame(data []byte, order binary.ByteOrder) (models.CANFrame, error) {
	if len(data) < 8 {
		return models.CANFrame{}, errors.Newf("data too short for CAN frame: %d", len(data))
	}
	dlc := data[4]
	if dlc > models.MaxPayload {
		dlc = models.MaxPayload
	}
	body := data[8:]
	if len(body) > int(dlc) {
		body = body[:dlc]
	}
	return models.FrameFromCANID(order.Uint32(data[0:4]), dlc, body), nil
}

// PacketCount returns the number of packets read so far.
func (r *PcapReader) PacketCount() uint64 { return r.packetCount }
