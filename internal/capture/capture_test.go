package capture

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"can-decoder/internal/candump"
	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog"
)

const sampleLog = `(1547046014.597158) vcan0 7B#1C7

(1547046014.600000) vcan0 18FEF1FE#0011223344556677
not a candump line
(1547046014.700000) vcan1 100#FF
`

func TestLogReaderSkipMalformed(t *testing.T) {
	r := NewLogReader(strings.NewReader(sampleLog), SkipMalformed, zerolog.Nop())

	var ids []uint32
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		ids = append(ids, e.FrameID)
	}
	if len(ids) != 3 || ids[0] != 0x7B || ids[1] != 0x18FEF1FE || ids[2] != 0x100 {
		t.Fatalf("ids = %X", ids)
	}
	if r.Skipped() != 1 || r.Line() != 5 {
		t.Fatalf("skipped=%d line=%d", r.Skipped(), r.Line())
	}
}

func TestLogReaderAbortReportsLine(t *testing.T) {
	r := NewLogReader(strings.NewReader(sampleLog), Abort, zerolog.Nop())
	for i := 0; i < 2; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
	}
	_, err := r.Next()
	if !errors.Is(err, candump.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	var perr *candump.ParseError
	if !errors.As(err, &perr) || perr.Rule != candump.RuleOpen {
		t.Fatalf("expected open rule failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("error should name the line: %v", err)
	}
}

func TestLogReaderNextMessage(t *testing.T) {
	r := NewLogReader(strings.NewReader("(1.5) can0 18FEF1FE#0102030405060708\n"), Abort, zerolog.Nop())
	msg, err := r.NextMessage()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Frame.ID != 0x18FEF1FE || !msg.Frame.Extended || msg.Frame.DLC != 8 || msg.Interface != "can0" {
		t.Fatalf("msg = %+v", msg)
	}
	if !msg.Timestamp.Equal(time.Unix(1, 500_000_000)) {
		t.Fatalf("timestamp = %v", msg.Timestamp)
	}
	if _, err := r.NextMessage(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func canFrameBytes(order binary.ByteOrder, canID uint32, payload []byte) []byte {
	buf := make([]byte, 16)
	order.PutUint32(buf[0:4], canID)
	buf[4] = byte(len(payload))
	copy(buf[8:], payload)
	return buf
}

func sllHeader() []byte {
	h := make([]byte, 16)
	binary.BigEndian.PutUint16(h[0:2], 0)      // packet type: to us
	binary.BigEndian.PutUint16(h[2:4], 280)    // ARPHRD_CAN
	binary.BigEndian.PutUint16(h[14:16], 0x0C) // ETH_P_CAN
	return h
}

func writeCapture(t *testing.T, linkType layers.LinkType, ts time.Time, packets ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w, err := pcapgo.NewNgWriter(&buf, linkType)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	for i, p := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(p),
			Length:        len(p),
		}
		if err := w.WritePacket(ci, p); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return &buf
}

func TestPcapReaderSocketCANLinkType(t *testing.T) {
	ts := time.Unix(1547046014, 597158000)
	buf := writeCapture(t, LinkTypeCANSocketCAN, ts,
		canFrameBytes(binary.BigEndian, 0x98FEF1FE, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
		canFrameBytes(binary.BigEndian, 0x7B, []byte{0xAA}),
	)

	r, err := NewPcapReader(buf, "vcan0", zerolog.Nop())
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	msg, err := r.NextMessage()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Frame.ID != 0x18FEF1FE || !msg.Frame.Extended || msg.Frame.DLC != 8 || msg.Frame.Data[7] != 8 {
		t.Fatalf("frame = %+v", msg.Frame)
	}
	if !msg.Timestamp.Equal(ts) || msg.Interface != "vcan0" {
		t.Fatalf("timestamp=%v iface=%s", msg.Timestamp, msg.Interface)
	}

	msg, err = r.NextMessage()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Frame.ID != 0x7B || msg.Frame.Extended || !bytes.Equal(msg.Frame.Payload(), []byte{0xAA}) {
		t.Fatalf("frame = %+v", msg.Frame)
	}
	if _, err := r.NextMessage(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if r.PacketCount() != 2 {
		t.Fatalf("packets = %d", r.PacketCount())
	}
}

func TestPcapReaderLinuxSLL(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	frame := append(sllHeader(), canFrameBytes(binary.LittleEndian, 0x123, []byte{0x01, 0xC7})...)
	buf := writeCapture(t, layers.LinkTypeLinuxSLL, ts, []byte{0x00, 0x01}, frame)

	r, err := NewPcapReader(buf, "can0", zerolog.Nop())
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	msg, err := r.NextMessage()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Frame.ID != 0x123 || msg.Frame.Extended || !bytes.Equal(msg.Frame.Payload(), []byte{0x01, 0xC7}) {
		t.Fatalf("frame = %+v", msg.Frame)
	}
	if r.PacketCount() != 2 {
		t.Fatalf("short packet should be counted and skipped, count = %d", r.PacketCount())
	}
}

func TestPcapReaderRejectsEthernet(t *testing.T) {
	buf := writeCapture(t, layers.LinkTypeEthernet, time.Unix(0, 0))
	if _, err := NewPcapReader(buf, "eth0", zerolog.Nop()); !errors.Is(err, ErrUnsupportedLinkType) {
		t.Fatalf("expected ErrUnsupportedLinkType, got %v", err)
	}
}

var _ Source = (*LogReader)(nil)
var _ Source = (*PcapReader)(nil)

func TestSourcesYieldModels(t *testing.T) {
	var src Source = NewLogReader(strings.NewReader("(0.1) can0 1#0000000000000000\n"), Abort, zerolog.Nop())
	msg, err := src.NextMessage()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Frame != (models.CANFrame{ID: 1, DLC: 8}) {
		t.Fatalf("frame = %+v", msg.Frame)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "dump.log")
	if err := os.WriteFile(logPath, []byte("(1.000001) vcan0 7B#0011223344556677\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := OpenFile(logPath, FormatLog, Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	msg, err := src.NextMessage()
	if err != nil || msg.Frame.ID != 0x7B || msg.Interface != "vcan0" {
		t.Fatalf("msg=%+v err=%v", msg, err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	pcapPath := filepath.Join(dir, "dump.pcapng")
	buf := writeCapture(t, LinkTypeCANSocketCAN, time.Unix(1, 0), canFrameBytes(binary.BigEndian, 0x7B, []byte{1}))
	if err := os.WriteFile(pcapPath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err = OpenFile(pcapPath, FormatPcap, Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("open pcap: %v", err)
	}
	defer src.Close()
	msg, err = src.NextMessage()
	if err != nil || msg.Interface != "pcap" || msg.Frame.ID != 0x7B {
		t.Fatalf("msg=%+v err=%v", msg, err)
	}

	if _, err := OpenFile(filepath.Join(dir, "missing"), FormatLog, Options{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := OpenFile(logPath, FormatPcap, Options{Logger: zerolog.Nop()}); err == nil {
		t.Fatalf("candump text is not a pcapng capture")
	}
}
