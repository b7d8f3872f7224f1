package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"can-decoder/internal/models"
)

func TestClassify(t *testing.T) {
	cases := map[byte]ByteClass{
		0x00: ClassNull,
		'A':  ClassPrintable,
		'~':  ClassPrintable,
		' ':  ClassWhitespace,
		'\t': ClassWhitespace,
		0x0B: ClassASCIIOther,
		0x7F: ClassASCIIOther,
		0x01: ClassASCIIOther,
		0x80: ClassNonASCII,
		0xFF: ClassNonASCII,
	}
	for b, want := range cases {
		if got := Classify(b); got != want {
			t.Fatalf("Classify(%#x) = %s, want %s", b, got, want)
		}
	}
}

func TestFormatFramePlainOutput(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{})

	sff := models.CANFrame{ID: 0x7B, DLC: 2, Data: [8]byte{0x01, 0xC7}}
	if got := p.FormatFrame(sff); got != "SFF 0000007b 01 c7" {
		t.Fatalf("sff = %q", got)
	}

	eff := models.CANFrame{ID: 0x18FEF1FE, Extended: true, DLC: 3, Data: [8]byte{0x00, 0x20, 0xFF}}
	if got := p.FormatFrame(eff); got != "EFF 18fef1fe 00 20 ff" {
		t.Fatalf("eff = %q", got)
	}
}

func TestDecodedOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	msg := models.DecodedMessage{
		Message: "Engine",
		Signals: []models.SignalValue{
			{Name: "Speed", Value: 60, Unit: "km/h"},
			{Name: "Gear", Value: 3},
		},
	}
	if err := p.Decoded(msg); err != nil {
		t.Fatalf("decoded: %v", err)
	}
	want := "\nEngine\nSpeed → value 60.0000 km/h\nGear → value 3.0000\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestFrameAndFailureLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	if err := p.Frame(models.CANFrame{ID: 1}); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if err := p.Failure(errors.New("boom")); err != nil {
		t.Fatalf("failure: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 || lines[0] != "SFF 00000001" || lines[1] != "error: boom" {
		t.Fatalf("lines = %q", lines)
	}
}
