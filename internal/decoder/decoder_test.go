package decoder

import (
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"can-decoder/internal/catalog"
	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

func single(sig models.SignalDescriptor) models.MessageDescriptor {
	return models.MessageDescriptor{ID: 0x7B, Name: "Test", Signals: []models.SignalDescriptor{sig}}
}

func TestDecodeIntegerRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		sig     models.SignalDescriptor
		payload []byte
		want    float32
	}{
		{
			name:    "le byte 0",
			sig:     models.SignalDescriptor{Name: "s", StartBit: 0, Length: 8, Factor: 1},
			payload: []byte{0xAB, 0, 0, 0, 0, 0, 0, 0},
			want:    0xAB,
		},
		{
			name:    "le 16 bits at 8",
			sig:     models.SignalDescriptor{Name: "s", StartBit: 8, Length: 16, Factor: 1},
			payload: []byte{0xFF, 0x34, 0x12, 0xFF, 0, 0, 0, 0},
			want:    0x1234,
		},
		{
			name:    "be low byte is byte 7",
			sig:     models.SignalDescriptor{Name: "s", StartBit: 0, Length: 8, ByteOrder: models.BigEndian, Factor: 1},
			payload: []byte{0, 0, 0, 0, 0, 0, 0x11, 0x22},
			want:    0x22,
		},
		{
			name:    "be top nibble",
			sig:     models.SignalDescriptor{Name: "s", StartBit: 60, Length: 4, ByteOrder: models.BigEndian, Factor: 1},
			payload: []byte{0xA0, 0, 0, 0, 0, 0, 0, 0},
			want:    0xA,
		},
		{
			name:    "24 bit field within float range",
			sig:     models.SignalDescriptor{Name: "s", StartBit: 4, Length: 24, Factor: 1},
			payload: []byte{0xF0, 0xFF, 0xFF, 0x0F, 0, 0, 0, 0},
			want:    0xFFFFFF,
		},
		{
			name:    "single bit",
			sig:     models.SignalDescriptor{Name: "s", StartBit: 63, Length: 1, Factor: 1},
			payload: []byte{0, 0, 0, 0, 0, 0, 0, 0x80},
			want:    1,
		},
	}
	for _, tc := range cases {
		got, err := Decode(single(tc.sig), tc.payload)
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if len(got) != 1 || got[0].Name != "s" || got[0].Value != tc.want {
			t.Fatalf("%s: got %+v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDecodeAppliesFactorAndOffset(t *testing.T) {
	sig := models.SignalDescriptor{Name: "temp", StartBit: 0, Length: 8, Factor: 0.5, Offset: -40, Unit: "degC"}
	got, err := Decode(single(sig), []byte{200, 0, 0, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Value != 60 || got[0].Unit != "degC" {
		t.Fatalf("got %+v, want 60 degC", got[0])
	}
}

func TestDecodeByteOrderSensitivity(t *testing.T) {
	payload := []byte{0x01, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x02}
	le := models.SignalDescriptor{Name: "s", StartBit: 0, Length: 8, Factor: 1}
	be := le
	be.ByteOrder = models.BigEndian

	gotLE, err := Decode(single(le), payload)
	if err != nil {
		t.Fatalf("decode le: %v", err)
	}
	gotBE, err := Decode(single(be), payload)
	if err != nil {
		t.Fatalf("decode be: %v", err)
	}
	if gotLE[0].Value != 1 || gotBE[0].Value != 2 {
		t.Fatalf("le=%v be=%v, want 1 and 2", gotLE[0].Value, gotBE[0].Value)
	}
}

func TestDecodeSignedSignals(t *testing.T) {
	sig := models.SignalDescriptor{Name: "s", StartBit: 8, Length: 8, Signed: true, Factor: 1}
	got, err := Decode(single(sig), []byte{0, 0xFE, 0, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Value != -2 {
		t.Fatalf("signed value = %v, want -2", got[0].Value)
	}

	sig.Signed = false
	got, _ = Decode(single(sig), []byte{0, 0xFE, 0, 0, 0, 0, 0, 0})
	if got[0].Value != 254 {
		t.Fatalf("unsigned value = %v, want 254", got[0].Value)
	}

	positive := models.SignalDescriptor{Name: "s", StartBit: 0, Length: 12, Signed: true, Factor: 1}
	got, _ = Decode(single(positive), []byte{0xFF, 0x07, 0, 0, 0, 0, 0, 0})
	if got[0].Value != 0x7FF {
		t.Fatalf("positive signed value = %v, want 2047", got[0].Value)
	}
}

func TestDecodeFullWidthSignal(t *testing.T) {
	sig := models.SignalDescriptor{Name: "all", StartBit: 0, Length: 64, Factor: 1}
	payload := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	got, err := Decode(single(sig), payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Value != float32(math.MaxUint64) {
		t.Fatalf("got %v", got[0].Value)
	}

	sig.Signed = true
	got, _ = Decode(single(sig), payload)
	if got[0].Value != -1 {
		t.Fatalf("signed full width = %v, want -1", got[0].Value)
	}
}

func TestDecodeOrderAndDeterminism(t *testing.T) {
	msg := models.MessageDescriptor{Name: "M", Signals: []models.SignalDescriptor{
		{Name: "c", StartBit: 16, Length: 8, Factor: 1},
		{Name: "a", StartBit: 0, Length: 8, Factor: 1},
		{Name: "b", StartBit: 8, Length: 8, Factor: 0.25},
	}}
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	first, err := Decode(msg, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []models.SignalValue{{Name: "c", Value: 3}, {Name: "a", Value: 1}, {Name: "b", Value: 0.5}}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("got %+v, want %+v", first, want)
	}
	for i := 0; i < 10; i++ {
		again, _ := Decode(msg, payload)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("decode not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestDecodePayloadLength(t *testing.T) {
	msg := single(models.SignalDescriptor{Name: "s", StartBit: 0, Length: 8, Factor: 1})
	for _, n := range []int{0, 1, 7, 9} {
		if _, err := Decode(msg, make([]byte, n)); !errors.Is(err, ErrShortFrame) {
			t.Fatalf("len %d: expected ErrShortFrame, got %v", n, err)
		}
	}
	for _, payload := range [][]byte{
		make([]byte, 8),
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{1, 2, 3, 4, 5, 6, 7, 8},
	} {
		if _, err := Decode(msg, payload); err != nil {
			t.Fatalf("payload %x: unexpected error %v", payload, err)
		}
	}
}

func TestDecodeRejectsInvalidGeometry(t *testing.T) {
	msg := single(models.SignalDescriptor{Name: "s", StartBit: 60, Length: 8, Factor: 1})
	if _, err := Decode(msg, make([]byte, 8)); !errors.Is(err, catalog.ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
}

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	c, err := catalog.Build([]models.MessageDefinition{{
		ID:   0x7B,
		Name: "Engine",
		Signals: []models.SignalDescriptor{
			{Name: "Speed", StartBit: 0, Length: 16, Factor: 0.5, Unit: "km/h"},
			{Name: "Gear", StartBit: 16, Length: 4, Factor: 1},
		},
	}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return New(catalog.NewHolder(c))
}

func TestDecoderDecodeFrame(t *testing.T) {
	d := newDecoder(t)
	ts := time.Unix(1547046014, 597158000)
	frame, _ := models.NewCANFrame(0x7B, []byte{0x10, 0x00, 0x03, 0, 0, 0, 0, 0})
	got, err := d.DecodeFrame(models.CANMessage{Frame: frame, Timestamp: ts, Interface: "vcan0"})
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.Message != "Engine" || got.FrameID != 0x7B || got.Interface != "vcan0" || !got.Timestamp.Equal(ts) {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	want := []models.SignalValue{{Name: "Speed", Value: 8, Unit: "km/h"}, {Name: "Gear", Value: 3}}
	if !reflect.DeepEqual(got.Signals, want) {
		t.Fatalf("signals = %+v, want %+v", got.Signals, want)
	}
}

func TestDecoderDecodeFrameErrors(t *testing.T) {
	d := newDecoder(t)

	unknown, _ := models.NewCANFrame(0x7C, make([]byte, 8))
	if _, err := d.DecodeFrame(models.CANMessage{Frame: unknown}); !errors.Is(err, catalog.ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}

	short, _ := models.NewCANFrame(0x7B, make([]byte, 7))
	if _, err := d.DecodeFrame(models.CANMessage{Frame: short}); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}

	empty := New(catalog.NewHolder(nil))
	full, _ := models.NewCANFrame(0x7B, make([]byte, 8))
	if _, err := empty.DecodeFrame(models.CANMessage{Frame: full}); !errors.Is(err, catalog.ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage without catalog, got %v", err)
	}
}

func TestDecoderConcurrentUse(t *testing.T) {
	d := newDecoder(t)
	frame, _ := models.NewCANFrame(0x7B, []byte{0x10, 0x00, 0x03, 0, 0, 0, 0, 0})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got, err := d.DecodeFrame(models.CANMessage{Frame: frame})
				if err != nil || got.Signals[0].Value != 8 {
					t.Errorf("concurrent decode: %+v %v", got, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
