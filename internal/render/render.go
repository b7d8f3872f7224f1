// Package render prints frames and decoded signals for terminals, coloring
// each payload byte by its class.
package render

import (
	"fmt"
	"io"
	"strings"

	"can-decoder/internal/models"

	"github.com/charmbracelet/lipgloss"
)

// ByteClass groups payload bytes for coloring.
type ByteClass uint8

const (
	ClassNull ByteClass = iota
	ClassPrintable
	ClassWhitespace
	ClassASCIIOther
	ClassNonASCII
)

func (c ByteClass) String() string {
	switch c {
	case ClassNull:
		return "null"
	case ClassPrintable:
		return "printable"
	case ClassWhitespace:
		return "whitespace"
	case ClassASCIIOther:
		return "ascii_other"
	default:
		return "non_ascii"
	}
}

// byteClasses is filled once at init and only read afterwards.
var byteClasses [256]ByteClass

func init() {
	for i := range byteClasses {
		byteClasses[i] = classify(byte(i))
	}
}

func classify(b byte) ByteClass {
	switch {
	case b == 0x00:
		return ClassNull
	case b >= 0x21 && b <= 0x7E:
		return ClassPrintable
	case b == ' ' || b == '\t' || b == '\n' || b == '\f' || b == '\r':
		return ClassWhitespace
	case b < 0x80:
		return ClassASCIIOther
	default:
		return ClassNonASCII
	}
}

// Classify returns the class of b.
func Classify(b byte) ByteClass {
	return byteClasses[b]
}

var classColors = [...]lipgloss.Color{
	ClassNull:       lipgloss.Color("242"),
	ClassPrintable:  lipgloss.Color("6"),
	ClassWhitespace: lipgloss.Color("2"),
	ClassASCIIOther: lipgloss.Color("5"),
	ClassNonASCII:   lipgloss.Color("3"),
}

// Printer writes colored frame and signal lines. Color is dropped
// automatically when out is not a terminal.
type Printer struct {
	out io.Writer

	hex     [256]string
	eff     string
	sff     string
	idStyle lipgloss.Style
	message lipgloss.Style
	signal  lipgloss.Style
	value   lipgloss.Style
	failure lipgloss.Style
}

// NewPrinter prepares a printer for out.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	p := &Printer{
		out:     out,
		eff:     r.NewStyle().Foreground(lipgloss.Color("1")).Render("EFF"),
		sff:     r.NewStyle().Foreground(lipgloss.Color("4")).Render("SFF"),
		idStyle: r.NewStyle().Foreground(lipgloss.Color("7")),
		message: r.NewStyle().Foreground(lipgloss.Color("5")),
		signal:  r.NewStyle().Foreground(lipgloss.Color("2")),
		value:   r.NewStyle().Foreground(lipgloss.Color("6")),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
	for i := range p.hex {
		style := r.NewStyle().Foreground(classColors[byteClasses[i]])
		p.hex[i] = style.Render(fmt.Sprintf("%02x", i))
	}
	return p
}

// FormatFrame renders "EFF 18fef1fe 01 02 ..." for a frame.
func (p *Printer) FormatFrame(f models.CANFrame) string {
	var b strings.Builder
	if f.Extended {
		b.WriteString(p.eff)
	} else {
		b.WriteString(p.sff)
	}
	b.WriteByte(' ')
	b.WriteString(p.idStyle.Render(fmt.Sprintf("%08x", f.Key())))
	for _, c := range f.Payload() {
		b.WriteByte(' ')
		b.WriteString(p.hex[c])
	}
	return b.String()
}

// Frame writes one frame line.
func (p *Printer) Frame(f models.CANFrame) error {
	_, err := fmt.Fprintln(p.out, p.FormatFrame(f))
	return err
}

// FormatSignal renders "name → value %6.4f unit".
func (p *Printer) FormatSignal(v models.SignalValue) string {
	line := p.signal.Render(v.Name) + " → value " + p.value.Render(fmt.Sprintf("%6.4f", v.Value))
	if v.Unit != "" {
		line += " " + v.Unit
	}
	return line
}

// Decoded writes the message name on its own line followed by one line per
// signal.
func (p *Printer) Decoded(msg models.DecodedMessage) error {
	var b strings.Builder
	b.WriteByte('\n')
	b.WriteString(p.message.Render(msg.Message))
	b.WriteByte('\n')
	for _, v := range msg.Signals {
		b.WriteString(p.FormatSignal(v))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

// Failure writes a decode or parse error line.
func (p *Printer) Failure(err error) error {
	_, werr := fmt.Fprintln(p.out, p.failure.Render("error:"), err)
	return werr
}
