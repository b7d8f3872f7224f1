package catalog

import (
	"os"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can/pkg/dbc"
)

// independentSignals is the pseudo-message Vector tools use to park signals
// that belong to no frame.
const independentSignals = "VECTOR__INDEPENDENT_SIG_MSG"

// FromDBC converts parsed DBC definitions into catalog input. Only message
// definitions are used; every other definition kind is ignored.
func FromDBC(defs []dbc.Def) ([]models.MessageDefinition, error) {
	var out []models.MessageDefinition
	for _, def := range defs {
		msg, ok := def.(*dbc.MessageDef)
		if !ok || string(msg.Name) == independentSignals {
			continue
		}

		md := models.MessageDefinition{
			ID:       msg.MessageID.ToCAN(),
			Extended: msg.MessageID.IsExtended(),
			Name:     string(msg.Name),
			Signals:  make([]models.SignalDescriptor, 0, len(msg.Signals)),
		}
		for _, sig := range msg.Signals {
			if sig.StartBit > 63 || sig.Size == 0 || sig.Size > 64 {
				return nil, errors.Mark(
					errors.Newf("message %q: signal %q has start bit %d and size %d", md.Name, sig.Name, sig.StartBit, sig.Size),
					ErrInvalidCatalog)
			}
			order := models.LittleEndian
			if sig.IsBigEndian {
				order = models.BigEndian
			}
			md.Signals = append(md.Signals, models.SignalDescriptor{
				Name:      string(sig.Name),
				StartBit:  uint8(sig.StartBit),
				Length:    uint8(sig.Size),
				ByteOrder: order,
				Signed:    sig.IsSigned,
				Factor:    sig.Factor,
				Offset:    sig.Offset,
				Unit:      sig.Unit,
			})
		}
		out = append(out, md)
	}
	return out, nil
}

// ParseDBC parses DBC source text and builds a catalog from it.
func ParseDBC(filename string, data []byte) (*Catalog, error) {
	p := dbc.NewParser(filename, data)
	if err := p.Parse(); err != nil {
		return nil, errors.Wrapf(err, "parse dbc %s", filename)
	}
	defs, err := FromDBC(p.Defs())
	if err != nil {
		return nil, err
	}
	return Build(defs)
}

// LoadDBCFile reads and parses a DBC file and builds a catalog from it.
func LoadDBCFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dbc %s", path)
	}
	return ParseDBC(path, data)
}
