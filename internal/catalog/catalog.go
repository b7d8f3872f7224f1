// Package catalog indexes DBC message definitions by CAN identifier.
//
// A Catalog is built once and never mutated afterwards, so it can be shared by
// any number of concurrent decoders. Live reloads build a new Catalog and swap
// it in through a Holder.
package catalog

import (
	"slices"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidCatalog marks malformed signal geometry or colliding identifiers.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
	// ErrUnknownMessage is returned by Lookup for identifiers absent from the catalog.
	ErrUnknownMessage = errors.New("catalog: unknown message")
)

// Catalog maps stripped message identifiers to message descriptors.
type Catalog struct {
	messages map[uint32]models.MessageDescriptor
}

// Build indexes the given definitions. Identifiers are keyed with the
// extended-frame marker stripped; two definitions mapping to the same key, or
// any signal that does not fit in 64 bits, fail with ErrInvalidCatalog.
func Build(defs []models.MessageDefinition) (*Catalog, error) {
	c := &Catalog{messages: make(map[uint32]models.MessageDescriptor, len(defs))}

	for _, def := range defs {
		key := models.CatalogKey(def.ID)
		if prev, ok := c.messages[key]; ok {
			return nil, errors.Mark(
				errors.Newf("message %q (0x%X) collides with %q", def.Name, key, prev.Name),
				ErrInvalidCatalog)
		}

		names := make(map[string]struct{}, len(def.Signals))
		for _, sig := range def.Signals {
			if err := sig.Validate(); err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "message %q (0x%X)", def.Name, key), ErrInvalidCatalog)
			}
			if _, dup := names[sig.Name]; dup {
				return nil, errors.Mark(
					errors.Newf("message %q (0x%X): duplicate signal %q", def.Name, key, sig.Name),
					ErrInvalidCatalog)
			}
			names[sig.Name] = struct{}{}
		}

		c.messages[key] = models.MessageDescriptor{
			ID:       key,
			Name:     def.Name,
			Extended: def.Extended || def.ID&models.EFFFlag != 0,
			Signals:  slices.Clone(def.Signals),
		}
	}

	return c, nil
}

// Lookup returns the descriptor for id. The extended-frame marker is stripped
// before the lookup, so raw identifiers from live frames match.
func (c *Catalog) Lookup(id uint32) (models.MessageDescriptor, error) {
	key := models.CatalogKey(id)
	msg, ok := c.messages[key]
	if !ok {
		return models.MessageDescriptor{}, errors.Wrapf(ErrUnknownMessage, "id 0x%X", key)
	}
	msg.Signals = slices.Clone(msg.Signals)
	return msg, nil
}

// Len returns the number of messages in the catalog.
func (c *Catalog) Len() int {
	return len(c.messages)
}

// Messages returns all descriptors ordered by identifier.
func (c *Catalog) Messages() []models.MessageDescriptor {
	out := make([]models.MessageDescriptor, 0, len(c.messages))
	for _, msg := range c.messages {
		msg.Signals = slices.Clone(msg.Signals)
		out = append(out, msg)
	}
	slices.SortFunc(out, func(a, b models.MessageDescriptor) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}
