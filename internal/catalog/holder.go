package catalog

import "sync/atomic"

// Holder publishes the current catalog to concurrent readers. A reload builds
// a fresh Catalog and swaps the reference; catalogs are never edited in place.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder returns a holder publishing c, which may be nil.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	if c != nil {
		h.current.Store(c)
	}
	return h
}

// Load returns the current catalog, or nil when none has been published.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Swap publishes c and returns the catalog it replaced.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}
