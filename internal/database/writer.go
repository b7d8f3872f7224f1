// Package database persists decoded signals and frame statistics.
package database

import (
	"can-decoder/internal/models"

	"github.com/google/uuid"
)

// Writer defines the interface for database writers
type Writer interface {
	// Start begins processing and writing messages
	Start()

	// Write queues a decoded message for writing
	Write(msg models.DecodedMessage)

	// Close flushes pending rows and releases the connection
	Close() error
}

// NewSession returns an identifier tagging every row written by one process
// run.
func NewSession() uuid.UUID {
	return uuid.New()
}
