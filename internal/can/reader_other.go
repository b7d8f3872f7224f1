//go:build !linux

package can

import (
	"context"
	"runtime"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ErrUnsupported is returned by NewReader outside Linux.
var ErrUnsupported = errors.New("SocketCAN is only available on linux")

// Reader is a placeholder on platforms without SocketCAN.
type Reader struct{}

func NewReader(ifname string, _ zerolog.Logger) (*Reader, error) {
	return nil, errors.Wrapf(ErrUnsupported, "%s on %s", ifname, runtime.GOOS)
}

func (r *Reader) Start(context.Context) {}

func (r *Reader) GetMessageChannel() <-chan models.CANMessage { return nil }

func (r *Reader) GetErrorChannel() <-chan error { return nil }

func (r *Reader) Close() error { return nil }

func (r *Reader) SetFilter([]uint32) error { return ErrUnsupported }
