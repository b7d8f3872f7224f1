//go:build linux

package can

import (
	"context"
	"sync"
	"time"

	"can-decoder/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// readTimeout bounds each blocking read so the loop can observe cancellation.
const readTimeout = 250 * time.Millisecond

// Reader handles reading from SocketCAN
type Reader struct {
	socket    int
	ifname    string
	logger    zerolog.Logger
	msgChan   chan models.CANMessage
	errorChan chan error

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
}

// NewReader creates a new CAN reader for the specified interface
func NewReader(ifname string, logger zerolog.Logger) (*Reader, error) {
	socket, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CAN socket")
	}

	ifreq, err := unix.NewIfreq(ifname)
	if err != nil {
		unix.Close(socket)
		return nil, errors.Wrap(err, "failed to create ifreq")
	}
	if err := unix.IoctlIfreq(socket, unix.SIOCGIFINDEX, ifreq); err != nil {
		unix.Close(socket)
		return nil, errors.Wrapf(err, "failed to get interface index for %s", ifname)
	}

	if err := unix.Bind(socket, &unix.SockaddrCAN{Ifindex: int(ifreq.Uint32())}); err != nil {
		unix.Close(socket)
		return nil, errors.Wrap(err, "failed to bind socket")
	}

	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(socket, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(socket)
		return nil, errors.Wrap(err, "failed to set read timeout")
	}

	return &Reader{
		socket:    socket,
		ifname:    ifname,
		logger:    logger.With().Str("component", "can_reader").Str("interface", ifname).Logger(),
		msgChan:   make(chan models.CANMessage, 1000),
		errorChan: make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Start begins reading CAN frames until ctx is cancelled or Close is called.
func (r *Reader) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	go r.readLoop(ctx)
}

func (r *Reader) readLoop(ctx context.Context) {
	defer close(r.done)
	defer close(r.errorChan)
	defer close(r.msgChan)

	buf := make([]byte, FrameSize)
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := unix.Read(r.socket, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.reportError(errors.Wrap(err, "read error"))
			continue
		}

		frame, err := UnmarshalFrame(buf[:n])
		if err != nil {
			r.reportError(err)
			continue
		}

		msg := models.CANMessage{
			Frame:     frame,
			Timestamp: time.Now().UTC(),
			Interface: r.ifname,
		}

		select {
		case r.msgChan <- msg:
		default:
			r.logger.Warn().Uint32("can_id", frame.ID).Msg("message channel full, dropping frame")
		}
	}
}

func (r *Reader) reportError(err error) {
	select {
	case r.errorChan <- err:
	default:
		r.logger.Warn().Err(err).Msg("error channel full")
	}
}

// GetMessageChannel returns the channel for receiving CAN messages
func (r *Reader) GetMessageChannel() <-chan models.CANMessage {
	return r.msgChan
}

// GetErrorChannel returns the channel for receiving errors
func (r *Reader) GetErrorChannel() <-chan error {
	return r.errorChan
}

// Close stops the read loop and closes the CAN socket. Both channels are
// closed once it returns.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()

	if started {
		cancel()
		<-r.done
	} else {
		close(r.msgChan)
		close(r.errorChan)
	}
	return unix.Close(r.socket)
}

// SetFilter installs exact-match CAN_RAW_FILTER entries. An empty list keeps
// the kernel default of receiving everything.
func (r *Reader) SetFilter(ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}

	filters := ExactFilters(ids)
	raw := make([]unix.CanFilter, len(filters))
	for i, f := range filters {
		raw[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
	}
	if err := unix.SetsockoptCanRawFilter(r.socket, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, raw); err != nil {
		return errors.Wrap(err, "failed to set filter")
	}
	r.logger.Debug().Int("filters", len(raw)).Msg("CAN filter installed")
	return nil
}
