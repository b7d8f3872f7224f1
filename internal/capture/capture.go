// Package capture replays recorded CAN traffic from candump logs and pcap-ng
// captures.
package capture

import "can-decoder/internal/models"

// Source yields recorded frames in capture order. NextMessage returns io.EOF
// once the recording is exhausted.
type Source interface {
	NextMessage() (models.CANMessage, error)
}
