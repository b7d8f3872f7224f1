package can

import (
	"sync"
	"time"

	"can-decoder/internal/models"

	"github.com/rs/zerolog"
)

// StatsCollector counts received frames per kind and identifier and publishes
// periodic snapshots.
type StatsCollector struct {
	interfaceName string
	interval      time.Duration
	logger        zerolog.Logger

	mu    sync.Mutex
	stats models.FrameStats

	statsChan chan models.FrameStats
	stopChan  chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewStatsCollector creates a new statistics collector
func NewStatsCollector(interfaceName string, interval time.Duration, logger zerolog.Logger) *StatsCollector {
	return &StatsCollector{
		interfaceName: interfaceName,
		interval:      interval,
		logger:        logger.With().Str("component", "stats").Str("interface", interfaceName).Logger(),
		stats: models.FrameStats{
			Interface:  interfaceName,
			MessageIDs: make(map[uint32]uint64),
		},
		statsChan: make(chan models.FrameStats, 10),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Observe counts one received frame.
func (sc *StatsCollector) Observe(frame models.CANFrame) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	s := &sc.stats
	s.RXFrames++
	if frame.Extended {
		s.EFFTotal++
		if frame.Error {
			s.EFFError++
		}
		if frame.RTR {
			s.EFFRTR++
		}
	} else {
		s.SFFTotal++
		if frame.Error {
			s.SFFError++
		}
		if frame.RTR {
			s.SFFRTR++
		}
	}
	s.MessageIDs[frame.Key()]++
}

// Snapshot returns a deep copy of the current counters.
func (sc *StatsCollector) Snapshot() models.FrameStats {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := sc.stats.Clone()
	out.Timestamp = time.Now().UTC()
	return out
}

// Start begins publishing snapshots every interval
func (sc *StatsCollector) Start() {
	sc.startOnce.Do(func() {
		go sc.collectLoop()
	})
}

// Stop stops the publisher and closes the stats channel.
func (sc *StatsCollector) Stop() {
	sc.stopOnce.Do(func() {
		close(sc.stopChan)
		started := true
		sc.startOnce.Do(func() { started = false })
		if started {
			<-sc.done
		}
		close(sc.statsChan)
	})
}

// GetStatsChannel returns the channel for receiving statistics
func (sc *StatsCollector) GetStatsChannel() <-chan models.FrameStats {
	return sc.statsChan
}

func (sc *StatsCollector) collectLoop() {
	defer close(sc.done)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sc.publish()
		case <-sc.stopChan:
			return
		}
	}
}

func (sc *StatsCollector) publish() {
	snapshot := sc.Snapshot()
	select {
	case sc.statsChan <- snapshot:
	default:
		sc.logger.Warn().Msg("stats channel full, dropping snapshot")
	}
}
