package database

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FlushFunc writes one batch. The slice is reused after it returns.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// Batcher accumulates items and flushes them when the batch is full or the
// flush interval elapses.
type Batcher[T any] struct {
	batchSize int
	interval  time.Duration
	flushFn   FlushFunc[T]
	logger    zerolog.Logger
	batch     []T
	batchChan chan T
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewBatcher creates a batcher; Start must be called before items flow.
func NewBatcher[T any](batchSize int, interval time.Duration, flush FlushFunc[T], logger zerolog.Logger) *Batcher[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher[T]{
		batchSize: batchSize,
		interval:  interval,
		flushFn:   flush,
		logger:    logger,
		batch:     make([]T, 0, batchSize),
		batchChan: make(chan T, batchSize*2),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins the write loop
func (b *Batcher[T]) Start() {
	b.startOnce.Do(func() {
		go b.writeLoop()
	})
}

// Add queues an item without blocking. It reports false when the item was
// dropped.
func (b *Batcher[T]) Add(item T) bool {
	if b.ctx.Err() != nil {
		return false
	}
	select {
	case b.batchChan <- item:
		return true
	default:
		b.logger.Warn().Msg("batch channel full, dropping record")
		return false
	}
}

func (b *Batcher[T]) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return

		case item := <-b.batchChan:
			b.batch = append(b.batch, item)
			if len(b.batch) >= b.batchSize {
				b.flush(b.ctx)
			}

		case <-ticker.C:
			b.flush(b.ctx)
		}
	}
}

func (b *Batcher[T]) flush(ctx context.Context) {
	if len(b.batch) == 0 {
		return
	}
	if err := b.flushFn(ctx, b.batch); err != nil {
		b.logger.Error().Err(err).Int("records", len(b.batch)).Msg("flush failed, dropping batch")
	} else {
		b.logger.Debug().Int("records", len(b.batch)).Msg("flushed batch")
	}
	b.batch = b.batch[:0]
}

// Close stops the loop and flushes whatever is still queued.
func (b *Batcher[T]) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		started := true
		b.startOnce.Do(func() { started = false })
		if started {
			<-b.done
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

	drain:
		for {
			select {
			case item := <-b.batchChan:
				b.batch = append(b.batch, item)
				if len(b.batch) >= b.batchSize {
					b.flush(ctx)
				}
			default:
				break drain
			}
		}
		b.flush(ctx)
	})
}
