package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/RaoOfPhysics/sapphire/esd"
)

// BatchEventWriter buffers downloaded events and flushes them to the
// store when the buffer fills or the flush interval elapses. Archive
// downloads arrive row by row; writing them one statement at a time
// would dominate the download.
type BatchEventWriter struct {
	store         *Store
	batchSize     int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []bufferedEvent
	errs   []error

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type bufferedEvent struct {
	stationID int
	event     esd.Event
}

// NewBatchEventWriter builds a batch writer and starts its flush
// ticker. Call Stop to flush the remainder and release the ticker.
func NewBatchEventWriter(store *Store, batchSize int, flushInterval time.Duration) *BatchEventWriter {
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	w := &BatchEventWriter{
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// WriteEvent buffers one event, flushing when the batch is full.
// Implements esd.EventWriter.
func (w *BatchEventWriter) WriteEvent(stationID int, ev esd.Event) error {
	w.mu.Lock()
	w.buffer = append(w.buffer, bufferedEvent{stationID: stationID, event: ev})
	full := len(w.buffer) >= w.batchSize
	w.mu.Unlock()

	if full {
		w.flush()
	}
	return nil
}

// Stop flushes the remaining buffer and stops the ticker. It returns
// the first flush error seen over the writer's lifetime.
func (w *BatchEventWriter) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	w.flush()

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.errs) > 0 {
		return fmt.Errorf("batch writer: %d flushes failed, first: %w", len(w.errs), w.errs[0])
	}
	return nil
}

func (w *BatchEventWriter) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *BatchEventWriter) flush() {
	w.mu.Lock()
	batch := w.buffer
	w.buffer = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	for _, b := range batch {
		if err := w.store.WriteEvent(b.stationID, b.event); err != nil {
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
			return
		}
	}
}
