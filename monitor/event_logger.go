package monitor

import (
	"context"
	"sync"
	"time"

	"warden/core"
	"warden/metrics"
	"warden/storage"
	"warden/util/goroutine"

	"go.uber.org/zap"
)

// DefaultEventBufferSize is the EventLogger queue capacity
const DefaultEventBufferSize = 1024

// storeWriteTimeout bounds a single append to the event store
const storeWriteTimeout = 5 * time.Second

// EventLogger serializes event appends through a single writer goroutine.
// Emit never blocks: when the queue is full the event is dropped and counted.
type EventLogger struct {
	store  storage.EventLogStore
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	queue  chan *core.SecurityEvent
	done   chan struct{}
}

// NewEventLogger creates a logger with a queue of bufferSize events and starts its writer
func NewEventLogger(store storage.EventLogStore, bufferSize int, logger *zap.SugaredLogger) *EventLogger {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}
	l := &EventLogger{
		store:  store,
		logger: logger,
		queue:  make(chan *core.SecurityEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Emit queues event for storage
func (l *EventLogger) Emit(event *core.SecurityEvent) {
	if event == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		metrics.EventsDropped.WithLabelValues("closed").Inc()
		return
	}

	select {
	case l.queue <- event:
	default:
		metrics.EventsDropped.WithLabelValues("queue_full").Inc()
		l.logger.Warnw("Security event queue full, dropping event",
			"category", event.Category,
			"type", event.Type)
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end
func (l *EventLogger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *EventLogger) run() {
	defer close(l.done)

	for event := range l.queue {
		l.write(event)
	}
}

func (l *EventLogger) write(event *core.SecurityEvent) {
	defer goroutine.Recover("event-logger", l.logger)

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if err := l.store.Append(ctx, event); err != nil {
		metrics.EventsDropped.WithLabelValues("store_error").Inc()
		l.logger.Errorw("Failed to store security event",
			"category", event.Category,
			"type", event.Type,
			"error", err)
	}
}
