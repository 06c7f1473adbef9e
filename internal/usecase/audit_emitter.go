package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/logging"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/metrics"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/redact"
)

// AsyncAuditEmitter buffers audit events on a bounded queue and writes
// them from a single goroutine it owns. Emit never blocks the request
// path: when the queue is full the event is dropped and counted.
// Metadata is redacted before it is queued so secrets never sit in the
// buffer or reach the sink.
type AsyncAuditEmitter struct {
	writer       AuditWriter
	metrics      metrics.GatewayMetrics
	writeTimeout time.Duration

	queue chan domain.AuditEvent
	done  chan struct{}

	closeOnce sync.Once
}

type AuditEmitterConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	Metrics      metrics.GatewayMetrics
}

func NewAsyncAuditEmitter(writer AuditWriter, cfg AuditEmitterConfig) *AsyncAuditEmitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	e := &AsyncAuditEmitter{
		writer:       writer,
		metrics:      cfg.Metrics,
		writeTimeout: cfg.WriteTimeout,
		queue:        make(chan domain.AuditEvent, cfg.QueueSize),
		done:         make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit queues the event best-effort. A full queue drops the event
// rather than slowing the request that produced it.
func (e *AsyncAuditEmitter) Emit(event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.Metadata = redact.Metadata(event.Metadata)

	select {
	case e.queue <- event:
	default:
		e.metrics.IncAuditDropped()
		logging.Warn("audit", "queue full, dropping event", "route", event.Route, "action", event.Action)
	}
}

// Close stops accepting events and drains what is already queued, up to
// the context deadline. Safe to call more than once.
func (e *AsyncAuditEmitter) Close(ctx context.Context) error {
	e.closeOnce.Do(func() { close(e.queue) })
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *AsyncAuditEmitter) run() {
	defer close(e.done)
	for event := range e.queue {
		e.write(event)
	}
}

// write failures are logged and swallowed; a broken sink never
// escalates to a request-level error.
func (e *AsyncAuditEmitter) write(event domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()
	if err := e.writer.Append(ctx, event); err != nil {
		logging.Warn("audit", "append failed, discarding event", "route", event.Route, "err", err)
	}
}
