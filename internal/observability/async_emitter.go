package observability

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// EvidenceSpan is a rule-evaluation event queued for async span export:
// a violation, a mutex win, or any other per-rule occurrence the host
// wants recorded without blocking the evaluation session that produced it.
type EvidenceSpan struct {
	RuleName  string
	EventType string // violation|mutex_win|fired|exhausted
	Metadata  map[string]interface{}
	Timestamp time.Time
}

// AsyncEmitter provides non-blocking evidence span emission so a slow or
// backed-up exporter never stalls the evaluation loop that calls Emit.
type AsyncEmitter struct {
	buffer chan EvidenceSpan
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAsyncEmitter creates a new async evidence span emitter.
func NewAsyncEmitter(bufferSize int) *AsyncEmitter {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncEmitter{
		buffer: make(chan EvidenceSpan, bufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background worker that exports spans.
func (e *AsyncEmitter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case span := <-e.buffer:
				e.exportSpan(span)
			case <-e.ctx.Done():
				e.drainBuffer()
				return
			}
		}
	}()
	log.Println("async telemetry emitter started")
}

// Emit queues an evidence span for async export. Non-blocking — if the
// buffer is full, the span is dropped with a warning rather than stalling
// the caller's evaluation loop.
func (e *AsyncEmitter) Emit(ruleName, eventType string, metadata map[string]interface{}) {
	span := EvidenceSpan{
		RuleName:  ruleName,
		EventType: eventType,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}

	select {
	case e.buffer <- span:
	default:
		log.Printf("evidence span buffer full, dropping span: %s/%s", ruleName, eventType)
	}
}

// Stop gracefully shuts down the emitter, draining the buffer.
func (e *AsyncEmitter) Stop() {
	e.cancel()
	e.wg.Wait()
	log.Println("async telemetry emitter stopped")
}

func (e *AsyncEmitter) drainBuffer() {
	timeout := time.After(5 * time.Second)
	drained := 0

	for {
		select {
		case span := <-e.buffer:
			e.exportSpan(span)
			drained++
		case <-timeout:
			remaining := len(e.buffer)
			if remaining > 0 {
				log.Printf("timeout draining evidence spans, %d spans dropped", remaining)
			}
			log.Printf("drained %d evidence spans before shutdown", drained)
			return
		default:
			log.Printf("drained %d evidence spans before shutdown", drained)
			return
		}
	}
}

func (e *AsyncEmitter) exportSpan(span EvidenceSpan) {
	_, otSpan := Tracer.Start(context.Background(), "rule.evidence")
	defer otSpan.End()

	otSpan.SetAttributes(
		attribute.String("rule.name", span.RuleName),
		attribute.String("event.type", span.EventType),
		attribute.Int64("event.timestamp", span.Timestamp.Unix()),
	)

	for key, value := range span.Metadata {
		switch v := value.(type) {
		case string:
			otSpan.SetAttributes(attribute.String("evidence."+key, v))
		case int:
			otSpan.SetAttributes(attribute.Int("evidence."+key, v))
		case bool:
			otSpan.SetAttributes(attribute.Bool("evidence."+key, v))
		default:
			// unsupported metadata type, skip
		}
	}
}

// BufferSize returns the current number of buffered spans.
func (e *AsyncEmitter) BufferSize() int {
	return len(e.buffer)
}

// BufferCapacity returns the maximum buffer capacity.
func (e *AsyncEmitter) BufferCapacity() int {
	return cap(e.buffer)
}
