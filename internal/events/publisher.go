package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"Mosaic/internal/core/content"

	"github.com/nats-io/nats.go"
)

var (
	ErrPublisherClosed = errors.New("index publisher closed")
	ErrQueueFull       = errors.New("index event queue full")
)

// msgPublisher is the subset of *nats.Conn used for publishing
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NatsPublisher fans index events out over NATS core pub/sub.
// Publishing is fire-and-forget: it buffers in the client and never waits on subscribers.
type NatsPublisher struct {
	nc msgPublisher
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

var _ content.IndexPublisher = (*NatsPublisher)(nil)

func (p *NatsPublisher) Publish(ctx context.Context, event content.IndexEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: Subject(event.Kind, event.Op),
		Data:    data,
	}

	slog.Debug("publishing index event", "subject", msg.Subject, "content_id", event.ID)

	return p.nc.PublishMsg(msg)
}

// DirectPublisher applies index events in-process on a background worker.
// It replaces NATS when no broker is configured; Publish never blocks on the index.
type DirectPublisher struct {
	handler *IndexConsumer
	queue   chan content.IndexEvent
	done    chan struct{}
	logger  *slog.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewDirectPublisher starts the worker. buffer bounds queued events; when full,
// Publish drops the event with ErrQueueFull.
func NewDirectPublisher(handler *IndexConsumer, buffer int, logger *slog.Logger) *DirectPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	p := &DirectPublisher{
		handler: handler,
		queue:   make(chan content.IndexEvent, buffer),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go p.run()
	return p
}

var _ content.IndexPublisher = (*DirectPublisher)(nil)

func (p *DirectPublisher) Publish(_ context.Context, event content.IndexEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *DirectPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.handler.Apply(context.Background(), event); err != nil {
			p.logger.Warn("failed to apply index event",
				"op", event.Op, "kind", event.Kind, "content_id", event.ID, "error", err)
		}
	}
}

// Close stops accepting events and waits for queued ones to drain
func (p *DirectPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
