// Package bus provides the in-process message bus connecting the webhook
// gateway to the application, plus a topic-based event bus for lifecycle
// observability.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"chatbridge/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based implementation of domain.MessageBus.
// Inbound messages flow through a single buffered channel; outbound replies
// dispatch to the handler registered for the message's platform.
type InMemoryBus struct {
	inbound  chan domain.Message
	handlers map[domain.Platform]func(domain.Message)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates an InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.Message, bufferSize),
		handlers: make(map[domain.Platform]func(domain.Message)),
		logger:   logger,
	}
}

// Publish delivers an inbound message to subscribers. Blocks up to 10
// seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(msg domain.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting...", "platform", msg.Platform, "user", msg.UserID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
			b.logger.Info("message delivered after wait", "platform", msg.Platform)
		case <-timer.C:
			b.logger.Error("message dropped: bus full for 10s",
				"platform", msg.Platform,
				"user", msg.UserID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Message {
	return b.inbound
}

// SendOutbound routes a reply to the adapter handler for its platform.
func (b *InMemoryBus) SendOutbound(msg domain.Message) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Platform]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no handler registered for platform",
			"platform", msg.Platform,
		)
		return
	}

	handler(msg)
}

func (b *InMemoryBus) OnOutbound(platform domain.Platform, handler func(domain.Message)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[platform] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
