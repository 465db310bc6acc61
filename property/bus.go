package property

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ChangeOp is what happened to a row.
type ChangeOp string

const (
	ChangeCreated  ChangeOp = "created"
	ChangeUpdated  ChangeOp = "updated"
	ChangeDeleted  ChangeOp = "deleted"
	ChangeImported ChangeOp = "imported"
	ChangeReset    ChangeOp = "reset"
)

// Change is published by a store after every committed write.
type Change struct {
	Op   ChangeOp
	Kind SourceKind // empty for imports and resets
	ID   string
	At   time.Time
}

// ChangeHandler processes a change notification.
type ChangeHandler func(ctx context.Context, ch Change) error

// Bus is an in-process change bus. It decouples stores (producers) from the
// feed and other consumers. Handlers run synchronously in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []ChangeHandler
	closed   bool
	logger   *zap.Logger
}

// NewBus creates a bus. A nil logger discards handler errors.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler. Do not call it from inside a handler.
func (b *Bus) Subscribe(h ChangeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers ch to every handler. Handler errors are logged and
// joined; one failing handler does not stop the others.
func (b *Bus) Publish(ctx context.Context, ch Change) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	if ch.At.IsZero() {
		ch.At = time.Now()
	}

	var errs []error
	for _, h := range b.handlers {
		if err := h(ctx, ch); err != nil {
			b.logger.Warn("change handler failed",
				zap.String("op", string(ch.Op)),
				zap.String("kind", string(ch.Kind)),
				zap.String("id", ch.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops delivery. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
