package broker

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type asyncItem struct {
	span trace.SpanContext
	ev   Event
}

// Async 有界队列 + 单个后台发布协程，Publish 不阻塞请求路径
type Async struct {
	next    Publisher
	queue   chan asyncItem
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync 包装发布者
func NewAsync(next Publisher, size int, timeout time.Duration, logger *zap.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{
		next:    next,
		queue:   make(chan asyncItem, size),
		timeout: timeout,
		logger:  logger.Named("broker"),
		done:    make(chan struct{}),
	}
	go a.loop()
	return a
}

// Publish 入队，队列满时丢弃并返回 ErrQueueFull
func (a *Async) Publish(ctx context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- asyncItem{span: trace.SpanContextFromContext(ctx), ev: ev}:
		return nil
	default:
		a.logger.Warn("event dropped", zap.String("event_type", ev.Type), zap.String("event_id", ev.ID))
		return ErrQueueFull
	}
}

func (a *Async) loop() {
	defer close(a.done)
	for item := range a.queue {
		ctx := trace.ContextWithSpanContext(context.Background(), item.span)
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		if err := a.next.Publish(ctx, item.ev); err != nil {
			a.logger.Error("publish event failed",
				zap.String("event_type", item.ev.Type),
				zap.String("event_id", item.ev.ID),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close 发送完队列中的事件后关闭下游
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}

// Pending 队列中未发送的事件数
func (a *Async) Pending() int {
	return len(a.queue)
}
