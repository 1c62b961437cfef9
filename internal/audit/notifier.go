// Package audit records activity events asynchronously. Emission is
// fire-and-forget: callers never block on or fail because of audit
// delivery.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// Event is one activity record queued for delivery.
type Event struct {
	OrgID     *int64
	ActorID   int64
	Name      string
	Message   string
	Type      string
	CreatedAt time.Time
}

const deliverTimeout = 10 * time.Second

// Notifier buffers events on a channel and delivers them from a single
// background worker. When the buffer is full the event is dropped and
// counted, never blocking the caller.
type Notifier struct {
	repo    repository.AuditRepository
	webhook *WebhookSink
	node    *snowflake.Node
	logger  *zap.Logger

	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64
	closed  atomic.Bool
}

// NewNotifier starts the background worker.
func NewNotifier(repo repository.AuditRepository, webhook *WebhookSink, node *snowflake.Node, bufferSize int, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.L()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	n := &Notifier{
		repo:    repo,
		webhook: webhook,
		node:    node,
		logger:  logger,
		events:  make(chan Event, bufferSize),
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Emit queues an event. It never blocks and never returns an error; a
// full buffer drops the event.
func (n *Notifier) Emit(event Event) {
	if n == nil || n.closed.Load() {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	select {
	case n.events <- event:
	default:
		n.dropped.Add(1)
		n.logger.Warn("audit buffer full, event dropped",
			zap.String("name", event.Name),
			zap.Int64("dropped_total", n.dropped.Load()),
		)
	}
}

// Dropped returns the number of events dropped since start.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close stops accepting events, drains the buffer, and waits for the
// worker to finish.
func (n *Notifier) Close() {
	if n == nil || !n.closed.CompareAndSwap(false, true) {
		return
	}
	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) run() {
	defer n.wg.Done()
	for {
		select {
		case event := <-n.events:
			n.deliver(event)
		case <-n.done:
			n.drain()
			return
		}
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case event := <-n.events:
			n.deliver(event)
		default:
			return
		}
	}
}

// deliver writes the update log and fans out to webhooks. Failures are
// logged and swallowed; a failed log write does not suppress the webhook.
func (n *Notifier) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	entry := domain.UpdateLog{
		ID:        n.node.Generate().Int64(),
		OrgID:     event.OrgID,
		Name:      event.Name,
		Message:   event.Message,
		UpdatedBy: event.ActorID,
		Type:      event.Type,
		CreatedAt: event.CreatedAt,
	}
	if err := n.repo.AppendLog(ctx, entry); err != nil {
		n.logger.Error("append update log failed",
			zap.String("name", event.Name),
			zap.Error(err),
		)
	}

	if n.webhook != nil {
		n.webhook.Send(ctx, event)
	}
}
