// internal/message/message.go
//
// formlab – Messaging: in-process notification queue.
//
// Context
//   Successful registrations fan out a notification (welcome email,
//   webhook, …).  Producers must never block a form submission on delivery,
//   so Enqueue is a non-blocking push onto a bounded channel and Run drains
//   it on a dedicated goroutine.  When the queue is full the message is
//   dropped and ErrQueueFull is returned; callers log and move on.
//
//   Delivery is pluggable through Sender.  The default LogSender writes the
//   payload to the structured log, which is what the demo deployment uses.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("message queue full")

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("message queue closed")

// Message is one outbound notification.
type Message struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"` // "email", "webhook", …
	To       []string       `json:"to,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	Enqueued time.Time      `json:"enqueued"`
}

// Sender delivers a message.  Errors are logged by the worker.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Message) error

func (f SenderFunc) Send(ctx context.Context, m Message) error { return f(ctx, m) }

// LogSender writes messages to the global zap logger.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	zap.S().Infow("notification sent",
		"id", m.ID, "kind", m.Kind, "to", m.To, "subject", m.Subject,
		"fields", len(m.Payload))
	return nil
}

// Queue is a bounded FIFO of messages drained by Run.
type Queue struct {
	ch     chan Message
	sender Sender
	done   chan struct{}
}

// NewQueue returns a queue holding at most size pending messages.
func NewQueue(size int, s Sender) *Queue {
	if size < 1 {
		size = 1
	}
	if s == nil {
		s = LogSender{}
	}
	return &Queue{ch: make(chan Message, size), sender: s, done: make(chan struct{})}
}

// Enqueue stamps m with an ID and time, then pushes it without blocking.
func (q *Queue) Enqueue(ctx context.Context, m Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Enqueued.IsZero() {
		m.Enqueued = time.Now().UTC()
	}
	select {
	case q.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Len reports pending messages.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops accepting new messages.  Run drains what is buffered and
// returns.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// Run delivers messages until ctx is cancelled or the queue is closed and
// drained.  It never returns a delivery error; failures are logged.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-q.ch:
			q.deliver(ctx, m)
		case <-q.done:
			for {
				select {
				case m := <-q.ch:
					q.deliver(ctx, m)
				default:
					return nil
				}
			}
		}
	}
}

func (q *Queue) deliver(ctx context.Context, m Message) {
	if err := q.sender.Send(ctx, m); err != nil {
		zap.S().Warnw("notification failed", "id", m.ID, "kind", m.Kind, "err", err)
	}
}
