package message

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Send(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func TestQueue_DeliversThenDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(4, rec)

	for _, s := range []string{"one", "two"} {
		if err := q.Enqueue(context.Background(), Message{Kind: "email", Subject: s}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Close()

	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.msgs) != 2 {
		t.Fatalf("delivered %d, want 2", len(rec.msgs))
	}
	if rec.msgs[0].ID == "" || rec.msgs[0].Enqueued.IsZero() {
		t.Fatalf("message not stamped: %+v", rec.msgs[0])
	}
	if rec.msgs[0].Subject != "one" || rec.msgs[1].Subject != "two" {
		t.Fatalf("order = %q, %q", rec.msgs[0].Subject, rec.msgs[1].Subject)
	}
}

func TestQueue_FullAndClosed(t *testing.T) {
	q := NewQueue(1, &recorder{})
	ctx := context.Background()

	if err := q.Enqueue(ctx, Message{}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, Message{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	q.Close()
	q.Close()
	if err := q.Enqueue(ctx, Message{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}
