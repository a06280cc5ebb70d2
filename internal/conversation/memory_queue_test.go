package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	if err := q.Send(ctx, "payload-1"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	messages, err := q.Receive(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(messages) != 1 || messages[0].Body != "payload-1" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
	if messages[0].ID == "" || messages[0].ReceiptHandle == "" {
		t.Fatalf("expected generated identifiers, got %+v", messages[0])
	}
}

func TestMemoryQueueReceiveDrainsBatch(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Send(ctx, fmt.Sprintf("payload-%d", i)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	messages, err := q.Receive(ctx, 3, 1)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(messages))
	}

	rest, err := q.Receive(ctx, 10, 1)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected remaining 2, got %d", len(rest))
	}
}

func TestMemoryQueueReceiveTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue(4)

	start := time.Now()
	messages, err := q.Receive(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if messages != nil {
		t.Fatalf("expected no messages, got %+v", messages)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Fatalf("expected the long poll to wait, returned after %s", elapsed)
	}
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(4)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := q.Receive(ctx, 1, 0)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryQueueSendBlocksWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if err := q.Send(ctx, "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	full, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Send(full, "second"); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded on full queue, got %v", err)
	}
}
