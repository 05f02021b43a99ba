package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSubmitRunsTask(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 2, 8)

	done := make(chan struct{})
	ok := c.Submit(Task{
		SessionID: "s1",
		Run: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
	if !ok {
		t.Fatal("submit rejected with empty queue")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	if err := c.AwaitAll(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitNeverBlocks(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 1, 1)

	block := make(chan struct{})
	c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error {
		<-block
		return nil
	}})

	// Fill the queue, then overflow it. Every call must return promptly.
	var dropped int
	for i := 0; i < 10; i++ {
		start := time.Now()
		ok := c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error { return nil }})
		if time.Since(start) > 100*time.Millisecond {
			t.Fatal("submit blocked")
		}
		if !ok {
			dropped++
		}
	}
	if dropped == 0 {
		t.Error("overflowing a full queue dropped nothing")
	}

	close(block)
	if err := c.AwaitAll(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFailureIsolation(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 1, 8)

	var ran atomic.Bool
	c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error {
		panic("boom")
	}})
	c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error {
		return errors.New("expected failure")
	}})
	c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}})

	if err := c.AwaitAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !ran.Load() {
		t.Fatal("task after panic and failure never ran")
	}
}

func TestSameSessionOrdering(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 4, 32)

	var mu sync.Mutex
	var order []uint64
	for i := 0; i < 10; i++ {
		seq := c.NextSeq("session-a")
		c.Submit(Task{SessionID: "session-a", Seq: seq, Run: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, seq)
			mu.Unlock()
			return nil
		}})
	}

	if err := c.AwaitAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(order) != 10 {
		t.Fatalf("ran %d tasks, want 10", len(order))
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestStaleSeqDiscarded(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 1, 8)

	var ran []uint64
	var mu sync.Mutex
	record := func(seq uint64) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			ran = append(ran, seq)
			mu.Unlock()
			return nil
		}
	}

	c.Submit(Task{SessionID: "s1", Seq: 5, Run: record(5)})
	// Give the first task time to complete so seq 5 is recorded.
	time.Sleep(50 * time.Millisecond)
	c.Submit(Task{SessionID: "s1", Seq: 3, Run: record(3)})
	c.Submit(Task{SessionID: "s1", Seq: 6, Run: record(6)})

	if err := c.AwaitAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[0] != 5 || ran[1] != 6 {
		t.Fatalf("ran = %v, want [5 6] with stale 3 discarded", ran)
	}
}

func TestSubmitAfterShutdownDropped(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 1, 8)
	if err := c.AwaitAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error { return nil }}) {
		t.Fatal("submit accepted after shutdown")
	}
}

func TestSubmitDuringShutdownNeverPanics(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		c := New(zap.NewNop().Sugar(), 2, 4)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					// A send racing queue close must drop, never panic.
					c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error { return nil }})
				}
			}()
		}
		if err := c.AwaitAll(context.Background()); err != nil {
			t.Fatal(err)
		}
		wg.Wait()
	}
}

func TestAwaitAllHonorsContext(t *testing.T) {
	c := New(zap.NewNop().Sugar(), 1, 8)
	block := make(chan struct{})
	defer close(block)
	c.Submit(Task{SessionID: "s1", Run: func(ctx context.Context) error {
		<-block
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.AwaitAll(ctx); err == nil {
		t.Fatal("AwaitAll returned nil while a task was still blocked")
	}
}
