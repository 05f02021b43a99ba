// Package tasks runs fire-and-forget background work off the request path.
//
// The coordinator owns a fixed pool of workers, each with its own bounded
// queue. A session always hashes to the same worker, so tasks from one
// session run in submission order while unrelated sessions proceed in
// parallel. Submit never blocks the caller: when the target queue is full
// the task is dropped and logged, extraction work is best-effort.
package tasks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"vita-api/internal/metrics"

	"go.uber.org/zap"
)

type Task struct {
	SessionID   string
	Seq         uint64
	SubmittedAt time.Time
	Run         func(ctx context.Context) error
}

type Coordinator struct {
	log    *zap.SugaredLogger
	queues []chan Task
	wg     sync.WaitGroup

	// mu guards the sequence maps and closed; Submit holds it across the
	// closed check and the send so shutdown cannot close a queue between
	// the two.
	mu      sync.Mutex
	nextSeq map[string]uint64
	lastSeq map[string]uint64
	closed  bool
}

func New(log *zap.SugaredLogger, workers, queueSize int) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	c := &Coordinator{
		log:     log,
		queues:  make([]chan Task, workers),
		nextSeq: map[string]uint64{},
		lastSeq: map[string]uint64{},
	}
	for i := range c.queues {
		c.queues[i] = make(chan Task, queueSize)
		c.wg.Add(1)
		go c.worker(i)
	}
	return c
}

// NextSeq hands out the per-session sequence number a caller stamps on the
// task it is about to submit.
func (c *Coordinator) NextSeq(sessionID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq[sessionID]++
	return c.nextSeq[sessionID]
}

// Submit enqueues a task and returns immediately. The return value reports
// whether the task was accepted; callers must not treat false as an error.
func (c *Coordinator) Submit(t Task) bool {
	if t.Run == nil {
		return false
	}
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}
	i := c.workerFor(t.SessionID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warnw("Task submitted after shutdown, dropping", "session_id", t.SessionID)
		metrics.ExtractionTasks.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case c.queues[i] <- t:
		c.mu.Unlock()
		metrics.ExtractionQueueDepth.WithLabelValues(fmt.Sprintf("%d", i)).Set(float64(len(c.queues[i])))
		return true
	default:
		c.mu.Unlock()
		c.log.Warnw("Extraction queue full, dropping task", "session_id", t.SessionID, "seq", t.Seq, "worker", i)
		metrics.ExtractionTasks.WithLabelValues("dropped").Inc()
		return false
	}
}

func (c *Coordinator) workerFor(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(c.queues)))
}

func (c *Coordinator) worker(i int) {
	defer c.wg.Done()
	for t := range c.queues[i] {
		metrics.ExtractionQueueDepth.WithLabelValues(fmt.Sprintf("%d", i)).Set(float64(len(c.queues[i])))
		c.runTask(t)
	}
}

// runTask is the failure boundary: a panic or error inside one task never
// reaches other tasks, the worker, or the request that submitted it.
func (c *Coordinator) runTask(t Task) {
	if t.Seq > 0 && c.isStale(t) {
		c.log.Infow("Discarding stale task", "session_id", t.SessionID, "seq", t.Seq)
		metrics.ExtractionTasks.WithLabelValues("stale").Inc()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("Task panicked", "session_id", t.SessionID, "seq", t.Seq, "panic", r)
			metrics.ExtractionTasks.WithLabelValues("panicked").Inc()
		}
	}()

	if err := t.Run(context.Background()); err != nil {
		c.log.Warnw("Task failed", "session_id", t.SessionID, "seq", t.Seq, "error", err)
		metrics.ExtractionTasks.WithLabelValues("failed").Inc()
		return
	}

	if t.Seq > 0 {
		c.recordSeq(t)
	}
	metrics.ExtractionTasks.WithLabelValues("completed").Inc()
}

func (c *Coordinator) isStale(t Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.Seq < c.lastSeq[t.SessionID]
}

func (c *Coordinator) recordSeq(t Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Seq > c.lastSeq[t.SessionID] {
		c.lastSeq[t.SessionID] = t.Seq
	}
}

// AwaitAll stops intake, lets queued tasks drain, and returns once every
// worker has exited or ctx expires. Graceful shutdown only.
func (c *Coordinator) AwaitAll(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		for _, q := range c.queues {
			close(q)
		}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
