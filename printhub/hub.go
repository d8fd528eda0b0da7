// Package printhub buffers print jobs per theater and streams them to the
// tenant's connected print worker. Jobs survive worker absence in a bounded
// in-memory queue and drain in FIFO order on reconnect; duplicates within a
// short window are dropped so an outbox redelivery never prints twice.
package printhub

import (
	"fmt"
	"sync"
	"time"

	"github.com/screenbites/canteen_backend/config"
)

const (
	// queue bound per theater; overflow drops the oldest job
	defaultQueueCap = 256
	// dedup window for (orderNumber, eventKind)
	defaultDedupWindow = 2 * time.Minute
)

const hubModule = "printhub"

// JobSink is where a drained job goes. *websocket.Conn satisfies it.
type JobSink interface {
	WriteJSON(v interface{}) error
}

// Job is an opaque print payload plus the identity used for dedup.
type Job struct {
	TheaterId   string
	OrderNumber string
	EventKind   string
	Payload     interface{}
	EnqueuedAt  time.Time
}

type theaterQueue struct {
	jobs     []Job
	lastSeen map[string]time.Time
	sink     JobSink
}

// Hub owns every theater's queue. All methods are safe for concurrent use.
type Hub struct {
	mu          sync.Mutex
	queues      map[string]*theaterQueue
	queueCap    int
	dedupWindow time.Duration
	now         func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		queues:      map[string]*theaterQueue{},
		queueCap:    defaultQueueCap,
		dedupWindow: defaultDedupWindow,
		now:         time.Now,
	}
}

func (h *Hub) queueFor(theaterId string) *theaterQueue {
	q, ok := h.queues[theaterId]
	if !ok {
		q = &theaterQueue{lastSeen: map[string]time.Time{}}
		h.queues[theaterId] = q
	}
	return q
}

func dedupKey(orderNumber, eventKind string) string {
	return orderNumber + "|" + eventKind
}

// Publish hands a job to the theater's worker, or buffers it when no worker
// is connected. Returns false when the job was dropped as a duplicate.
func (h *Hub) Publish(job Job) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	logger := config.GetLogger()

	q := h.queueFor(job.TheaterId)
	now := h.now()
	job.EnqueuedAt = now

	key := dedupKey(job.OrderNumber, job.EventKind)
	if seen, ok := q.lastSeen[key]; ok && now.Sub(seen) < h.dedupWindow {
		config.LogWarn(logger, hubModule, "Publish",
			fmt.Sprintf("duplicate print job %s/%s dropped", job.OrderNumber, job.EventKind), job.TheaterId)
		return false
	}
	q.lastSeen[key] = now
	h.pruneSeen(q, now)

	if q.sink != nil {
		if err := q.sink.WriteJSON(job.Payload); err != nil {
			// worker went away mid-write; buffer and wait for reconnect
			config.LogError(logger, hubModule, "Publish", "worker write failed, buffering", job.TheaterId, err)
			q.sink = nil
		} else {
			return true
		}
	}

	if len(q.jobs) >= h.queueCap {
		dropped := q.jobs[0]
		q.jobs = q.jobs[1:]
		config.LogWarn(logger, hubModule, "Publish",
			fmt.Sprintf("print queue full, dropping oldest job %s/%s", dropped.OrderNumber, dropped.EventKind), job.TheaterId)
	}
	q.jobs = append(q.jobs, job)
	return true
}

// RegisterWorker attaches the theater's print worker and drains the backlog
// in FIFO order. A previously attached worker is replaced.
func (h *Hub) RegisterWorker(theaterId string, sink JobSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	q := h.queueFor(theaterId)
	q.sink = sink
	for len(q.jobs) > 0 {
		job := q.jobs[0]
		if err := sink.WriteJSON(job.Payload); err != nil {
			q.sink = nil
			return err
		}
		q.jobs = q.jobs[1:]
	}
	return nil
}

// UnregisterWorker detaches the sink; subsequent jobs buffer.
func (h *Hub) UnregisterWorker(theaterId string, sink JobSink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	q, ok := h.queues[theaterId]
	if !ok {
		return
	}
	// another worker may have replaced this one already
	if q.sink == sink {
		q.sink = nil
	}
}

// Pending reports the buffered job count for a theater.
func (h *Hub) Pending(theaterId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.queues[theaterId]
	if !ok {
		return 0
	}
	return len(q.jobs)
}

func (h *Hub) pruneSeen(q *theaterQueue, now time.Time) {
	if len(q.lastSeen) < 1024 {
		return
	}
	for key, seen := range q.lastSeen {
		if now.Sub(seen) >= h.dedupWindow {
			delete(q.lastSeen, key)
		}
	}
}
