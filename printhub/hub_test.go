package printhub

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeSink struct {
	written []interface{}
	fail    bool
}

func (s *fakeSink) WriteJSON(v interface{}) error {
	if s.fail {
		return errors.New("connection reset")
	}
	s.written = append(s.written, v)
	return nil
}

func job(theaterId, orderNumber, kind string) Job {
	return Job{TheaterId: theaterId, OrderNumber: orderNumber, EventKind: kind, Payload: orderNumber + "/" + kind}
}

func TestPublishDirectToWorker(t *testing.T) {
	h := NewHub()
	sink := &fakeSink{}
	if err := h.RegisterWorker("t1", sink); err != nil {
		t.Fatal(err)
	}

	if !h.Publish(job("t1", "GU0001", "created")) {
		t.Fatal("publish dropped a fresh job")
	}
	if len(sink.written) != 1 {
		t.Fatalf("written = %d, want 1", len(sink.written))
	}
	if h.Pending("t1") != 0 {
		t.Fatalf("pending = %d after direct write", h.Pending("t1"))
	}
}

func TestPublishBuffersWithoutWorkerAndDrainsFIFO(t *testing.T) {
	h := NewHub()
	for i := 1; i <= 3; i++ {
		h.Publish(job("t1", fmt.Sprintf("GU%04d", i), "created"))
	}
	if h.Pending("t1") != 3 {
		t.Fatalf("pending = %d, want 3", h.Pending("t1"))
	}

	sink := &fakeSink{}
	if err := h.RegisterWorker("t1", sink); err != nil {
		t.Fatal(err)
	}
	if h.Pending("t1") != 0 {
		t.Fatalf("pending = %d after drain", h.Pending("t1"))
	}
	want := []string{"GU0001/created", "GU0002/created", "GU0003/created"}
	for i, payload := range sink.written {
		if payload != want[i] {
			t.Fatalf("drain order wrong at %d: %v", i, sink.written)
		}
	}
}

func TestPublishDedupWindow(t *testing.T) {
	h := NewHub()
	base := time.Now()
	h.now = func() time.Time { return base }

	if !h.Publish(job("t1", "GU0001", "created")) {
		t.Fatal("first publish dropped")
	}
	if h.Publish(job("t1", "GU0001", "created")) {
		t.Fatal("duplicate inside the window must be dropped")
	}
	// same order, different event is not a duplicate
	if !h.Publish(job("t1", "GU0001", "ready")) {
		t.Fatal("different event kind dropped")
	}

	h.now = func() time.Time { return base.Add(h.dedupWindow) }
	if !h.Publish(job("t1", "GU0001", "created")) {
		t.Fatal("publish after the window must pass")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	h := NewHub()
	h.queueCap = 2

	h.Publish(job("t1", "GU0001", "created"))
	h.Publish(job("t1", "GU0002", "created"))
	h.Publish(job("t1", "GU0003", "created"))

	if h.Pending("t1") != 2 {
		t.Fatalf("pending = %d, want cap 2", h.Pending("t1"))
	}
	sink := &fakeSink{}
	if err := h.RegisterWorker("t1", sink); err != nil {
		t.Fatal(err)
	}
	if sink.written[0] != "GU0002/created" || sink.written[1] != "GU0003/created" {
		t.Fatalf("oldest job should have been dropped, drained %v", sink.written)
	}
}

func TestPublishWriteFailureDetachesAndBuffers(t *testing.T) {
	h := NewHub()
	sink := &fakeSink{fail: true}
	if err := h.RegisterWorker("t1", sink); err != nil {
		t.Fatal(err)
	}

	if !h.Publish(job("t1", "GU0001", "created")) {
		t.Fatal("job should buffer, not drop, on write failure")
	}
	if h.Pending("t1") != 1 {
		t.Fatalf("pending = %d, want 1", h.Pending("t1"))
	}

	// reconnect drains the buffered job
	good := &fakeSink{}
	if err := h.RegisterWorker("t1", good); err != nil {
		t.Fatal(err)
	}
	if len(good.written) != 1 || good.written[0] != "GU0001/created" {
		t.Fatalf("drained = %v", good.written)
	}
}

func TestUnregisterOnlyDetachesOwnSink(t *testing.T) {
	h := NewHub()
	old := &fakeSink{}
	replacement := &fakeSink{}
	if err := h.RegisterWorker("t1", old); err != nil {
		t.Fatal(err)
	}
	if err := h.RegisterWorker("t1", replacement); err != nil {
		t.Fatal(err)
	}

	// stale goroutine unregistering the replaced sink must not detach the live one
	h.UnregisterWorker("t1", old)
	if !h.Publish(job("t1", "GU0001", "created")) {
		t.Fatal("publish dropped")
	}
	if len(replacement.written) != 1 {
		t.Fatalf("live worker should still receive jobs, written = %d", len(replacement.written))
	}

	h.UnregisterWorker("t1", replacement)
	h.Publish(job("t1", "GU0002", "created"))
	if h.Pending("t1") != 1 {
		t.Fatalf("pending = %d after unregister", h.Pending("t1"))
	}
}

func TestQueuesAreIsolatedPerTheater(t *testing.T) {
	h := NewHub()
	h.Publish(job("t1", "GU0001", "created"))
	h.Publish(job("t2", "PV0001", "created"))

	sink := &fakeSink{}
	if err := h.RegisterWorker("t1", sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.written) != 1 {
		t.Fatalf("t1 worker drained %d jobs, want 1", len(sink.written))
	}
	if h.Pending("t2") != 1 {
		t.Fatalf("t2 pending = %d, want 1", h.Pending("t2"))
	}
}

func TestRegisterWorkerStopsDrainOnFailure(t *testing.T) {
	h := NewHub()
	h.Publish(job("t1", "GU0001", "created"))
	h.Publish(job("t1", "GU0002", "created"))

	bad := &fakeSink{fail: true}
	if err := h.RegisterWorker("t1", bad); err == nil {
		t.Fatal("drain against a broken sink should error")
	}
	if h.Pending("t1") != 2 {
		t.Fatalf("failed drain must keep the backlog, pending = %d", h.Pending("t1"))
	}
}
