package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNotifyDropsWhenFull(t *testing.T) {
	q := NewQueue(2)

	if !q.Notify(Notice{SessionID: "a"}) || !q.Notify(Notice{SessionID: "b"}) {
		t.Fatalf("Notify: want accepted")
	}
	if q.Notify(Notice{SessionID: "c"}) {
		t.Fatalf("Notify on full queue: want dropped")
	}
}

func TestNotifyAfterShutdown(t *testing.T) {
	q := NewQueue(1)

	if err := q.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := q.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if q.Notify(Notice{SessionID: "a"}) {
		t.Fatalf("Notify after shutdown: want dropped")
	}
}

func TestWorkerDeliversUntilClosed(t *testing.T) {
	q := NewQueue(4)
	delivered := make(chan string, 4)

	w := NewWorkerWithSink(q, func(_ context.Context, n Notice) error {
		delivered <- n.SessionID
		if n.SessionID == "bad" {
			return errors.New("sink failed")
		}
		return nil
	})

	q.Notify(Notice{SessionID: "bad"})
	q.Notify(Notice{SessionID: "good"})

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	for _, want := range []string{"bad", "good"} {
		select {
		case got := <-delivered:
			if got != want {
				t.Fatalf("delivered: want=%s got=%s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	_ = q.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after shutdown")
	}
}

func TestWorkerStopsOnContext(t *testing.T) {
	w := NewWorkerWithSink(NewQueue(1), LogSink)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop on cancel")
	}
}
