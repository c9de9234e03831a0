package aquos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockWriter implements TransportWriter for testing.
type MockWriter struct {
	mu       sync.Mutex
	frames   [][]byte
	failNext int // fail this many writes before succeeding
}

func (m *MockWriter) WriteFrame(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return ErrNotConnected
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.frames = append(m.frames, cp)
	return nil
}

func (m *MockWriter) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *MockWriter) FailNext(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

func TestDispatcherCorrelatesInOrder(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, time.Second)
	defer d.Close()

	chA := d.Send(PowerSetFrame(true))
	chB := d.Send(PowerQueryFrame())

	// Only the head of the queue may be on the wire
	if got := len(w.Written()); got != 1 {
		t.Fatalf("frames written = %d, want 1 (no pipelining)", got)
	}
	if d.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", d.PendingCount())
	}

	d.HandleLine("OK")

	select {
	case res := <-chA:
		if res.Err != nil || res.Line != "OK" {
			t.Fatalf("first result = %+v, want line OK", res)
		}
	default:
		t.Fatal("first command not resolved after its response")
	}

	// Resolving the first command dispatches the second
	if got := len(w.Written()); got != 2 {
		t.Fatalf("frames written = %d, want 2", got)
	}

	d.HandleLine("1")

	select {
	case res := <-chB:
		if res.Err != nil || res.Line != "1" {
			t.Fatalf("second result = %+v, want line 1", res)
		}
	default:
		t.Fatal("second command not resolved after its response")
	}

	stats := d.Stats()
	if stats.CommandsSent != 2 || stats.ResponsesMatched != 2 {
		t.Errorf("stats = %+v, want 2 sent / 2 matched", stats)
	}
}

func TestDispatcherDiscardsUnsolicitedLines(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, time.Second)
	defer d.Close()

	// Power-on banner and remote-control chatter arrive with nothing
	// in flight
	d.HandleLine("OK")
	d.HandleLine("Sharp AQUOS")

	stats := d.Stats()
	if stats.LinesDiscarded != 2 {
		t.Errorf("lines discarded = %d, want 2", stats.LinesDiscarded)
	}
	if len(w.Written()) != 0 {
		t.Error("discarding a line must not write anything")
	}
}

func TestDispatcherTimeoutAdvancesQueue(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, 20*time.Millisecond)
	defer d.Close()

	chA := d.Send(PowerSetFrame(true))
	chB := d.Send(PowerQueryFrame())

	select {
	case res := <-chA:
		if !errors.Is(res.Err, ErrTimeout) {
			t.Fatalf("first result error = %v, want ErrTimeout", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("first command never timed out")
	}

	// The timeout must free the slot for the queued command
	deadline := time.Now().Add(time.Second)
	for len(w.Written()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("queued command never dispatched after timeout")
		}
		time.Sleep(time.Millisecond)
	}

	d.HandleLine("1")

	select {
	case res := <-chB:
		if res.Err != nil || res.Line != "1" {
			t.Fatalf("second result = %+v, want line 1", res)
		}
	case <-time.After(time.Second):
		t.Fatal("second command not resolved")
	}

	if d.Stats().TimeoutsTotal != 1 {
		t.Errorf("timeouts = %d, want 1", d.Stats().TimeoutsTotal)
	}
}

func TestDispatcherLateResponseAttributedToSuccessor(t *testing.T) {
	// Temporal correlation cannot distinguish a late response to a
	// timed-out command from the response to its successor. The late
	// line resolves whatever is in flight when it arrives.
	w := &MockWriter{}
	d := NewDispatcher(w, 20*time.Millisecond)
	defer d.Close()

	chA := d.Send(PowerSetFrame(true))
	chB := d.Send(PowerQueryFrame())

	if res := <-chA; !errors.Is(res.Err, ErrTimeout) {
		t.Fatalf("first result error = %v, want ErrTimeout", res.Err)
	}

	// The slow TV finally answers the first command; the dispatcher
	// hands the line to the command now in flight.
	d.HandleLine("OK")

	select {
	case res := <-chB:
		if res.Err != nil || res.Line != "OK" {
			t.Fatalf("second result = %+v, want the late line", res)
		}
	case <-time.After(time.Second):
		t.Fatal("second command not resolved by the late line")
	}
}

func TestDispatcherWriteFailureAdvancesQueue(t *testing.T) {
	w := &MockWriter{}
	w.FailNext(1)
	d := NewDispatcher(w, time.Second)
	defer d.Close()

	chA := d.Send(PowerSetFrame(true))
	chB := d.Send(PowerQueryFrame())

	select {
	case res := <-chA:
		if !errors.Is(res.Err, ErrWriteFailed) {
			t.Fatalf("first result error = %v, want ErrWriteFailed", res.Err)
		}
	default:
		t.Fatal("failed write must resolve immediately, not wait for a response")
	}

	// The failed command must not hold the slot
	if got := len(w.Written()); got != 1 {
		t.Fatalf("frames written = %d, want 1 (the second command)", got)
	}

	d.HandleLine("1")
	if res := <-chB; res.Err != nil || res.Line != "1" {
		t.Fatalf("second result = %+v, want line 1", res)
	}

	if d.Stats().WriteFailures != 1 {
		t.Errorf("write failures = %d, want 1", d.Stats().WriteFailures)
	}
}

func TestDispatcherDo(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, time.Second)
	defer d.Close()

	go func() {
		// Wait for the frame to hit the wire, then answer
		for len(w.Written()) == 0 {
			time.Sleep(time.Millisecond)
		}
		d.HandleLine("OK")
	}()

	line, err := d.Do(context.Background(), PowerSetFrame(true))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if line != "OK" {
		t.Errorf("Do line = %q, want OK", line)
	}
}

func TestDispatcherDoContextCancelled(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, time.Second)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Do(ctx, PowerSetFrame(true))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do error = %v, want context.Canceled", err)
	}

	// The abandoned command still occupies the slot; its response must
	// not wedge the dispatcher or leak to the next caller.
	chB := d.Send(PowerQueryFrame())
	d.HandleLine("OK") // response to the abandoned command
	d.HandleLine("1")  // response to B

	select {
	case res := <-chB:
		if res.Err != nil || res.Line != "1" {
			t.Fatalf("second result = %+v, want line 1", res)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher wedged after an abandoned command")
	}
}

func TestDispatcherClose(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, time.Second)

	chA := d.Send(PowerSetFrame(true))
	chB := d.Send(PowerQueryFrame())

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	for i, ch := range []<-chan Result{chA, chB} {
		select {
		case res := <-ch:
			if !errors.Is(res.Err, ErrClosed) {
				t.Errorf("command %d error = %v, want ErrClosed", i, res.Err)
			}
		default:
			t.Errorf("command %d not resolved by Close", i)
		}
	}

	// Sends after close fail immediately
	if res := <-d.Send(PowerQueryFrame()); !errors.Is(res.Err, ErrClosed) {
		t.Errorf("post-close send error = %v, want ErrClosed", res.Err)
	}

	// Close is idempotent
	if err := d.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}

func TestDispatcherResponseBeatsTimeout(t *testing.T) {
	w := &MockWriter{}
	d := NewDispatcher(w, 50*time.Millisecond)
	defer d.Close()

	ch := d.Send(PowerSetFrame(true))
	d.HandleLine("OK")

	res := <-ch
	if res.Err != nil || res.Line != "OK" {
		t.Fatalf("result = %+v, want line OK", res)
	}

	// The stopped timer must not fire a phantom timeout later
	time.Sleep(80 * time.Millisecond)
	if d.Stats().TimeoutsTotal != 0 {
		t.Errorf("timeouts = %d, want 0", d.Stats().TimeoutsTotal)
	}
}
