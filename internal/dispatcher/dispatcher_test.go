// internal/dispatcher/dispatcher_test.go
package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var gotPayload json.RawMessage
	d.Register("set_fault", func(e Event) (any, error) {
		gotPayload = e.Payload
		return "armed", nil
	})

	result, err := d.Dispatch(Event{Command: "set_fault", Payload: json.RawMessage(`{"status":503}`)})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "armed" {
		t.Errorf("expected 'armed', got %v", result)
	}
	if string(gotPayload) != `{"status":503}` {
		t.Errorf("payload not passed through, got %s", gotPayload)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "no_such_command"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register("reset_faults", func(Event) (any, error) { return nil, nil })

	if !d.HasHandler("reset_faults") {
		t.Error("expected handler to be registered")
	}
	if d.HasHandler("load_scenario") {
		t.Error("expected no handler for load_scenario")
	}
	if cmds := d.Commands(); len(cmds) != 1 || cmds[0] != "reset_faults" {
		t.Errorf("unexpected command list: %v", cmds)
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("load_scenario", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: "load_scenario"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	var startOnce sync.Once

	d.Register("slow", func(e Event) (any, error) {
		startOnce.Do(func() { close(started) })
		<-block
		return nil, nil
	}, Buffered(2))

	// First event occupies the worker; wait so the queue count is exact.
	if _, err := d.Dispatch(Event{Command: "slow"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	// Fill the 2-slot queue.
	for i := 0; i < 2; i++ {
		if _, err := d.Dispatch(Event{Command: "slow"}); err != nil {
			t.Fatalf("unexpected error filling queue: %v", err)
		}
	}

	// Queue full now.
	if _, err := d.Dispatch(Event{Command: "slow"}); err == nil {
		t.Error("expected queue-full error")
	}
}

func TestDispatcher_BlockingWaitsInsteadOfDropping(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	total := 5
	wg.Add(total)

	d.Register("push_events", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(1), Blocking())

	for i := 0; i < total; i++ {
		if _, err := d.Dispatch(Event{Command: "push_events"}); err != nil {
			t.Errorf("blocking dispatch should not error: %v", err)
		}
	}

	wg.Wait()
	if processed.Load() != int32(total) {
		t.Errorf("expected %d processed, got %d", total, processed.Load())
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("diag", func(e Event) (any, error) {
		return nil, fmt.Errorf("boom")
	}, Logged())

	if _, err := d.Dispatch(Event{Command: "diag"}); err == nil {
		t.Error("expected handler error to propagate")
	}
	if !logger.contains("event failed") {
		t.Error("expected failure to be logged")
	}
}
