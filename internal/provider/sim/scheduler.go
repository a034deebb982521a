// internal/provider/sim/scheduler.go
package sim

import (
	"sync"

	"github.com/hazmap/simkit/internal/queue"
)

// Scheduler defers callbacks for later execution in FIFO order. It is the
// substitute for the event loop's deferred-task slot: load events and
// late load-listener firings go through it instead of running inline.
type Scheduler interface {
	Schedule(fn func())
}

// AsyncScheduler drains scheduled tasks on a single background goroutine.
// This is the default mode; tasks run in submission order.
type AsyncScheduler struct {
	tasks *queue.Queue[func()]
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewAsyncScheduler starts the drain goroutine.
func NewAsyncScheduler() *AsyncScheduler {
	s := &AsyncScheduler{
		tasks: queue.New[func()](),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule enqueues fn. Safe to call from task callbacks.
func (s *AsyncScheduler) Schedule(fn func()) {
	s.tasks.Push(fn)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *AsyncScheduler) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
			for {
				task, ok := s.tasks.Pop()
				if !ok {
					break
				}
				task()
			}
		}
	}
}

// Close stops the drain goroutine. Tasks still queued are dropped.
func (s *AsyncScheduler) Close() error {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

// ManualScheduler holds tasks until the test pumps them, giving tests
// full control over when deferred events fire.
type ManualScheduler struct {
	tasks *queue.Queue[func()]
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: queue.New[func()]()}
}

// Schedule enqueues fn without running it.
func (s *ManualScheduler) Schedule(fn func()) {
	s.tasks.Push(fn)
}

// Pump runs the oldest pending task. Returns false if none were pending.
func (s *ManualScheduler) Pump() bool {
	task, ok := s.tasks.Pop()
	if !ok {
		return false
	}
	task()
	return true
}

// Drain pumps until the queue is empty, including tasks scheduled by the
// tasks it runs. Returns the number of tasks executed.
func (s *ManualScheduler) Drain() int {
	n := 0
	for s.Pump() {
		n++
	}
	return n
}

// Pending returns the number of tasks waiting to run.
func (s *ManualScheduler) Pending() int {
	return s.tasks.Len()
}
