// internal/queue/queue_test.go
package queue

import (
	"sync"
	"testing"
)

func TestQueue_New(t *testing.T) {
	q := New[int]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[string]()
	q.Push("style.load")
	q.Push("layeradded", "sourceadded")

	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}

	first, ok := q.Pop()
	if !ok || first != "style.load" {
		t.Errorf("expected style.load, got %q (ok=%v)", first, ok)
	}
	second, ok := q.Pop()
	if !ok || second != "layeradded" {
		t.Errorf("expected layeradded, got %q (ok=%v)", second, ok)
	}
}

func TestQueue_PopEmpty(t *testing.T) {
	q := New[func()]()
	task, ok := q.Pop()
	if ok {
		t.Error("expected ok=false on empty queue")
	}
	if task != nil {
		t.Error("expected zero value on empty queue")
	}
}

func TestQueue_TakeAll(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	all := q.TakeAll()
	if len(all) != 3 || all[0] != 1 || all[2] != 3 {
		t.Errorf("unexpected batch: %v", all)
	}
	if !q.Empty() {
		t.Error("expected empty queue after TakeAll")
	}
	if got := q.TakeAll(); len(got) != 0 {
		t.Errorf("expected empty batch, got %v", got)
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)
	q.Clear()
	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(id)
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}

func TestQueue_ConcurrentTakeAll(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}

	var wg sync.WaitGroup
	results := make(chan []int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.TakeAll()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}
