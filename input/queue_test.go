package input

import (
	"testing"

	"github.com/chase3718/iopanel/panel"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		q.Push(panel.KeyEvent{Index: i, Pressed: i%2 == 0})
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.Next()
		if !ok {
			t.Fatalf("Next %d: queue empty", i)
		}
		if ev.Index != i || ev.Pressed != (i%2 == 0) {
			t.Fatalf("Next %d = %+v", i, ev)
		}
	}
	if _, ok := q.Next(); ok {
		t.Fatal("Next on empty queue returned an event")
	}
}

func TestQueueOverflowDropsNewest(t *testing.T) {
	q := NewQueue(2)
	q.Push(panel.KeyEvent{Index: 0})
	q.Push(panel.KeyEvent{Index: 1})
	if q.Push(panel.KeyEvent{Index: 2}) {
		t.Fatal("push into full queue succeeded")
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}
	ev, _ := q.Next()
	if ev.Index != 0 {
		t.Fatalf("oldest event = %d, want 0", ev.Index)
	}

	// Wrap around the ring.
	q.Push(panel.KeyEvent{Index: 3})
	want := []int{1, 3}
	for _, w := range want {
		ev, ok := q.Next()
		if !ok || ev.Index != w {
			t.Fatalf("Next = %+v, %v, want index %d", ev, ok, w)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len = %d, want 0", q.Len())
	}
}
