package input

import (
	"sync"
	"sync/atomic"

	"github.com/chase3718/iopanel/panel"
)

// DefaultQueueSize matches the event buffer of a typical key scanner.
const DefaultQueueSize = 64

// Queue is a bounded FIFO of key events shared between device readers and
// the poll loop. When full, new events are dropped and counted.
type Queue struct {
	mu    sync.Mutex
	buf   []panel.KeyEvent
	head  int
	count int

	dropped atomic.Uint64
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{buf: make([]panel.KeyEvent, size)}
}

// Push appends ev and reports whether it fit.
func (q *Queue) Push(ev panel.KeyEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		q.dropped.Add(1)
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	return true
}

// Next pops the oldest event without blocking.
func (q *Queue) Next() (panel.KeyEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return panel.KeyEvent{}, false
	}
	ev := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped is the number of events lost to overflow.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
