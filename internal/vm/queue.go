package vm

import "sync"

// fifo is a mutex-guarded FIFO of message values. The network queue has many
// producers (connection handlers) and one consumer (the tick loop); the
// processing queue is touched only by the tick loop but its length is read by
// loggers and the monitor.
type fifo struct {
	mu    sync.Mutex
	items []int64
}

func (q *fifo) push(v int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, v)
}

func (q *fifo) popFront() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// drainInto moves every currently queued value to dst, preserving order.
func (q *fifo) drainInto(dst *fifo) {
	q.mu.Lock()
	moved := q.items
	q.items = nil
	q.mu.Unlock()

	if len(moved) == 0 {
		return
	}
	dst.mu.Lock()
	dst.items = append(dst.items, moved...)
	dst.mu.Unlock()
}

func (q *fifo) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
