// Package queue provides the bounded FIFO shared by a boss and its workers.
package queue

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("queue: closed")

// Queue is a fixed-capacity ring buffer. A single mutex guards the slots and
// indices; notEmpty is signalled on every enqueue and notFull on every
// dequeue, so neither side ever spins. Handing an item over through the queue
// makes everything the producer wrote before Enqueue visible to the consumer
// that dequeues it.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	front    int
	rear     int
	count    int
	closed   bool
}

// New panics when capacity is not positive, matching make for channels.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	q := &Queue[T]{
		items: make([]T, capacity),
		front: 0,
		rear:  capacity - 1,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item at the rear, waiting while the queue is full.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.items) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}
	q.rear = q.next(q.rear)
	q.items[q.rear] = item
	q.count++
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the front item, waiting while the queue is empty. Once the
// queue is closed the remaining items are still handed out before ErrClosed.
func (q *Queue[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	var zero T
	if q.count == 0 {
		return zero, ErrClosed
	}
	item := q.items[q.front]
	q.items[q.front] = zero
	q.front = q.next(q.front)
	q.count--
	q.notFull.Signal()
	return item, nil
}

// Close wakes every waiter. It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue[T]) Cap() int {
	return len(q.items)
}

func (q *Queue[T]) next(i int) int {
	return (i + 1) % len(q.items)
}
