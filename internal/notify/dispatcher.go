package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Sink consumes a notification off the worker goroutine.
type Sink func(ctx context.Context, n Notification)

// Dispatcher forwards notifications to a sink through a bounded buffer.
// Emit never blocks the caller: when the buffer is full the notification
// is counted as dropped instead.
type Dispatcher struct {
	sink      Sink
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(bufferSize int, sink Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	d := &Dispatcher{
		sink: sink,
		ch:   make(chan Notification, bufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.sink(context.Background(), msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.sink(context.Background(), msg)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues a notification without blocking.
func (d *Dispatcher) Emit(ctx context.Context, msg Notification) {
	if d == nil || d.closed.Load() {
		return
	}

	select {
	case d.ch <- msg:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports the number of notifications discarded on a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains the buffer and stops the worker. Safe to call twice.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
