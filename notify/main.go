// Package notify fans events out to subscribers without blocking the sender.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const multiplexerTimeout = 200 * time.Millisecond

type subscriber[E any] struct {
	ch      chan E
	comment string
}

// Multiplexer delivers events to every subscriber in the order they were sent.
// Delivery happens on the Multiplexer's own goroutine; a subscriber that does
// not receive within a timeout misses that event.
type Multiplexer[E any] struct {
	comment         string
	queue           chan E
	done            chan struct{}
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
}

// NewMultiplexer starts a Multiplexer that buffers up to depth events.
func NewMultiplexer[E any](comment string, depth int) *Multiplexer[E] {
	m := &Multiplexer[E]{
		comment: comment,
		queue:   make(chan E, depth),
		done:    make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// Send queues e. It reports false if the queue was full and e was dropped.
func (m *Multiplexer[E]) Send(e E) bool {
	select {
	case m.queue <- e:
		return true
	default:
		zap.S().Warnw("multiplexer queue full", "multiplexer", m.comment)
		return false
	}
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

func (m *Multiplexer[E]) Unsubscribe(c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		panic("already unsubscribed")
	}
	m.subscribers = slices.Delete(m.subscribers, i, i+1)
}

// Close stops the Multiplexer after delivering queued events. Send must not
// be called after Close.
func (m *Multiplexer[E]) Close() {
	close(m.queue)
	<-m.done
}

func (m *Multiplexer[E]) dispatch() {
	defer close(m.done)
	for e := range m.queue {
		m.send(e)
	}
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		case <-time.After(multiplexerTimeout):
			zap.S().Warnw("subscriber timed out",
				"multiplexer", m.comment,
				"subscriber", sub.comment)
		}
	}
}
