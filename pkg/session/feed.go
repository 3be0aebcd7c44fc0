package session

import (
	"sync"

	"github.com/vango-dev/burp/pkg/mirror"
)

// subscriber receives change events for one mirror generation.
type subscriber struct {
	ch chan mirror.ChangeEvent
}

// feed fans change events out to subscribers. A subscriber that cannot keep
// up, a mirror reset, and the end of the session all close its channel,
// ending the consumer's sequence.
type feed struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	buffer int
	closed bool
}

func newFeed(buffer int) *feed {
	return &feed{subs: make(map[*subscriber]struct{}), buffer: buffer}
}

// subscribe registers a subscriber, or returns nil once the feed is closed.
func (f *feed) subscribe() *subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	sub := &subscriber{ch: make(chan mirror.ChangeEvent, f.buffer)}
	f.subs[sub] = struct{}{}
	return sub
}

func (f *feed) unsubscribe(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
}

// publish delivers events without blocking and returns the number of
// subscribers dropped for falling behind.
func (f *feed) publish(events []mirror.ChangeEvent) int {
	if len(events) == 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := 0
	for sub := range f.subs {
		for _, ev := range events {
			select {
			case sub.ch <- ev:
				continue
			default:
			}
			delete(f.subs, sub)
			close(sub.ch)
			dropped++
			break
		}
	}
	return dropped
}

// rotate ends every current sequence; consumers start over against the new
// mirror generation.
func (f *feed) rotate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropAll()
}

// close ends every sequence and refuses new subscribers.
func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.dropAll()
}

// dropAll closes every subscriber. Caller holds f.mu.
func (f *feed) dropAll() {
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.ch)
	}
}

func (f *feed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
