// Package events fans captured requests out to live subscribers of a bin.
package events

import (
	"sync"

	"github.com/google/uuid"

	"requestbin/internal/bin"
)

const bufferSize = 64

type subscriber struct {
	bin string
	ch  chan *bin.Request
}

type Broker struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]*subscriber)}
}

// Subscribe registers interest in captures for binName. The returned id is
// passed to Unsubscribe, which closes the channel.
func (b *Broker) Subscribe(binName string) (string, <-chan *bin.Request) {
	id := uuid.NewString()
	sub := &subscriber{bin: binName, ch: make(chan *bin.Request, bufferSize)}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return id, sub.ch
}

func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish never blocks. Subscribers with a full buffer miss the event.
func (b *Broker) Publish(binName string, r *bin.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.bin != binName {
			continue
		}
		select {
		case sub.ch <- r:
		default:
		}
	}
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
