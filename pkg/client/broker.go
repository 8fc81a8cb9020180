package client

import (
	"encoding/json"
	"sync"
)

// AllKeys subscribes to updates of every key.
const AllKeys = "*"

type Update struct {
	Key       string
	Data      json.RawMessage
	Timestamp int64
}

// Broker fans cache updates out to subscribers of a key.
type Broker struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]func(Update)
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[uint64]func(Update)),
	}
}

// Subscribe registers fn for key and returns a function removing it.
func (b *Broker) Subscribe(key string, fn func(Update)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]func(Update))
	}
	b.subs[key][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[key], id)
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
	}
}

// Publish calls the subscribers of u.Key and of AllKeys in the caller's goroutine.
func (b *Broker) Publish(u Update) {
	b.mu.RLock()
	fns := make([]func(Update), 0, len(b.subs[u.Key])+len(b.subs[AllKeys]))
	for _, fn := range b.subs[u.Key] {
		fns = append(fns, fn)
	}
	if u.Key != AllKeys {
		for _, fn := range b.subs[AllKeys] {
			fns = append(fns, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(u)
	}
}
