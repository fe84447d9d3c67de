package storage

import "sync"

// Event is a change notification.
//
// Native events describe a write made by another context and carry the key
// and the new text (nil when the key was removed). Synthetic events carry no
// payload; they only wake same-context listeners, which must re-read storage.
type Event struct {
	Key      string
	NewValue *string
	OldValue *string
	Scope    Scope
	// Origin identifies the context that made the write.
	Origin    string
	Synthetic bool
}

// Text returns a pointer to s, for building event payloads.
func Text(s string) *string {
	return &s
}

// Bus delivers change notifications to subscribers.
type Bus interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())

	// Publish delivers ev to every subscriber.
	Publish(ev Event)
}

// LocalBus is an in-process Bus. Publish calls subscribers synchronously on
// the publishing goroutine, in subscription order.
type LocalBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []busSub
}

type busSub struct {
	id uint64
	fn func(Event)
}

// NewLocalBus creates an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// Subscribe implements Bus.
func (b *LocalBus) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, busSub{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish implements Bus.
func (b *LocalBus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]busSub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Len returns the number of subscribers.
func (b *LocalBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// watchers is the Observable plumbing shared by the areas.
type watchers struct {
	mu     sync.RWMutex
	nextID uint64
	fns    map[uint64]func(Event)
}

func (w *watchers) add(fn func(Event)) func() {
	w.mu.Lock()
	if w.fns == nil {
		w.fns = make(map[uint64]func(Event))
	}
	w.nextID++
	id := w.nextID
	w.fns[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.fns, id)
		w.mu.Unlock()
	}
}

func (w *watchers) emit(ev Event) {
	w.mu.RLock()
	fns := make([]func(Event), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
