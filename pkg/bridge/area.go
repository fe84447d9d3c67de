package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/vango-dev/storesync/pkg/storage"
)

// Area is a storage area connected to a hub. See Client.Wrap.
type Area struct {
	inner  storage.Area
	scope  storage.Scope
	client *Client

	mu     sync.RWMutex
	nextID uint64
	fns    map[uint64]func(storage.Event)
}

var (
	_ storage.Area       = (*Area)(nil)
	_ storage.Lister     = (*Area)(nil)
	_ storage.Observable = (*Area)(nil)
)

// Scope returns the scope the area announces under.
func (a *Area) Scope() storage.Scope {
	return a.scope
}

// GetItem implements storage.Area.
func (a *Area) GetItem(ctx context.Context, key string) (string, bool, error) {
	return a.inner.GetItem(ctx, key)
}

// SetItem implements storage.Area. The write is announced after it
// succeeds; an announcement failure is logged, not returned.
func (a *Area) SetItem(ctx context.Context, key, value string) error {
	if err := a.inner.SetItem(ctx, key, value); err != nil {
		return err
	}
	a.announce(ctx, key, storage.Text(value))
	return nil
}

// RemoveItem implements storage.Area.
func (a *Area) RemoveItem(ctx context.Context, key string) error {
	if err := a.inner.RemoveItem(ctx, key); err != nil {
		return err
	}
	a.announce(ctx, key, nil)
	return nil
}

func (a *Area) announce(ctx context.Context, key string, value *string) {
	m := Message{
		Scope:    a.scope.String(),
		Key:      key,
		NewValue: value,
		Origin:   storage.OriginFrom(ctx),
	}
	if err := a.client.Announce(m); err != nil {
		a.client.logger.Warn("bridge announce failed",
			"key", key, "scope", m.Scope, "error", err)
	}
}

// Keys implements storage.Lister when the wrapped area does.
func (a *Area) Keys(ctx context.Context) ([]string, error) {
	l, ok := a.inner.(storage.Lister)
	if !ok {
		return nil, fmt.Errorf("bridge area: %T cannot list keys", a.inner)
	}
	return l.Keys(ctx)
}

// Watch implements storage.Observable. fn receives remote writes and, when
// the wrapped area is itself observable, the writes it reports.
func (a *Area) Watch(fn func(storage.Event)) func() {
	a.mu.Lock()
	if a.fns == nil {
		a.fns = make(map[uint64]func(storage.Event))
	}
	a.nextID++
	id := a.nextID
	a.fns[id] = fn
	a.mu.Unlock()

	stopInner := func() {}
	if obs, ok := a.inner.(storage.Observable); ok {
		stopInner = obs.Watch(fn)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.fns, id)
			a.mu.Unlock()
			stopInner()
		})
	}
}

func (a *Area) emit(ev storage.Event) {
	a.mu.RLock()
	fns := make([]func(storage.Event), 0, len(a.fns))
	for _, fn := range a.fns {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Close detaches the area from its client and closes the wrapped area.
func (a *Area) Close() error {
	a.client.unwrap(a)
	return a.inner.Close()
}
