package cell

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/storesync/pkg/codec"
	"github.com/vango-dev/storesync/pkg/frame"
	"github.com/vango-dev/storesync/pkg/reactive"
	"github.com/vango-dev/storesync/pkg/storage"
)

// Setter writes a value through a cell.
type Setter[T any] func(T)

// Cell binds one storage key to one reactive value.
type Cell[T any] struct {
	host    *Host
	key     string
	initial T
	scope   storage.Scope
	area    storage.Area
	cfg     options

	sig     *reactive.Signal[T]
	watcher *reactive.Watcher[T]

	mu sync.Mutex
	// current is the last value the cell accepted. It is updated before
	// the value reaches storage so that notifications caused by the write
	// find the cell already holding it.
	current     T
	pollFault   string
	unsubscribe func()
	stopPoll    func()

	detached atomic.Bool
}

// Attach binds key to a new cell holding initial and returns the cell and
// its setter.
//
// The record under key is read first. If it is present and parses as a T
// the cell adopts it; if it is absent the initial value is stored. The cell
// then listens for notifications on the host bus, watches its signal for
// direct writes and polls the record once per frame until Detach.
//
// Attaching to a closed host returns a detached cell holding initial.
func Attach[T any](host *Host, key string, initial T, opts ...Option) (*Cell[T], Setter[T]) {
	cfg := options{
		scope:  storage.Persistent,
		reseed: ReseedCorrupt,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cell[T]{
		host:    host,
		key:     key,
		initial: initial,
		scope:   cfg.scope,
		area:    host.Area(cfg.scope),
		cfg:     cfg,
		sig:     reactive.NewSignal(initial),
		current: initial,
	}
	c.watcher = reactive.Watch(c.sig, c.handleMutation)

	if c.area == nil {
		c.report(codeStorage, fmt.Errorf("%w: no area for scope %s", ErrStorage, c.scope))
		c.detachLocal()
		return c, c.Set
	}
	if !host.track(c.sig.ID(), c.Detach) {
		c.detachLocal()
		return c, c.Set
	}

	ctx, cancel := c.opContext()
	ctx, span := c.startSpan(ctx, spanAttach)
	endSpan(span, c.loadRecord(ctx))
	cancel()

	unsubscribe := host.bus.Subscribe(c.handleEvent)
	stopPoll := frame.Every(host.frames, c.poll)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.stopPoll = stopPoll
	c.mu.Unlock()
	host.metrics.recordAttached(c.scope, 1)

	// Host.Close may have detached the cell while it was being wired.
	if c.detached.Load() {
		c.release()
	}

	return c, c.Set
}

// Signal returns the reactive handle. Writing to it has the same effect as
// calling the setter.
func (c *Cell[T]) Signal() *reactive.Signal[T] {
	return c.sig
}

// Get is the tracked read: it returns the current value and subscribes the
// listener installed by reactive.WithListener, which is then marked dirty
// whenever the cell adopts or sets a new value. Use Peek for an untracked
// read.
func (c *Cell[T]) Get() T {
	return c.sig.Get()
}

// Peek returns the current value without subscribing.
func (c *Cell[T]) Peek() T {
	return c.sig.Peek()
}

// Key returns the storage key.
func (c *Cell[T]) Key() string {
	return c.key
}

// Scope returns the storage scope.
func (c *Cell[T]) Scope() storage.Scope {
	return c.scope
}

// Initial returns the value the cell reverts to.
func (c *Cell[T]) Initial() T {
	return c.initial
}

// Set persists v, updates the handle and wakes the other cells of the host.
//
// A value whose kind differs from the current value is rejected: the
// failure is logged, the handle reverts to the initial value and storage is
// left unchanged. Serialization and storage failures revert the same way.
//
// On a detached cell Set only updates the handle, after the same kind
// check.
func (c *Cell[T]) Set(v T) {
	if c.detached.Load() {
		if want, got := codec.KindOf(c.load()), codec.KindOf(v); want != got {
			c.report(codeTypeMismatch, fmt.Errorf("%w: %s value where %s expected", ErrTypeMismatch, got, want))
			c.revert()
			return
		}
		c.store(v)
		c.show(v)
		return
	}
	c.write(v, true)
}

// SetAny is Set for a dynamically typed value. A value that is not a T is
// a type mismatch.
func (c *Cell[T]) SetAny(v any) {
	t, ok := v.(T)
	if !ok {
		var zero T
		c.report(codeTypeMismatch, fmt.Errorf("%w: %T is not %T", ErrTypeMismatch, v, zero))
		c.revert()
		return
	}
	c.Set(t)
}

// Reset sets the initial value.
func (c *Cell[T]) Reset() {
	c.Set(c.initial)
}

// Detach stops the cell: notifications are ignored, direct writes to the
// signal no longer persist and the poll stops. Safe to call more than once.
func (c *Cell[T]) Detach() {
	if !c.detached.CompareAndSwap(false, true) {
		return
	}
	c.watcher.Stop()
	c.release()
	c.host.untrack(c.sig.ID())
	c.host.metrics.recordAttached(c.scope, -1)
}

// Detached reports whether Detach has been called.
func (c *Cell[T]) Detached() bool {
	return c.detached.Load()
}

// detachLocal marks a cell that never attached as detached.
func (c *Cell[T]) detachLocal() {
	c.detached.Store(true)
	c.watcher.Stop()
}

// release stops the bus subscription and the poll, once.
func (c *Cell[T]) release() {
	c.mu.Lock()
	unsubscribe, stopPoll := c.unsubscribe, c.stopPoll
	c.unsubscribe, c.stopPoll = nil, nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stopPoll != nil {
		stopPoll()
	}
}

func (c *Cell[T]) opContext() (context.Context, context.CancelFunc) {
	ctx := storage.WithOrigin(context.Background(), c.host.id)
	return context.WithTimeout(ctx, c.host.opTimeout)
}

func (c *Cell[T]) load() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Cell[T]) store(v T) {
	c.mu.Lock()
	c.current = v
	c.mu.Unlock()
}

// show puts v in the handle without re-entering the mutation watch.
func (c *Cell[T]) show(v T) {
	c.sig.SetSkipping(v, c.watcher)
}

func (c *Cell[T]) revert() {
	c.store(c.initial)
	c.show(c.initial)
}

func (c *Cell[T]) adopt(v T, source string) {
	c.store(v)
	c.show(v)
	c.host.metrics.recordAdopt(c.scope, source)
}

// seed stores the initial value.
func (c *Cell[T]) seed(ctx context.Context) {
	text, err := codec.Encode(c.initial)
	if err != nil {
		c.report(codeSerialize, fmt.Errorf("%w: %w", ErrSerialize, err))
		return
	}
	if err := c.area.SetItem(ctx, c.key, text); err != nil {
		c.report(codeStorage, fmt.Errorf("%w: %w", ErrStorage, err))
		return
	}
	c.host.metrics.recordWrite(c.scope)
}

// reseed overwrites a corrupt record, subject to the reseed policy.
func (c *Cell[T]) reseed(ctx context.Context) {
	if c.cfg.reseed == ReseedNever {
		return
	}
	c.seed(ctx)
}

// loadRecord reads the record on attach. The first read is trusted: any record
// that parses as a T is adopted regardless of its kind.
func (c *Cell[T]) loadRecord(ctx context.Context) error {
	text, ok, err := c.area.GetItem(ctx, c.key)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStorage, err)
		c.report(codeStorage, err)
		c.revert()
		return err
	}
	if !ok {
		c.seed(ctx)
		return nil
	}

	v, err := codec.DecodeAs[T](text)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrParse, err)
		c.report(codeParse, err)
		c.revert()
		c.reseed(ctx)
		return err
	}
	c.adopt(v, sourceAttach)
	return nil
}

// write is the local write path shared by the setter and the mutation
// watch. The handle already holds v when it comes from the signal.
func (c *Cell[T]) write(v T, fromSetter bool) {
	ctx, cancel := c.opContext()
	defer cancel()
	ctx, span := c.startSpan(ctx, spanSet)

	err := c.persist(ctx, v)
	endSpan(span, err)
	if err != nil {
		c.revert()
		return
	}

	if fromSetter {
		c.show(v)
	}
	c.host.bus.Publish(storage.Event{
		Key:       c.key,
		Scope:     c.scope,
		Origin:    c.host.id,
		Synthetic: true,
	})
}

// persist checks and stores v. Failures are reported before returning.
func (c *Cell[T]) persist(ctx context.Context, v T) error {
	c.mu.Lock()
	if want, got := codec.KindOf(c.current), codec.KindOf(v); want != got {
		c.mu.Unlock()
		err := fmt.Errorf("%w: %s value where %s expected", ErrTypeMismatch, got, want)
		c.report(codeTypeMismatch, err)
		return err
	}

	text, err := codec.Encode(v)
	if err != nil {
		c.mu.Unlock()
		err = fmt.Errorf("%w: %w", ErrSerialize, err)
		c.report(codeSerialize, err)
		return err
	}
	c.current = v
	c.mu.Unlock()

	if err := c.area.SetItem(ctx, c.key, text); err != nil {
		err = fmt.Errorf("%w: %w", ErrStorage, err)
		c.report(codeStorage, err)
		return err
	}
	c.host.metrics.recordWrite(c.scope)
	return nil
}

// handleMutation is the signal watch: direct writes persist like Set.
func (c *Cell[T]) handleMutation(v T) {
	if c.detached.Load() {
		return
	}
	c.write(v, false)
}

// handleEvent reacts to bus notifications for the cell's key and scope.
func (c *Cell[T]) handleEvent(ev storage.Event) {
	if c.detached.Load() || ev.Key != c.key || ev.Scope != c.scope {
		return
	}

	ctx, cancel := c.opContext()
	defer cancel()

	if ev.Synthetic {
		c.reconcile(ctx, sourceSynthetic)
		return
	}
	if ev.Origin == c.host.id {
		return
	}
	c.handleNative(ctx, ev)
}

// handleNative adopts another context's write and writes it back.
func (c *Cell[T]) handleNative(ctx context.Context, ev storage.Event) {
	ctx, span := c.startSpan(ctx, spanAdopt, attribute.String("storesync.source", sourceNative))
	var spanErr error
	defer func() { endSpan(span, spanErr) }()

	if ev.NewValue == nil {
		spanErr = fmt.Errorf("%w: key was removed", ErrMissingRecord)
		c.fail(ctx, codeMissingRecord, spanErr, false)
		return
	}

	v, code, err := c.decode(*ev.NewValue)
	if err != nil {
		spanErr = err
		c.fail(ctx, code, err, false)
		return
	}
	if codec.Equal(v, c.load()) {
		return
	}

	c.adopt(v, sourceNative)
	if err := c.area.SetItem(ctx, c.key, *ev.NewValue); err != nil {
		spanErr = fmt.Errorf("%w: %w", ErrStorage, err)
		c.report(codeStorage, spanErr)
		c.revert()
		return
	}
	c.host.metrics.recordWrite(c.scope)
}

// poll is the per-frame fallback check.
func (c *Cell[T]) poll(time.Time) {
	if c.detached.Load() {
		return
	}
	c.host.metrics.recordPoll()

	ctx, cancel := c.opContext()
	defer cancel()
	c.reconcile(ctx, sourcePoll)
}

// reconcile re-reads the record and adopts it if it differs, without
// writing it back. A missing or corrupt record reverts the cell.
func (c *Cell[T]) reconcile(ctx context.Context, source string) {
	polling := source == sourcePoll

	text, ok, err := c.area.GetItem(ctx, c.key)
	if err != nil {
		if c.noteFault(polling, codeStorage) {
			c.report(codeStorage, fmt.Errorf("%w: %w", ErrStorage, err))
		}
		c.revert()
		return
	}
	if !ok {
		c.fail(ctx, codeMissingRecord, ErrMissingRecord, polling)
		return
	}

	v, code, err := c.decode(text)
	if err != nil {
		c.fail(ctx, code, err, polling)
		return
	}

	if polling {
		c.noteFault(true, "")
	}
	if codec.Equal(v, c.load()) {
		return
	}

	if !polling {
		c.adopt(v, source)
		return
	}
	_, span := c.startSpan(ctx, spanAdopt, attribute.String("storesync.source", source))
	c.adopt(v, source)
	endSpan(span, nil)
}

// fail handles a missing or corrupt record: report, revert and reseed.
func (c *Cell[T]) fail(ctx context.Context, code string, err error, polling bool) {
	if c.noteFault(polling, code) {
		c.report(code, err)
	}
	c.revert()
	c.reseed(ctx)
}

// noteFault tracks the poll's last fault so that a record that stays
// broken is logged once. It reports whether the fault should be logged.
// Outside the poll every fault is logged.
func (c *Cell[T]) noteFault(polling bool, code string) bool {
	if !polling {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollFault == code {
		return false
	}
	c.pollFault = code
	return code != ""
}

// decode parses text and checks it against the current kind. The kind is
// read off the text and the value decoded straight into T, so integers
// keep every digit. Text such as 5.0 that only fits T once normalized
// falls back to the generic form.
func (c *Cell[T]) decode(text string) (T, string, error) {
	var zero T

	got, err := codec.KindOfText(text)
	if err != nil {
		return zero, codeParse, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if want := codec.KindOf(c.load()); want != got {
		return zero, codeTypeMismatch, fmt.Errorf("%w: stored %s where %s expected", ErrTypeMismatch, got, want)
	}

	v, err := codec.DecodeAs[T](text)
	if err == nil {
		return v, "", nil
	}
	if raw, rerr := codec.Decode(text); rerr == nil {
		if v, cerr := codec.Convert[T](raw); cerr == nil {
			return v, "", nil
		}
	}
	return zero, codeParse, fmt.Errorf("%w: %w", ErrParse, err)
}
