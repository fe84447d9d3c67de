package cell

import "github.com/vango-dev/storesync/pkg/storage"

// ReseedPolicy decides what happens to a stored record that turns out to be
// missing, unparseable or of the wrong kind.
type ReseedPolicy int

const (
	// ReseedCorrupt overwrites such records with the initial value.
	ReseedCorrupt ReseedPolicy = iota

	// ReseedNever leaves storage alone; only the cell reverts.
	// Records that are absent on attach are still seeded.
	ReseedNever
)

// String returns the policy name.
func (p ReseedPolicy) String() string {
	switch p {
	case ReseedCorrupt:
		return "corrupt"
	case ReseedNever:
		return "never"
	default:
		return "unknown"
	}
}

// Option configures a Cell.
type Option func(*options)

type options struct {
	scope   storage.Scope
	reseed  ReseedPolicy
	onError func(error)
}

// WithScope selects the storage area backing the cell.
// Default: storage.Persistent.
func WithScope(scope storage.Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// WithReseedPolicy sets how corrupt stored records are handled.
// Default: ReseedCorrupt.
func WithReseedPolicy(p ReseedPolicy) Option {
	return func(o *options) {
		o.reseed = p
	}
}

// OnError registers a hook called with every failure the cell recovers
// from, after it has been logged. The error wraps one of ErrTypeMismatch,
// ErrParse, ErrMissingRecord, ErrSerialize or ErrStorage.
//
// The hook runs on the goroutine that hit the failure and must not block.
func OnError(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
