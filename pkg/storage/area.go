package storage

import (
	"context"
	"fmt"
	"strings"
)

// Scope selects which storage area backs a cell.
type Scope int

const (
	// Persistent areas outlive the process.
	Persistent Scope = iota
	// Session areas live as long as the session that created them.
	Session
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case Persistent:
		return "persistent"
	case Session:
		return "session"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope parses a scope name. "local" is accepted for Persistent.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "persistent", "local":
		return Persistent, nil
	case "session":
		return Session, nil
	default:
		return 0, fmt.Errorf("unknown storage scope %q", name)
	}
}

// Area defines the contract for storage backends.
// Implementations must be safe for concurrent use.
type Area interface {
	// GetItem returns the text stored under key.
	// Returns ("", false, nil) if the key doesn't exist.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, overwriting any existing value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Close releases any resources held by the area.
	Close() error
}

// Lister is implemented by areas that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Observable is implemented by areas that report writes as they happen.
// Watchers run on the goroutine that observed the write and must not block.
type Observable interface {
	Watch(fn func(Event)) (stop func())
}

// ErrAreaClosed is returned when operations are attempted on a closed area.
type ErrAreaClosed struct{}

func (e ErrAreaClosed) Error() string {
	return "storage area is closed"
}

type originKey struct{}

// WithOrigin returns a context identifying origin as the writer.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the writer identity stored by WithOrigin.
func OriginFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}
