package cell

import (
	"errors"
	"log/slog"

	syncerr "github.com/vango-dev/storesync/internal/errors"
)

// Causes carried by the errors a cell logs and passes to OnError.
// Use errors.Is to classify them.
var (
	// ErrTypeMismatch means a value's kind differs from the cell's value.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrParse means stored or notified text is not a valid value.
	ErrParse = errors.New("parse error")

	// ErrMissingRecord means the storage area has no record for the key.
	ErrMissingRecord = errors.New("missing record")

	// ErrSerialize means a value has no text form.
	ErrSerialize = errors.New("serialize error")

	// ErrStorage means the storage area failed.
	ErrStorage = errors.New("storage error")
)

// Error codes registered in internal/errors.
const (
	codeTypeMismatch  = "S100"
	codeParse         = "S101"
	codeMissingRecord = "S102"
	codeSerialize     = "S103"
	codeStorage       = "S104"
)

// reasons label the reverts metric.
var reasons = map[string]string{
	codeTypeMismatch:  "type_mismatch",
	codeParse:         "parse",
	codeMissingRecord: "missing_record",
	codeSerialize:     "serialize",
	codeStorage:       "storage",
}

// report logs a recovered failure and hands it to the OnError hook.
func (c *Cell[T]) report(code string, cause error) {
	err := syncerr.New(code).
		WithKey(c.key).
		WithScope(c.scope.String()).
		Wrap(cause)

	c.host.logger.Error("storage item sync failed",
		slog.String("key", c.key),
		slog.String("scope", c.scope.String()),
		slog.String("code", code),
		slog.Any("error", err),
	)
	c.host.metrics.recordRevert(c.scope, reasons[code])

	if c.cfg.onError != nil {
		c.cfg.onError(err)
	}
}
