// Package metaerr attaches structured metadata to errors.
//
// The metadata is a flat list of key/value pairs, meant to be handed to
// slog's With when the error is finally logged, so that context gathered
// deep in a call chain does not have to be squeezed into the error string.
package metaerr

import "errors"

type metaError struct {
	err  error
	meta []any
}

// WithMetadata wraps err with the given key/value pairs.
// A nil err returns nil.
func WithMetadata(err error, keysAndValues ...any) error {
	if err == nil {
		return nil
	}
	return &metaError{err: err, meta: keysAndValues}
}

func (e *metaError) Error() string { return e.err.Error() }

func (e *metaError) Unwrap() error { return e.err }

// GetMetadata collects the metadata pairs of every wrapped error in the
// chain, outermost first. The result can be spread into slog's With.
func GetMetadata(err error) []any {
	var meta []any
	for err != nil {
		var me *metaError
		if !errors.As(err, &me) {
			break
		}
		meta = append(meta, me.meta...)
		err = me.err
	}
	return meta
}
