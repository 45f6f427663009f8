package domain

import "errors"

var (
	// ErrUnknownModel rejects a submission naming a model id with no
	// catalog entry. It fires before any adapter work starts.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNotFound indicates a record that does not exist in a store.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates a record owned by a different user.
	ErrForbidden = errors.New("access denied")
)

// PersistenceError wraps a failed final comparison write. It is the one
// post-dispatch failure that propagates out of Submit, since without the
// write the comparison is unrecoverably lost.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "comparison persistence failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
