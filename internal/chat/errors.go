package chat

import "errors"

var (
	// ErrInvalidMessage reports input that fails length or blankness rules.
	// Nothing is persisted or broadcast for it.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrStorageUnavailable reports that a store could not complete a write
	// or read. A send that fails with it is never broadcast.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
