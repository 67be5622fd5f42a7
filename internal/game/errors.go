package game

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no matching record exists.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a conditional write did not apply because the
	// document moved on (status changed, already a member, race lost).
	ErrConflict = errors.New("conditional update not applied")

	// ErrRoomCodeTaken is returned by CreateGame when an unfinished game already holds the code.
	ErrRoomCodeTaken = errors.New("room code already in use")
)

// ActionError is a validation or authorization failure. Its message is sent
// back to the caller verbatim and nothing is persisted.
type ActionError struct {
	Message string
}

func (e *ActionError) Error() string { return e.Message }

// reject returns msg to the caller as is.
func reject(msg string) error {
	return &ActionError{Message: msg}
}

func rejectf(format string, args ...interface{}) error {
	return &ActionError{Message: fmt.Sprintf(format, args...)}
}
