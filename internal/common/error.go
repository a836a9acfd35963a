package common

import (
	"errors"
	"fmt"
)

var (
	ErrItemAlreadyTracked  = fmt.Errorf("item is already tracked")
	ErrItemNotTracked      = fmt.Errorf("item is not tracked")
	ErrDownloadInterrupted = fmt.Errorf("download interrupted")
	ErrDownloadCancelled   = fmt.Errorf("download cancelled")
	ErrSessionClosed       = fmt.Errorf("session is closed")
	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrNoSavePath          = fmt.Errorf("no save path")
)

// InterruptedError is handed to the completion callback when a transfer ends in the
// interrupted state. Message is the user facing text with the filename substituted.
type InterruptedError struct {
	ItemID   string
	Filename string
	Message  string
}

func (e *InterruptedError) Error() string {
	return e.Message
}

func (e *InterruptedError) Is(target error) bool {
	return target == ErrDownloadInterrupted
}

// AsInterrupted unwraps err into an *InterruptedError if it is one.
func AsInterrupted(err error) (*InterruptedError, bool) {
	var ie *InterruptedError
	if errors.As(err, &ie) {
		return ie, true
	}

	return nil, false
}
