package presence

import (
	"errors"
	"fmt"
)

var (
	ErrHandleInvalid        = errors.New("invalid username")
	ErrHandleTaken          = errors.New("username already taken")
	ErrUnknownHandle        = errors.New("unknown username")
	ErrNotJoined            = errors.New("not joined")
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	ErrRecipientUnknown     = errors.New("recipient not found")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrMalformedFrame       = errors.New("malformed frame")
	ErrStoreFailure         = errors.New("store failure")
)

// FrameError is the error returned to the sender of a frame. Reply is the
// text placed in the error frame; Err is the underlying cause.
type FrameError struct {
	Reply string
	Err   error
}

func (e *FrameError) Error() string {
	if e.Err == nil {
		return e.Reply
	}
	return fmt.Sprintf("%s: %v", e.Reply, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

func replyError(reply string, err error) *FrameError {
	return &FrameError{Reply: reply, Err: err}
}
