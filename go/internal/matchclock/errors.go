package matchclock

import "errors"

var (
	// ErrInvalidTransition means the action is not permitted in the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound means no clock exists for the match.
	ErrNotFound = errors.New("match clock not found")
	// ErrInvalidArgument means the request was malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTransientStorage means the commit lost a lock race or timed out and
	// nothing was written. Safe to retry.
	ErrTransientStorage = errors.New("transient storage failure")
	// ErrChannelDelivery means a committed change could not be published.
	ErrChannelDelivery = errors.New("channel delivery failure")
)
