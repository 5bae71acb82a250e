package apperror

import "errors"

var (
	ErrLinkDown     = errors.New("link is down")
	ErrOutboxFull   = errors.New("link outbox is full")
	ErrLinkClosed   = errors.New("link is closed")
	ErrInvalidFrame = errors.New("invalid link frame")
)
