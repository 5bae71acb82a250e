// Package event holds the hand-off points between asynchronous producers
// (link receiver, button reader, link monitor) and the single arbiter consumer.
package event

import (
	"sync"
	"sync/atomic"
)

// Status is the link state reported by the radio collaborator.
type Status uint32

const (
	Disconnected Status = iota
	Connected
	ConnectedEnabled
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectedEnabled:
		return "connected_enabled"
	default:
		return "disconnected"
	}
}

// StatusFlag is written by the link monitor and read once per tick.
type StatusFlag struct {
	value atomic.Uint32
}

// Set stores the status and reports whether it changed.
func (that *StatusFlag) Set(status Status) bool {
	return Status(that.value.Swap(uint32(status))) != status
}

func (that *StatusFlag) Status() Status {
	return Status(that.value.Load())
}

// Mailbox is a bounded FIFO of inbound messages. When full, the oldest message
// is dropped to make room.
type Mailbox struct {
	mu       sync.Mutex
	messages [][]byte
	size     int
	dropped  uint64
}

// NewMailbox - creates a mailbox holding at most size messages.
func NewMailbox(size int) *Mailbox {
	if size < 1 {
		size = 1
	}

	return &Mailbox{
		messages: make([][]byte, 0, size),
		size:     size,
	}
}

// Put copies the payload into the mailbox.
func (that *Mailbox) Put(payload []byte) {
	msg := make([]byte, len(payload))
	copy(msg, payload)

	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.messages) == that.size {
		that.messages = that.messages[1:]
		that.dropped++
	}

	that.messages = append(that.messages, msg)
}

// Take removes and returns the oldest message.
func (that *Mailbox) Take() ([]byte, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.messages) == 0 {
		return nil, false
	}

	msg := that.messages[0]
	that.messages = that.messages[1:]

	return msg, true
}

// Clear drops every pending message.
func (that *Mailbox) Clear() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.messages = that.messages[:0]
}

// Len - number of pending messages.
func (that *Mailbox) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.messages)
}

// Dropped - messages lost to overflow since creation.
func (that *Mailbox) Dropped() uint64 {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.dropped
}
