package event

import "sync"

// ButtonLatch latches press edges per button. A latched button ignores further
// presses until the consumer acknowledges it, so repeated presses coalesce.
type ButtonLatch struct {
	mu      sync.Mutex
	pressed []bool
}

// NewButtonLatch - creates a latch for count buttons.
func NewButtonLatch(count int) *ButtonLatch {
	return &ButtonLatch{pressed: make([]bool, count)}
}

// Count - number of buttons.
func (that *ButtonLatch) Count() int {
	return len(that.pressed)
}

// Press records a press edge. It returns false when the index is unknown or the
// button is still latched from an earlier press.
func (that *ButtonLatch) Press(index int) bool {
	if index < 0 || index >= len(that.pressed) {
		return false
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.pressed[index] {
		return false
	}

	that.pressed[index] = true

	return true
}

// WasPressed reports whether the button holds an unacknowledged press.
func (that *ButtonLatch) WasPressed(index int) bool {
	if index < 0 || index >= len(that.pressed) {
		return false
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	return that.pressed[index]
}

// Acknowledge re-arms the button.
func (that *ButtonLatch) Acknowledge(index int) {
	if index < 0 || index >= len(that.pressed) {
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.pressed[index] = false
}

// Clear re-arms every button, discarding pending presses.
func (that *ButtonLatch) Clear() {
	that.mu.Lock()
	defer that.mu.Unlock()

	clear(that.pressed)
}
