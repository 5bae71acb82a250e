// Package console emulates the controller hardware on a terminal: buttons are
// typed on stdin and the indicator panel is rendered as text.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Engenuics/ANTTT/internal/board"
	"github.com/Engenuics/ANTTT/internal/led"
)

// Panel is an led.Driver that keeps the indicator states in memory.
type Panel struct {
	mu    sync.Mutex
	lit   [led.Count]bool
	dirty bool
	out   io.Writer
}

func NewPanel(out io.Writer) *Panel {
	return &Panel{out: out, dirty: true}
}

func (that *Panel) On(index int) {
	that.set(index, func(bool) bool { return true })
}

func (that *Panel) Off(index int) {
	that.set(index, func(bool) bool { return false })
}

func (that *Panel) Toggle(index int) {
	that.set(index, func(on bool) bool { return !on })
}

func (that *Panel) set(index int, next func(bool) bool) {
	if index < 0 || index >= led.Count {
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	value := next(that.lit[index])
	if value != that.lit[index] {
		that.lit[index] = value
		that.dirty = true
	}
}

// Snapshot - copy of every indicator state, indexed by indicator.
func (that *Panel) Snapshot() []bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	out := make([]bool, led.Count)
	copy(out, that.lit[:])

	return out
}

// Render draws the panel on one line: home bank, away bank, status lights.
func (that *Panel) Render() string {
	lit := that.Snapshot()

	var sb strings.Builder

	sb.WriteString("home ")
	writeBank(&sb, lit[led.HomeBase:led.HomeBase+board.CellCount], 'X')
	sb.WriteString("  away ")
	writeBank(&sb, lit[led.AwayBase:led.AwayBase+board.CellCount], 'O')

	fmt.Fprintf(&sb, "  yellow:%s red:%s green:%s",
		onOff(lit[led.StatusYellow]), onOff(lit[led.StatusRed]), onOff(lit[led.StatusGreen]))

	return sb.String()
}

// Flush writes the panel when it changed since the last flush.
func (that *Panel) Flush() error {
	that.mu.Lock()
	dirty := that.dirty
	that.dirty = false
	that.mu.Unlock()

	if !dirty {
		return nil
	}

	if _, err := fmt.Fprintln(that.out, that.Render()); err != nil {
		return fmt.Errorf("failed to render panel: %w", err)
	}

	return nil
}

func writeBank(sb *strings.Builder, cells []bool, mark byte) {
	for i, on := range cells {
		if i > 0 && i%3 == 0 {
			sb.WriteByte('|')
		}
		if on {
			sb.WriteByte(mark)
		} else {
			sb.WriteByte('.')
		}
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
