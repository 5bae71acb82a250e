// Package led maps game state to indicator instructions.
// The presenter keeps no state of its own: every function is told what to show.
package led

import (
	"fmt"

	"github.com/Engenuics/ANTTT/internal/board"
)

// Indicator layout: home cells, away cells, then the three status lights.
const (
	HomeBase = 0
	AwayBase = HomeBase + board.CellCount

	StatusYellow = AwayBase + board.CellCount
	StatusRed    = StatusYellow + 1
	StatusGreen  = StatusYellow + 2

	Count = StatusGreen + 1
)

// Op is the action applied to one indicator.
type Op uint8

const (
	On Op = iota
	Off
	Toggle
)

func (o Op) String() string {
	switch o {
	case On:
		return "on"
	case Off:
		return "off"
	case Toggle:
		return "toggle"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Instruction drives a single indicator.
type Instruction struct {
	Op    Op
	Index int
}

// Driver is the indicator hardware.
type Driver interface {
	On(index int)
	Off(index int)
	Toggle(index int)
}

// Apply - sends the instructions to the driver in order.
func Apply(driver Driver, instructions []Instruction) {
	for _, ins := range instructions {
		switch ins.Op {
		case On:
			driver.On(ins.Index)
		case Off:
			driver.Off(ins.Index)
		case Toggle:
			driver.Toggle(ins.Index)
		}
	}
}

// CellIndex - indicator of a cell in the owner's bank.
func CellIndex(owner board.Owner, cell int) int {
	if cell < 0 || cell >= board.CellCount {
		panic(fmt.Sprintf("led: cell %d out of range", cell))
	}

	if owner == board.Home {
		return HomeBase + cell
	}
	return AwayBase + cell
}

// Clear - every indicator off.
func Clear() []Instruction {
	out := make([]Instruction, 0, Count)
	for i := range Count {
		out = append(out, Instruction{Op: Off, Index: i})
	}
	return out
}

// Idle - powered but not connected: only the yellow light.
func Idle() []Instruction {
	return append(Clear(), Instruction{Op: On, Index: StatusYellow})
}

// Connected - link up. Red is lit while the peer is expected to move.
func Connected(peerFirst bool) []Instruction {
	return []Instruction{
		{Op: On, Index: StatusGreen},
		{Op: Off, Index: StatusYellow},
		Turn(peerFirst),
	}
}

// Turn - red on while waiting for the peer, off on our turn.
func Turn(waitingForPeer bool) Instruction {
	if waitingForPeer {
		return Instruction{Op: On, Index: StatusRed}
	}
	return Instruction{Op: Off, Index: StatusRed}
}

// Cell - marks a freshly occupied cell.
func Cell(owner board.Owner, cell int) Instruction {
	return Instruction{Op: On, Index: CellIndex(owner, cell)}
}

// GameOver - one blink step: the status lights toggle together with either the
// winning line, decoded from the winner's mask, or the draw pattern.
func GameOver(b *board.Board, result board.Result) []Instruction {
	out := []Instruction{
		{Op: Toggle, Index: StatusGreen},
		{Op: Toggle, Index: StatusRed},
		{Op: Toggle, Index: StatusYellow},
	}

	switch result.Outcome {
	case board.Win:
		for _, cell := range b.Mask(result.Winner).Cells() {
			out = append(out, Instruction{Op: Toggle, Index: CellIndex(result.Winner, cell)})
		}
	case board.Draw:
		out = append(out, drawPattern()...)
	}

	return out
}

// drawPattern alternates between the banks: even home cells and odd away cells.
func drawPattern() []Instruction {
	out := make([]Instruction, 0, board.CellCount)
	for cell := range board.CellCount {
		owner := board.Home
		if cell%2 == 1 {
			owner = board.Away
		}
		out = append(out, Instruction{Op: Toggle, Index: CellIndex(owner, cell)})
	}
	return out
}
