package board

import (
	"errors"
	"fmt"
	"math/bits"
)

// CellCount - number of cells on the 3x3 grid.
const CellCount = 9

const (
	// FullMask has every cell bit set.
	FullMask Mask = 0x1FF
	// WonFlag is set on the mask that holds the winning line once the game is decided.
	WonFlag Mask = 0x200
)

var (
	ErrCellOccupied = errors.New("cell is already occupied")
	ErrInvalidCell  = errors.New("invalid cell index")

	// WinLines - rows, columns, then diagonals. Evaluation order follows this table.
	WinLines = [8]Mask{
		0b000000111,
		0b000111000,
		0b111000000,
		0b001001001,
		0b010010010,
		0b100100100,
		0b100010001,
		0b001010100,
	}
)

// Mask is a set of cells, one bit per cell index.
type Mask uint16

// Has reports whether the cell bit is set.
func (m Mask) Has(cell int) bool {
	return cell >= 0 && cell < CellCount && m&(1<<cell) != 0
}

// Count - number of occupied cells, the won flag is not counted.
func (m Mask) Count() int {
	return bits.OnesCount16(uint16(m & FullMask))
}

// Won reports whether the won flag is set.
func (m Mask) Won() bool {
	return m&WonFlag != 0
}

// Cells - ascending cell indices set in the mask. The mask itself is left untouched.
func (m Mask) Cells() []int {
	cells := make([]int, 0, CellCount)
	for cell := range CellCount {
		if m&(1<<cell) != 0 {
			cells = append(cells, cell)
		}
	}
	return cells
}

// Owner identifies which mask a move is applied to.
type Owner uint8

const (
	// Home is the local player.
	Home Owner = iota
	// Away is the remote peer.
	Away
)

func (o Owner) String() string {
	switch o {
	case Home:
		return "home"
	case Away:
		return "away"
	default:
		return fmt.Sprintf("owner(%d)", uint8(o))
	}
}

// Board holds both players' occupancy masks.
type Board struct {
	home Mask
	away Mask
}

// Home returns the local player's mask.
func (that *Board) Home() Mask {
	return that.home
}

// Away returns the remote player's mask.
func (that *Board) Away() Mask {
	return that.away
}

// Mask returns the mask of the given owner.
func (that *Board) Mask(owner Owner) Mask {
	if owner == Home {
		return that.home
	}
	return that.away
}

// Occupied reports whether either player holds the cell.
func (that *Board) Occupied(cell int) bool {
	return (that.home | that.away).Has(cell)
}

// Validate - checks that the cell is on the board and free.
func (that *Board) Validate(cell int) error {
	if cell < 0 || cell >= CellCount {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if that.Occupied(cell) {
		return fmt.Errorf("%w: cell %d", ErrCellOccupied, cell)
	}

	return nil
}

// TryPlace - sets the cell bit in the owner's mask. The board is unchanged on error.
func (that *Board) TryPlace(owner Owner, cell int) error {
	if err := that.Validate(cell); err != nil {
		return err
	}

	bit := Mask(1) << cell
	if owner == Home {
		that.home |= bit
	} else {
		that.away |= bit
	}

	return nil
}

// Evaluate - checks the board for a finished game.
// On a win the winner's mask is replaced with the winning line plus WonFlag,
// which drops any of the winner's cells outside that line.
func (that *Board) Evaluate() Result {
	for _, line := range WinLines {
		if that.home&line == line {
			that.home = line | WonFlag
			return Result{Outcome: Win, Winner: Home, Line: line}
		}

		if that.away&line == line {
			that.away = line | WonFlag
			return Result{Outcome: Win, Winner: Away, Line: line}
		}
	}

	if (that.home|that.away)&FullMask == FullMask {
		return Result{Outcome: Draw}
	}

	return Result{Outcome: InProgress}
}

// Reset clears both masks.
func (that *Board) Reset() {
	that.home = 0
	that.away = 0
}
