package input

import (
	"github.com/Engenuics/ANTTT/internal/board"
	"github.com/Engenuics/ANTTT/internal/protocol"
)

// ButtonCount - one button per cell.
const ButtonCount = board.CellCount

// Move is a validated board position with its owner.
type Move struct {
	Cell  int
	Owner board.Owner
}

// FromButton - translates a latched button press into a local move.
// Returns false when the index is off the board or the cell is taken.
func FromButton(b *board.Board, button int) (Move, bool) {
	if button < 0 || button >= ButtonCount {
		return Move{}, false
	}

	if b.Validate(button) != nil {
		return Move{}, false
	}

	return Move{Cell: button, Owner: board.Home}, true
}

// FromMessage - decodes a raw link message. Wrong lengths and unknown commands
// yield false and are otherwise ignored.
func FromMessage(raw []byte) (protocol.Message, bool) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		return protocol.Message{}, false
	}

	return msg, true
}

// RemoteMove - turns a decoded MOVE message into a move for the peer, checked
// against both masks.
func RemoteMove(b *board.Board, msg protocol.Message) (Move, bool) {
	if msg.Command != protocol.CommandMove {
		return Move{}, false
	}

	cell := int(msg.Position)
	if b.Validate(cell) != nil {
		return Move{}, false
	}

	return Move{Cell: cell, Owner: board.Away}, true
}
