package protocol

import (
	"errors"
	"fmt"
)

// Message layout, one byte per field.
const (
	MessageSize = 3

	CommandOffset  = 0
	PositionOffset = 1
	SourceOffset   = 2
)

// Command ids.
const (
	CommandMove    Command = 0x01
	CommandMoveAck Command = 0x02
)

// SourceLocal marks a move originated by the sending controller.
const SourceLocal byte = 0x00

var (
	ErrInvalidLength  = errors.New("invalid message length")
	ErrUnknownCommand = errors.New("unknown command id")
)

// Command identifies the kind of message.
type Command byte

func (c Command) String() string {
	switch c {
	case CommandMove:
		return "move"
	case CommandMoveAck:
		return "move_ack"
	default:
		return fmt.Sprintf("command(0x%02x)", byte(c))
	}
}

// Known reports whether the command id is part of the protocol.
func (c Command) Known() bool {
	return c == CommandMove || c == CommandMoveAck
}

// Message is a decoded link message.
type Message struct {
	Command  Command
	Position byte
	Source   byte
}

// NewMove - builds the message announcing a local move.
func NewMove(cell int) Message {
	return Message{Command: CommandMove, Position: byte(cell), Source: SourceLocal}
}

// NewMoveAck - builds the acknowledgement for an accepted peer move.
func NewMoveAck(cell int) Message {
	return Message{Command: CommandMoveAck, Position: byte(cell)}
}

// Encode - returns the wire form of the message.
func (m Message) Encode() []byte {
	buf := make([]byte, MessageSize)
	buf[CommandOffset] = byte(m.Command)
	buf[PositionOffset] = m.Position
	buf[SourceOffset] = m.Source

	return buf
}

// Decode - parses a wire message. Only the length and the command id are checked,
// the position is validated against the board by the caller.
func Decode(raw []byte) (Message, error) {
	if len(raw) != MessageSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(raw))
	}

	msg := Message{
		Command:  Command(raw[CommandOffset]),
		Position: raw[PositionOffset],
		Source:   raw[SourceOffset],
	}

	if !msg.Command.Known() {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownCommand, msg.Command)
	}

	return msg, nil
}
