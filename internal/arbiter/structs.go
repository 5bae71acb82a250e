package arbiter

import (
	"fmt"

	"github.com/Engenuics/ANTTT/internal/event"
)

// Phase of the turn state machine.
type Phase uint8

const (
	// Idle - powered, waiting for the link to come up.
	Idle Phase = iota
	// Wait - the peer's turn.
	Wait
	// Active - our turn, or our move is waiting for the peer's acknowledgement.
	Active
	// GameOver - result shown until any button is pressed.
	GameOver
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Wait:
		return "wait"
	case Active:
		return "active"
	case GameOver:
		return "game_over"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Options tune the state machine.
type Options struct {
	// PeerFirst hands the first move to the remote side.
	PeerFirst bool
	// BlinkPeriod is the game over blink period in milliseconds.
	BlinkPeriod uint32
	// AckTimeout in milliseconds; zero waits for the acknowledgement forever.
	AckTimeout uint32
	// MaxRetransmits bounds resends of an unacknowledged move before the game is abandoned.
	MaxRetransmits int
}

// DefaultOptions - peer moves first, 500ms blink, no acknowledgement timeout.
func DefaultOptions() Options {
	return Options{
		PeerFirst:      true,
		BlinkPeriod:    500,
		MaxRetransmits: 3,
	}
}

// Snapshot is a read-only copy of the arbiter state taken after a tick.
type Snapshot struct {
	Tick        uint32 `json:"tick"`
	Phase       string `json:"phase"`
	Link        string `json:"link"`
	Home        []int  `json:"home"`
	Away        []int  `json:"away"`
	Pending     bool   `json:"pending"`
	PendingCell *int   `json:"pending_cell,omitempty"`
	Outcome     string `json:"outcome"`
	Winner      string `json:"winner,omitempty"`
}

// link is the radio collaborator.
type link interface {
	Status() event.Status
	Send(payload []byte) error
}

// renegotiator is implemented by links that can force the peer to notice a reset.
type renegotiator interface {
	Renegotiate()
}

// inbox hands over inbound messages.
type inbox interface {
	Take() ([]byte, bool)
	Clear()
}

// buttons is the edge-latched button source.
type buttons interface {
	Count() int
	WasPressed(index int) bool
	Acknowledge(index int)
}
