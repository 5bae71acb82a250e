// Package arbiter implements the turn state machine. One Tick call per scheduler
// cycle polls the link status, the inbound mailbox and the button latch, and
// emits at most one outgoing message.
package arbiter

import (
	"log/slog"
	"sync/atomic"

	"github.com/Engenuics/ANTTT/internal/board"
	"github.com/Engenuics/ANTTT/internal/event"
	"github.com/Engenuics/ANTTT/internal/input"
	"github.com/Engenuics/ANTTT/internal/led"
	"github.com/Engenuics/ANTTT/internal/protocol"
)

type Arbiter struct {
	logger *slog.Logger
	opts   Options

	link    link
	inbox   inbox
	buttons buttons
	leds    led.Driver

	phase  Phase
	board  board.Board
	result board.Result
	now    uint32
	status event.Status

	pending     bool
	pendingCell int
	sentAt      uint32
	retransmits int

	blinkSlot uint32

	snapshot atomic.Pointer[Snapshot]
}

func New(logger *slog.Logger, link link, inbox inbox, buttons buttons, leds led.Driver, opts Options) *Arbiter {
	if opts.BlinkPeriod == 0 {
		opts.BlinkPeriod = DefaultOptions().BlinkPeriod
	}

	arbiter := &Arbiter{
		logger:  logger.With("component", "arbiter"),
		opts:    opts,
		link:    link,
		inbox:   inbox,
		buttons: buttons,
		leds:    leds,
	}

	arbiter.reset()
	arbiter.publish()

	return arbiter
}

// Tick - runs one pass of the state machine. now is the millisecond tick counter.
func (that *Arbiter) Tick(now uint32) {
	that.now = now
	that.status = that.link.Status()

	next := that.step()
	if next != that.phase {
		that.logger.Info("phase changed", "from", that.phase.String(), "to", next.String(), "link", that.status.String())
	}
	that.phase = next

	that.publish()
}

// Phase returns the current phase. Only safe from the ticking goroutine.
func (that *Arbiter) Phase() Phase {
	return that.phase
}

// Board returns a copy of the board. Only safe from the ticking goroutine.
func (that *Arbiter) Board() board.Board {
	return that.board
}

// Pending reports whether a local move awaits acknowledgement.
func (that *Arbiter) Pending() bool {
	return that.pending
}

// Snapshot returns the state published by the last tick. Safe from any goroutine.
func (that *Arbiter) Snapshot() Snapshot {
	return *that.snapshot.Load()
}

// step is the transition function: it runs the current phase and returns the next one.
func (that *Arbiter) step() Phase {
	if that.phase != Idle && that.status != event.ConnectedEnabled {
		that.logger.Warn("link lost, resetting game", "phase", that.phase.String(), "link", that.status.String())
		that.reset()

		return Idle
	}

	switch that.phase {
	case Idle:
		return that.idle()
	case Wait:
		return that.wait()
	case Active:
		if that.pending {
			return that.awaitAck()
		}
		return that.active()
	case GameOver:
		return that.gameOver()
	default:
		that.reset()
		return Idle
	}
}

// idle waits for the link and the peer's service to be up.
func (that *Arbiter) idle() Phase {
	if that.status != event.ConnectedEnabled {
		return Idle
	}

	// presses made while disconnected must not leak into the game
	that.acknowledgeAll()
	that.inbox.Clear()

	led.Apply(that.leds, led.Connected(that.opts.PeerFirst))

	if that.opts.PeerFirst {
		return Wait
	}
	return Active
}

// wait applies the first legal move found in the mailbox.
func (that *Arbiter) wait() Phase {
	log := that.logger.With("method", "wait")

	that.acknowledgeAll()

	for {
		raw, ok := that.inbox.Take()
		if !ok {
			return Wait
		}

		msg, ok := input.FromMessage(raw)
		if !ok {
			log.Debug("dropping malformed message", "size", len(raw))
			continue
		}

		move, ok := input.RemoteMove(&that.board, msg)
		if !ok {
			log.Debug("dropping illegal peer move", "command", msg.Command.String(), "position", msg.Position)
			continue
		}

		if err := that.board.TryPlace(move.Owner, move.Cell); err != nil {
			log.Debug("dropping peer move", "error", err)
			continue
		}

		that.send(protocol.NewMoveAck(move.Cell))
		led.Apply(that.leds, []led.Instruction{led.Cell(move.Owner, move.Cell)})

		log.Info("peer moved", "cell", move.Cell)

		return that.afterMove(Active)
	}
}

// active scans the buttons in ascending order and plays the first legal one.
func (that *Arbiter) active() Phase {
	log := that.logger.With("method", "active")

	that.discardInbox()

	for i := range that.buttons.Count() {
		if !that.buttons.WasPressed(i) {
			continue
		}
		that.buttons.Acknowledge(i)

		move, ok := input.FromButton(&that.board, i)
		if !ok {
			log.Debug("ignoring press on occupied cell", "button", i)
			continue
		}

		if err := that.board.TryPlace(move.Owner, move.Cell); err != nil {
			log.Debug("ignoring press", "button", i, "error", err)
			continue
		}

		led.Apply(that.leds, []led.Instruction{led.Cell(move.Owner, move.Cell)})
		that.send(protocol.NewMove(move.Cell))

		that.pending = true
		that.pendingCell = move.Cell
		that.sentAt = that.now
		that.retransmits = 0

		log.Info("local move sent", "cell", move.Cell)

		return Active
	}

	return Active
}

// awaitAck waits for the peer to acknowledge the pending move.
func (that *Arbiter) awaitAck() Phase {
	log := that.logger.With("method", "awaitAck")

	that.acknowledgeAll()

	for {
		raw, ok := that.inbox.Take()
		if !ok {
			break
		}

		msg, ok := input.FromMessage(raw)
		if !ok {
			log.Debug("dropping malformed message", "size", len(raw))
			continue
		}

		if msg.Command != protocol.CommandMoveAck || int(msg.Position) != that.pendingCell {
			log.Debug("dropping unexpected message", "command", msg.Command.String(), "position", msg.Position)
			continue
		}

		that.pending = false
		that.retransmits = 0

		log.Info("move acknowledged", "cell", that.pendingCell)

		return that.afterMove(Wait)
	}

	if that.opts.AckTimeout == 0 || that.now-that.sentAt < that.opts.AckTimeout {
		return Active
	}

	if that.retransmits >= that.opts.MaxRetransmits {
		log.Warn("no acknowledgement, abandoning game", "cell", that.pendingCell, "retransmits", that.retransmits)
		that.reset()

		if r, ok := that.link.(renegotiator); ok {
			r.Renegotiate()
		}

		return Idle
	}

	that.retransmits++
	that.sentAt = that.now
	that.send(protocol.NewMove(that.pendingCell))

	log.Info("move retransmitted", "cell", that.pendingCell, "attempt", that.retransmits)

	return Active
}

// gameOver blinks the result until any button is pressed.
func (that *Arbiter) gameOver() Phase {
	that.discardInbox()

	if that.acknowledgeAll() {
		that.reset()
		return Idle
	}

	slot := that.now / that.opts.BlinkPeriod
	if slot != that.blinkSlot {
		that.blinkSlot = slot
		led.Apply(that.leds, led.GameOver(&that.board, that.result))
	}

	return GameOver
}

// afterMove evaluates the board once a move is settled on both sides.
func (that *Arbiter) afterMove(next Phase) Phase {
	that.result = that.board.Evaluate()

	if that.result.Finished() {
		that.logger.Info("game over", "outcome", that.result.Outcome.String(), "winner", that.result.Winner.String())

		led.Apply(that.leds, led.Clear())
		that.blinkSlot = that.now / that.opts.BlinkPeriod

		return GameOver
	}

	if next == Active {
		that.inbox.Clear()
	}

	led.Apply(that.leds, []led.Instruction{led.Turn(next == Wait)})

	return next
}

// reset re-initializes the game: board, handshake state and presentation.
func (that *Arbiter) reset() {
	that.board.Reset()
	that.result = board.Result{}
	that.pending = false
	that.pendingCell = 0
	that.retransmits = 0

	led.Apply(that.leds, led.Idle())
}

// acknowledgeAll re-arms every latched button and reports whether any was pressed.
func (that *Arbiter) acknowledgeAll() bool {
	pressed := false

	for i := range that.buttons.Count() {
		if that.buttons.WasPressed(i) {
			that.buttons.Acknowledge(i)
			pressed = true
		}
	}

	return pressed
}

func (that *Arbiter) discardInbox() {
	for {
		raw, ok := that.inbox.Take()
		if !ok {
			return
		}
		that.logger.Debug("discarding message", "phase", that.phase.String(), "size", len(raw))
	}
}

// send is fire-and-forget, a failed send is only logged.
func (that *Arbiter) send(msg protocol.Message) {
	if err := that.link.Send(msg.Encode()); err != nil {
		that.logger.Warn("failed to send message", "command", msg.Command.String(), "error", err)
	}
}

func (that *Arbiter) publish() {
	snap := &Snapshot{
		Tick:    that.now,
		Phase:   that.phase.String(),
		Link:    that.status.String(),
		Home:    that.board.Home().Cells(),
		Away:    that.board.Away().Cells(),
		Pending: that.pending,
		Outcome: that.result.Outcome.String(),
	}

	if that.pending {
		cell := that.pendingCell
		snap.PendingCell = &cell
	}

	if that.result.Outcome == board.Win {
		snap.Winner = that.result.Winner.String()
	}

	that.snapshot.Store(snap)
}
