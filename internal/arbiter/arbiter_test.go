package arbiter

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Engenuics/ANTTT/internal/board"
	"github.com/Engenuics/ANTTT/internal/event"
	"github.com/Engenuics/ANTTT/internal/led"
	"github.com/Engenuics/ANTTT/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	status       event.Status
	sent         [][]byte
	err          error
	renegotiated int
}

func (that *fakeLink) Status() event.Status {
	return that.status
}

func (that *fakeLink) Send(payload []byte) error {
	that.sent = append(that.sent, append([]byte(nil), payload...))
	return that.err
}

func (that *fakeLink) Renegotiate() {
	that.renegotiated++
}

type panel [led.Count]bool

func (that *panel) On(index int)     { that[index] = true }
func (that *panel) Off(index int)    { that[index] = false }
func (that *panel) Toggle(index int) { that[index] = !that[index] }

// lit returns the indices of the lit indicators.
func (that *panel) lit() []int {
	out := []int{}
	for i, on := range that {
		if on {
			out = append(out, i)
		}
	}
	return out
}

type fixture struct {
	arbiter *Arbiter
	link    *fakeLink
	inbox   *event.Mailbox
	buttons *event.ButtonLatch
	leds    *panel
	now     uint32
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		link:    &fakeLink{},
		inbox:   event.NewMailbox(4),
		buttons: event.NewButtonLatch(board.CellCount),
		leds:    &panel{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.arbiter = New(logger, f.link, f.inbox, f.buttons, f.leds, opts)

	return f
}

// connected returns a fixture that already left Idle.
func connected(t *testing.T, peerFirst bool) *fixture {
	t.Helper()

	opts := DefaultOptions()
	opts.PeerFirst = peerFirst

	f := newFixture(t, opts)
	f.link.status = event.ConnectedEnabled
	f.tick()

	return f
}

func (that *fixture) tick() {
	that.advance(10)
}

func (that *fixture) advance(ms uint32) {
	that.now += ms
	that.arbiter.Tick(that.now)
}

// local plays a home move and lets the peer acknowledge it.
func (that *fixture) local(t *testing.T, cell int) {
	t.Helper()

	require.Equal(t, Active, that.arbiter.Phase())
	that.buttons.Press(cell)
	that.tick()
	require.True(t, that.arbiter.Pending())

	that.inbox.Put(protocol.NewMoveAck(cell).Encode())
	that.tick()
	require.False(t, that.arbiter.Pending())
}

// remote delivers a peer move.
func (that *fixture) remote(t *testing.T, cell int) {
	t.Helper()

	require.Equal(t, Wait, that.arbiter.Phase())
	that.inbox.Put(protocol.NewMove(cell).Encode())
	that.tick()
}

func TestArbiter_Idle(t *testing.T) {
	t.Run("Starts idle with the yellow light", func(t *testing.T) {
		// Given: a fresh arbiter on a dead link
		f := newFixture(t, DefaultOptions())

		// When: a few ticks pass
		f.tick()
		f.tick()

		// Then: nothing but the yellow light is on
		assert.Equal(t, Idle, f.arbiter.Phase())
		assert.Equal(t, []int{led.StatusYellow}, f.leds.lit())
		assert.Empty(t, f.link.sent)
	})

	t.Run("Connected without the peer service stays idle", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		f.link.status = event.Connected

		f.tick()

		assert.Equal(t, Idle, f.arbiter.Phase())
	})

	t.Run("Peer first enters wait and drops stale input", func(t *testing.T) {
		// Given: a press and a message that arrived while disconnected
		f := newFixture(t, DefaultOptions())
		f.buttons.Press(3)
		f.inbox.Put(protocol.NewMove(4).Encode())
		f.tick()

		// When: the link comes up
		f.link.status = event.ConnectedEnabled
		f.tick()

		// Then: the peer has the turn and the stale input is gone
		assert.Equal(t, Wait, f.arbiter.Phase())
		assert.False(t, f.buttons.WasPressed(3))
		assert.Zero(t, f.inbox.Len())
		assert.Equal(t, []int{led.StatusRed, led.StatusGreen}, f.leds.lit())
		assert.Empty(t, f.link.sent)
	})

	t.Run("Local first enters active", func(t *testing.T) {
		f := connected(t, false)

		assert.Equal(t, Active, f.arbiter.Phase())
		assert.Equal(t, []int{led.StatusGreen}, f.leds.lit())
	})
}

func TestArbiter_Wait(t *testing.T) {
	t.Run("Legal peer move is acknowledged", func(t *testing.T) {
		// Given: waiting for the peer
		f := connected(t, true)

		// When: the peer plays the center
		f.remote(t, 4)

		// Then: the move is on the away bank, acknowledged, and it is our turn
		b := f.arbiter.Board()
		assert.Equal(t, Active, f.arbiter.Phase())
		assert.True(t, b.Away().Has(4))
		assert.Equal(t, [][]byte{protocol.NewMoveAck(4).Encode()}, f.link.sent)
		assert.True(t, f.leds[led.AwayBase+4])
		assert.False(t, f.leds[led.StatusRed])

		snap := f.arbiter.Snapshot()
		assert.Equal(t, "active", snap.Phase)
		assert.Equal(t, []int{4}, snap.Away)
		assert.Equal(t, "connected_enabled", snap.Link)
	})

	t.Run("Malformed and illegal messages are dropped", func(t *testing.T) {
		// Given: waiting for the peer
		f := connected(t, true)

		// When: junk arrives
		f.inbox.Put([]byte{byte(protocol.CommandMove), 9, protocol.SourceLocal})
		f.inbox.Put([]byte{byte(protocol.CommandMove), 4})
		f.inbox.Put(protocol.NewMoveAck(0).Encode())
		f.inbox.Put([]byte{0x7F, 1, protocol.SourceLocal})
		f.tick()

		// Then: nothing changes and nothing is sent
		b := f.arbiter.Board()
		assert.Equal(t, Wait, f.arbiter.Phase())
		assert.Zero(t, b.Away())
		assert.Empty(t, f.link.sent)
		assert.Zero(t, f.inbox.Len())
	})

	t.Run("Peer move onto an occupied cell is dropped", func(t *testing.T) {
		// Given: we hold cell 0 and the peer has the turn
		f := connected(t, false)
		f.local(t, 0)
		sent := len(f.link.sent)

		// When: the peer claims cell 0
		f.remote(t, 0)

		// Then: it is ignored
		b := f.arbiter.Board()
		assert.Equal(t, Wait, f.arbiter.Phase())
		assert.Zero(t, b.Away())
		assert.Len(t, f.link.sent, sent)
	})

	t.Run("Presses during the peer turn are discarded", func(t *testing.T) {
		f := connected(t, true)
		f.buttons.Press(5)

		f.tick()

		b := f.arbiter.Board()
		assert.False(t, f.buttons.WasPressed(5))
		assert.Zero(t, b.Home())
		assert.Empty(t, f.link.sent)
	})
}

func TestArbiter_Active(t *testing.T) {
	t.Run("Press sends a move and waits for the acknowledgement", func(t *testing.T) {
		// Given: our turn
		f := connected(t, false)

		// When: button 2 is pressed
		f.buttons.Press(2)
		f.tick()

		// Then: the move is placed, lit and sent
		b := f.arbiter.Board()
		assert.Equal(t, Active, f.arbiter.Phase())
		assert.True(t, f.arbiter.Pending())
		assert.True(t, b.Home().Has(2))
		assert.True(t, f.leds[led.HomeBase+2])
		assert.Equal(t, [][]byte{protocol.NewMove(2).Encode()}, f.link.sent)

		snap := f.arbiter.Snapshot()
		require.NotNil(t, snap.PendingCell)
		assert.Equal(t, 2, *snap.PendingCell)
	})

	t.Run("Lowest pressed button wins the tick", func(t *testing.T) {
		f := connected(t, false)
		f.buttons.Press(7)
		f.buttons.Press(1)

		f.tick()

		b := f.arbiter.Board()
		assert.Equal(t, []int{1}, b.Home().Cells())
		assert.Equal(t, [][]byte{protocol.NewMove(1).Encode()}, f.link.sent)
	})

	t.Run("Presses while pending are discarded", func(t *testing.T) {
		// Given: a move waiting for its acknowledgement
		f := connected(t, false)
		f.buttons.Press(2)
		f.tick()

		// When: another button is pressed
		f.buttons.Press(5)
		f.tick()

		// Then: no second move is made
		b := f.arbiter.Board()
		assert.Equal(t, []int{2}, b.Home().Cells())
		assert.Len(t, f.link.sent, 1)
		assert.False(t, f.buttons.WasPressed(5))
	})

	t.Run("Press on an occupied cell is ignored", func(t *testing.T) {
		// Given: peer holds 4 and it is our turn
		f := connected(t, true)
		f.remote(t, 4)
		sent := len(f.link.sent)

		// When: we press 4
		f.buttons.Press(4)
		f.tick()

		// Then: still our turn, nothing sent
		assert.Equal(t, Active, f.arbiter.Phase())
		assert.False(t, f.arbiter.Pending())
		assert.Len(t, f.link.sent, sent)
	})

	t.Run("Messages before our move are discarded", func(t *testing.T) {
		f := connected(t, false)
		f.inbox.Put(protocol.NewMove(4).Encode())

		f.tick()

		b := f.arbiter.Board()
		assert.Zero(t, b.Away())
		assert.Zero(t, f.inbox.Len())
	})

	t.Run("Only the matching acknowledgement completes the move", func(t *testing.T) {
		// Given: move 2 pending
		f := connected(t, false)
		f.buttons.Press(2)
		f.tick()

		// When: an acknowledgement for another cell arrives
		f.inbox.Put(protocol.NewMoveAck(3).Encode())
		f.tick()

		// Then: still pending
		assert.True(t, f.arbiter.Pending())

		// When: the right one arrives
		f.inbox.Put(protocol.NewMoveAck(2).Encode())
		f.tick()

		// Then: the peer has the turn
		assert.Equal(t, Wait, f.arbiter.Phase())
		assert.False(t, f.arbiter.Pending())
		assert.True(t, f.leds[led.StatusRed])
	})

	t.Run("Failed send keeps the move pending", func(t *testing.T) {
		f := connected(t, false)
		f.link.err = errors.New("radio busy")

		f.buttons.Press(0)
		f.tick()

		assert.True(t, f.arbiter.Pending())
		assert.Equal(t, Active, f.arbiter.Phase())
	})
}

func TestArbiter_AckTimeout(t *testing.T) {
	t.Run("Zero timeout waits forever", func(t *testing.T) {
		f := connected(t, false)
		f.buttons.Press(0)
		f.tick()

		f.advance(60_000)

		assert.True(t, f.arbiter.Pending())
		assert.Len(t, f.link.sent, 1)
	})

	t.Run("Move is retransmitted then the game is abandoned", func(t *testing.T) {
		// Given: a 100ms timeout with two retries
		opts := DefaultOptions()
		opts.PeerFirst = false
		opts.AckTimeout = 100
		opts.MaxRetransmits = 2

		f := newFixture(t, opts)
		f.link.status = event.ConnectedEnabled
		f.tick()
		f.buttons.Press(6)
		f.tick()

		// When: the peer stays silent
		f.advance(50)
		assert.Len(t, f.link.sent, 1)

		f.advance(50)
		f.advance(100)

		// Then: the move was resent twice
		move := protocol.NewMove(6).Encode()
		assert.Equal(t, [][]byte{move, move, move}, f.link.sent)
		assert.Equal(t, Active, f.arbiter.Phase())

		// When: the last retry times out
		f.advance(100)

		// Then: the game is reset and the link renegotiated
		b := f.arbiter.Board()
		assert.Equal(t, Idle, f.arbiter.Phase())
		assert.Zero(t, b.Home())
		assert.False(t, f.arbiter.Pending())
		assert.Equal(t, 1, f.link.renegotiated)
		assert.Equal(t, []int{led.StatusYellow}, f.leds.lit())
	})
}

func TestArbiter_LinkLoss(t *testing.T) {
	t.Run("Disconnect while pending resets the game", func(t *testing.T) {
		// Given: a game in progress with a pending move
		f := connected(t, true)
		f.remote(t, 4)
		f.buttons.Press(0)
		f.tick()
		require.True(t, f.arbiter.Pending())
		sent := len(f.link.sent)

		// When: the peer service goes away
		f.link.status = event.Connected
		f.tick()

		// Then: everything is cleared and nothing is sent
		b := f.arbiter.Board()
		assert.Equal(t, Idle, f.arbiter.Phase())
		assert.Zero(t, b.Home())
		assert.Zero(t, b.Away())
		assert.False(t, f.arbiter.Pending())
		assert.Len(t, f.link.sent, sent)
		assert.Equal(t, []int{led.StatusYellow}, f.leds.lit())
	})

	t.Run("Reconnect starts a new game", func(t *testing.T) {
		f := connected(t, true)
		f.remote(t, 4)

		f.link.status = event.Disconnected
		f.tick()
		f.link.status = event.ConnectedEnabled
		f.tick()

		b := f.arbiter.Board()
		assert.Equal(t, Wait, f.arbiter.Phase())
		assert.Zero(t, b.Away())
	})
}

func TestArbiter_GameOver(t *testing.T) {
	t.Run("Home win blinks the winning line", func(t *testing.T) {
		// Given: we play the top row against 3 and 4
		f := connected(t, false)
		f.local(t, 0)
		f.remote(t, 3)
		f.local(t, 1)
		f.remote(t, 4)
		f.local(t, 2)

		// Then: game over with every light off
		b := f.arbiter.Board()
		assert.Equal(t, GameOver, f.arbiter.Phase())
		assert.Equal(t, board.Mask(0x007)|board.WonFlag, b.Home())
		assert.Empty(t, f.leds.lit())

		snap := f.arbiter.Snapshot()
		assert.Equal(t, "win", snap.Outcome)
		assert.Equal(t, "home", snap.Winner)

		// When: a blink period passes
		f.advance(500)

		// Then: status lights and the line are on
		assert.Equal(t, []int{0, 1, 2, led.StatusYellow, led.StatusRed, led.StatusGreen}, f.leds.lit())

		// When: another period passes
		f.advance(500)

		// Then: they are off again
		assert.Empty(t, f.leds.lit())
	})

	t.Run("Away win is acknowledged before game over", func(t *testing.T) {
		f := connected(t, true)
		f.remote(t, 0)
		f.local(t, 3)
		f.remote(t, 1)
		f.local(t, 4)
		f.remote(t, 2)

		assert.Equal(t, GameOver, f.arbiter.Phase())
		assert.Equal(t, protocol.NewMoveAck(2).Encode(), f.link.sent[len(f.link.sent)-1])

		f.advance(500)

		assert.Equal(t, []int{
			led.AwayBase, led.AwayBase + 1, led.AwayBase + 2,
			led.StatusYellow, led.StatusRed, led.StatusGreen,
		}, f.leds.lit())
	})

	t.Run("Draw blinks the alternating pattern", func(t *testing.T) {
		// Given: a full board with no line
		f := connected(t, false)
		f.local(t, 0)
		f.remote(t, 1)
		f.local(t, 2)
		f.remote(t, 4)
		f.local(t, 3)
		f.remote(t, 5)
		f.local(t, 7)
		f.remote(t, 6)
		f.local(t, 8)

		assert.Equal(t, GameOver, f.arbiter.Phase())
		assert.Equal(t, "draw", f.arbiter.Snapshot().Outcome)

		// When: one blink step
		f.advance(500)

		// Then: even home cells and odd away cells light up
		assert.Equal(t, []int{
			0, 2, 4, 6, 8,
			led.AwayBase + 1, led.AwayBase + 3, led.AwayBase + 5, led.AwayBase + 7,
			led.StatusYellow, led.StatusRed, led.StatusGreen,
		}, f.leds.lit())
	})

	t.Run("Any press returns to idle", func(t *testing.T) {
		// Given: a finished game
		f := connected(t, true)
		f.remote(t, 0)
		f.local(t, 3)
		f.remote(t, 1)
		f.local(t, 4)
		f.remote(t, 2)
		require.Equal(t, GameOver, f.arbiter.Phase())

		// When: a button is pressed
		f.buttons.Press(8)
		f.tick()

		// Then: the board is reset and the yellow light is back
		b := f.arbiter.Board()
		assert.Equal(t, Idle, f.arbiter.Phase())
		assert.Zero(t, b.Home())
		assert.Zero(t, b.Away())
		assert.Equal(t, []int{led.StatusYellow}, f.leds.lit())
		assert.False(t, f.buttons.WasPressed(8))

		// When: the next tick sees the link still up
		f.tick()

		// Then: a new game starts
		assert.Equal(t, Wait, f.arbiter.Phase())
	})
}
