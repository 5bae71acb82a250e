package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Engenuics/ANTTT/internal/apperror"
	"github.com/Engenuics/ANTTT/internal/event"
	"github.com/Engenuics/ANTTT/internal/protocol"
)

const cleanupTimeout = time.Second

// Options of a link endpoint.
type Options struct {
	DeviceID          string
	PeerID            string
	ChannelPrefix     string
	HeartbeatInterval time.Duration
	PeerTimeout       time.Duration
	OutboxSize        int
}

type inbox interface {
	Put(payload []byte)
}

// Link emulates the point-to-point radio over Redis pub/sub. Frames for this
// device arrive on its own channel; presence keys with a TTL stand in for the
// radio's connection state.
type Link struct {
	logger *slog.Logger
	client *redis.Client
	opts   Options
	inbox  inbox

	status event.StatusFlag
	outbox chan []byte
	closed atomic.Bool

	// withdrawUntil holds unix nanos until which presence is not advertised.
	withdrawUntil atomic.Int64
}

func NewLink(logger *slog.Logger, client *redis.Client, inbox inbox, opts Options) *Link {
	if opts.OutboxSize < 1 {
		opts.OutboxSize = 1
	}

	return &Link{
		logger: logger.With("component", "link", "device", opts.DeviceID, "peer", opts.PeerID),
		client: client,
		opts:   opts,
		inbox:  inbox,
		outbox: make(chan []byte, opts.OutboxSize),
	}
}

// Status - last state seen by the heartbeat.
func (that *Link) Status() event.Status {
	return that.status.Status()
}

// Send queues a frame for the peer without blocking.
func (that *Link) Send(payload []byte) error {
	if that.closed.Load() {
		return apperror.ErrLinkClosed
	}

	if len(payload) != protocol.MessageSize {
		return fmt.Errorf("%w: %d bytes", apperror.ErrInvalidFrame, len(payload))
	}

	if that.status.Status() == event.Disconnected {
		return apperror.ErrLinkDown
	}

	frame := make([]byte, len(payload))
	copy(frame, payload)

	select {
	case that.outbox <- frame:
		return nil
	default:
		return apperror.ErrOutboxFull
	}
}

// Renegotiate withdraws presence for one peer timeout so both sides observe the
// link dropping and start over.
func (that *Link) Renegotiate() {
	that.withdrawUntil.Store(time.Now().Add(that.opts.PeerTimeout).UnixNano())
	that.setStatus(event.Connected)

	that.logger.Info("presence withdrawn", "for", that.opts.PeerTimeout.String())
}

// Run - serves the link until the context is canceled.
func (that *Link) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")

	defer that.shutdown()

	pubsub := that.client.Subscribe(ctx, linkChannel(that.opts.ChannelPrefix, that.opts.DeviceID))
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Warn("failed to close subscription", "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	log.Info("link started")

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return that.receive(gctx, pubsub.Channel())
	})
	group.Go(func() error {
		return that.heartbeat(gctx)
	})
	group.Go(func() error {
		return that.pump(gctx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("link stopped: %w", err)
	}

	log.Info("link stopped")

	return nil
}

// receive hands well-formed frames to the inbox.
func (that *Link) receive(ctx context.Context, messages <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			payload := []byte(msg.Payload)
			if len(payload) != protocol.MessageSize {
				that.logger.Debug("dropping frame", "size", len(payload))
				continue
			}

			that.inbox.Put(payload)
		}
	}
}

func (that *Link) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(that.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		that.beat(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// beat refreshes our presence and derives the status from the peer's.
func (that *Link) beat(ctx context.Context) {
	own := presenceKey(that.opts.ChannelPrefix, that.opts.DeviceID)

	if time.Now().UnixNano() < that.withdrawUntil.Load() {
		if err := that.client.Del(ctx, own).Err(); err != nil {
			that.fail(ctx, "failed to withdraw presence", err)
			return
		}
		that.setStatus(event.Connected)
		return
	}

	if err := that.client.Set(ctx, own, that.opts.DeviceID, that.opts.PeerTimeout).Err(); err != nil {
		that.fail(ctx, "failed to refresh presence", err)
		return
	}

	present, err := that.client.Exists(ctx, presenceKey(that.opts.ChannelPrefix, that.opts.PeerID)).Result()
	if err != nil {
		that.fail(ctx, "failed to check peer presence", err)
		return
	}

	if present == 0 {
		that.setStatus(event.Connected)
		return
	}

	that.setStatus(event.ConnectedEnabled)
}

// pump publishes queued frames in order.
func (that *Link) pump(ctx context.Context) error {
	channel := linkChannel(that.opts.ChannelPrefix, that.opts.PeerID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-that.outbox:
			if err := that.client.Publish(ctx, channel, frame).Err(); err != nil {
				that.logger.Warn("failed to publish frame", "error", err)
			}
		}
	}
}

func (that *Link) fail(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}

	that.logger.Warn(msg, "error", err)
	that.setStatus(event.Disconnected)
}

func (that *Link) setStatus(status event.Status) {
	if that.status.Set(status) {
		that.logger.Info("link status changed", "status", status.String())
	}
}

// shutdown drops our presence so the peer notices right away.
func (that *Link) shutdown() {
	that.closed.Store(true)
	that.setStatus(event.Disconnected)

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := that.client.Del(ctx, presenceKey(that.opts.ChannelPrefix, that.opts.DeviceID)).Err(); err != nil {
		that.logger.Warn("failed to remove presence", "error", err)
	}
}
