package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Engenuics/ANTTT/internal/arbiter"
	"github.com/Engenuics/ANTTT/internal/config"
	"github.com/Engenuics/ANTTT/internal/event"
	"github.com/Engenuics/ANTTT/internal/hardware/console"
	"github.com/Engenuics/ANTTT/internal/input"
	"github.com/Engenuics/ANTTT/internal/transport/redis"
	"github.com/Engenuics/ANTTT/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the controller until a signal arrives or a component fails.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	redisAddr := conf.Redis.GetRedisAddr()
	if conf.Redis.Host == "" {
		return ErrAddrNotFound
	}

	client, err := redis.NewClient(ctx, redisAddr)
	if err != nil {
		return fmt.Errorf("could not connect to link broker: %w", err)
	}

	defer func() {
		if err = client.Close(); err != nil {
			log.Error("could not close link broker", "error", err)
		}
	}()

	inbox := event.NewMailbox(conf.Game.InboxSize)
	latch := event.NewButtonLatch(input.ButtonCount)
	panel := console.NewPanel(os.Stderr)

	link := redis.NewLink(logger, client, inbox, redis.Options{
		DeviceID:          conf.DeviceID,
		PeerID:            conf.Link.PeerID,
		ChannelPrefix:     conf.Link.ChannelPrefix,
		HeartbeatInterval: conf.Link.HeartbeatInterval,
		PeerTimeout:       conf.Link.PeerTimeout,
		OutboxSize:        conf.Link.OutboxSize,
	})

	turns := arbiter.New(logger, link, inbox, latch, panel, arbiter.Options{
		PeerFirst:      conf.Game.PeerFirst(),
		BlinkPeriod:    millis(conf.Game.BlinkPeriod),
		AckTimeout:     millis(conf.Game.AckTimeout),
		MaxRetransmits: conf.Game.MaxRetransmits,
	})

	server := rest.New(logger, turns, panel, latch)
	buttons := console.NewButtons(logger, os.Stdin, latch)
	scheduler := newScheduler(logger, conf.Game.TickInterval, turns, panel)

	log.Info("Starting controller", "device", conf.DeviceID, "peer", conf.Link.PeerID, "first_turn", conf.Game.FirstTurn)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return link.Run(gctx)
	})
	group.Go(func() error {
		return scheduler.Run(gctx)
	})
	group.Go(func() error {
		return buttons.Run(gctx)
	})
	group.Go(func() error {
		return server.Start(gctx, conf.HTTPPort)
	})

	if err = group.Wait(); err != nil {
		return fmt.Errorf("controller stopped: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

func millis(d time.Duration) uint32 {
	return uint32(d.Milliseconds())
}
