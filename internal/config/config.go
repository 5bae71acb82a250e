package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	FirstTurnPeer  = "peer"
	FirstTurnLocal = "local"
)

var (
	ErrPeerIDMissing     = errors.New("link.peer-id is required")
	ErrSameDeviceAndPeer = errors.New("device-id and link.peer-id must differ")
	ErrInvalidFirstTurn  = errors.New("game.first-turn must be peer or local")
	ErrInvalidInterval   = errors.New("interval must be positive")
)

type Config struct {
	LogLevel string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	DeviceID string `yaml:"device-id" env:"DEVICE_ID"`
	Redis    Redis  `yaml:"redis"`
	Link     Link   `yaml:"link"`
	Game     Game   `yaml:"game"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Link struct {
	PeerID            string        `yaml:"peer-id" env:"LINK_PEER_ID"`
	ChannelPrefix     string        `yaml:"channel-prefix" env:"LINK_CHANNEL_PREFIX" env-default:"anttt"`
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"LINK_HEARTBEAT_INTERVAL" env-default:"1s"`
	PeerTimeout       time.Duration `yaml:"peer-timeout" env:"LINK_PEER_TIMEOUT" env-default:"3s"`
	OutboxSize        int           `yaml:"outbox-size" env:"LINK_OUTBOX_SIZE" env-default:"8"`
}

type Game struct {
	TickInterval   time.Duration `yaml:"tick-interval" env:"GAME_TICK_INTERVAL" env-default:"10ms"`
	BlinkPeriod    time.Duration `yaml:"blink-period" env:"GAME_BLINK_PERIOD" env-default:"500ms"`
	FirstTurn      string        `yaml:"first-turn" env:"GAME_FIRST_TURN" env-default:"peer"`
	AckTimeout     time.Duration `yaml:"ack-timeout" env:"GAME_ACK_TIMEOUT" env-default:"0s"`
	MaxRetransmits int           `yaml:"max-retransmits" env:"GAME_MAX_RETRANSMITS" env-default:"3"`
	InboxSize      int           `yaml:"inbox-size" env:"GAME_INBOX_SIZE" env-default:"4"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load reads the file, applies env overrides and defaults, then validates.
// A missing device id is replaced with a random one.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if config.DeviceID == "" {
		config.DeviceID = uuid.NewString()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func (that *Config) Validate() error {
	if that.Link.PeerID == "" {
		return ErrPeerIDMissing
	}

	if that.Link.PeerID == that.DeviceID {
		return ErrSameDeviceAndPeer
	}

	if that.Game.FirstTurn != FirstTurnPeer && that.Game.FirstTurn != FirstTurnLocal {
		return fmt.Errorf("%w: %q", ErrInvalidFirstTurn, that.Game.FirstTurn)
	}

	intervals := map[string]time.Duration{
		"link.heartbeat-interval": that.Link.HeartbeatInterval,
		"link.peer-timeout":       that.Link.PeerTimeout,
		"game.tick-interval":      that.Game.TickInterval,
		"game.blink-period":       that.Game.BlinkPeriod,
	}
	for key, value := range intervals {
		if value <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidInterval, key)
		}
	}

	return nil
}

// PeerFirst reports whether the remote side opens the game.
func (that *Game) PeerFirst() bool {
	return that.FirstTurn == FirstTurnPeer
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
