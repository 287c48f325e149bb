package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SnapshotBadger   = "badger"
	SnapshotPostgres = "postgres"
	SnapshotNone     = "none"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0" validate:"required"`
	Port     int    `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	LogLevel string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`

	IdleThreshold     time.Duration `env:"IDLE_THRESHOLD,default=24h" validate:"gt=0"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,default=1h" validate:"gt=0"`
	KeepaliveInterval time.Duration `env:"KEEPALIVE_INTERVAL,default=30s" validate:"gt=0"`
	MissedPongLimit   int           `env:"MISSED_PONG_LIMIT,default=2" validate:"gte=1"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=5s" validate:"gt=0"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256" validate:"gte=1"`
	CommandBufferSize    int           `env:"COMMAND_BUFFER_SIZE,default=128" validate:"gte=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	MaxMessageSize       int           `env:"MAX_MESSAGE_SIZE,default=1048576" validate:"gte=1024"`
	// Comma separated; empty accepts any origin.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	SnapshotBackend string `env:"SNAPSHOT_BACKEND,default=badger" validate:"oneof=badger postgres none"`
	BadgerFilepath  string `env:"BADGER_FILEPATH,default=./data/snapshots" validate:"required_if=SnapshotBackend badger"`
	DatabaseURL     string `env:"DATABASE_URL" validate:"required_if=SnapshotBackend postgres"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=true"`
	CharReplacement   string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	// Strict panics on a session invariant violation instead of resynchronising clients.
	Strict bool `env:"COLLAB_STRICT,default=false"`
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
