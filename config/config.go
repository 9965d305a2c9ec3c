// Package config loads service configuration from the environment so main and
// the CLI stay lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Addr is the HTTP listen address for the serve command.
	Addr string `env:"BANK_ADDR" envDefault:":8080"`
	// StorePath is the SQLite event log file.
	StorePath string `env:"BANK_STORE_PATH" envDefault:"bank.db"`
	// ReplyTimeout bounds how long callers wait for a command reply.
	ReplyTimeout time.Duration `env:"BANK_REPLY_TIMEOUT" envDefault:"5s"`
	// MailboxSize is the per-entity command queue capacity.
	MailboxSize int `env:"BANK_MAILBOX_SIZE" envDefault:"64"`
	// SnapshotFrequency is the number of events between account snapshots.
	SnapshotFrequency int `env:"BANK_SNAPSHOT_FREQUENCY" envDefault:"100"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
