// Package log initializes the process-wide zerolog logger. Grounded on
// sawpanic-cryptorun's internal/log/progress.go zerolog usage, trimmed to
// the init-once-global-logger concern; that package's spinner/progress-bar
// machinery has no equivalent in this engine and was not ported.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the global logger's level and output format.
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // human-readable console writer vs. JSON
}

// Init configures the global zerolog logger that every package logs
// through via github.com/rs/zerolog/log.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stderr
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
}
