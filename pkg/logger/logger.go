package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the process-wide zerolog logger. Level accepts the usual
// zerolog names (trace, debug, info, warn, error).
type Config struct {
	Level  string `split_words:"true" default:"info"`
	Pretty bool   `split_words:"true" default:"false"`
}

func Init(opts ...Config) {
	conf := Config{Level: "info"}
	if len(opts) > 0 {
		conf = opts[0]
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if conf.Pretty {
		out = zerolog.NewConsoleWriter()
	}

	log.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}
