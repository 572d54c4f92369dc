package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/findaly/findaly/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the global zerolog logger. The returned closer flushes the
// log file, if one was opened.
func Init(c config.EnvConfig) io.Closer {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if !c.IsProduction() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}

	var closer io.Closer = nopCloser{}
	if path := c.GetLogFile(); path != "" {
		file := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("app", c.GetAppName()).Logger()
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
